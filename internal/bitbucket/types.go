package bitbucket

// Bitbucket API response types.

type refResponse struct {
	Name   string `json:"name"`
	Target struct {
		Hash string `json:"hash"`
	} `json:"target"`
}

type branchesResponse struct {
	Values []struct {
		Name string `json:"name"`
	} `json:"values"`
}

type userResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Domain types.

// RefKind selects the refs collection a lookup goes to.
type RefKind string

const (
	Branches RefKind = "branches"
	Tags     RefKind = "tags"
)

// User is the account the credentials belong to.
type User struct {
	Username    string
	DisplayName string
}
