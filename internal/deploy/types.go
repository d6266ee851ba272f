// Package deploy decides what a deployment run must do. It reads the
// current state of a target, compares it with the desired image and picks
// one of SKIP, CREATE or UPDATE. Applying the decision is left to an
// Executor.
package deploy

import (
	"context"
	"fmt"

	"github.com/mamatnurahmat/devops-tools/internal/image"
)

// Action is the outcome of a decision.
type Action string

const (
	Skip   Action = "SKIP"
	Create Action = "CREATE"
	Update Action = "UPDATE"
)

// Runtime kinds a target can live on.
const (
	RuntimeKubernetes = "kubernetes"
	RuntimeCompose    = "compose"
)

// TargetID names a deployment target: a namespace and deployment on a
// cluster, or a host and compose project.
type TargetID struct {
	Runtime string `json:"runtime"`
	Scope   string `json:"scope"`
	Name    string `json:"name"`
}

func (t TargetID) String() string {
	return fmt.Sprintf("%s:%s/%s", t.Runtime, t.Scope, t.Name)
}

// Observation is what a runtime reports for a target. Exists is false for
// a target that has never been deployed.
type Observation struct {
	Image  string `json:"image,omitempty"`
	Exists bool   `json:"exists"`
}

// Target pairs a fresh observation with the desired image.
type Target struct {
	ID       TargetID
	Observed Observation
	Desired  image.Reference
}

// Decision is consumed once by an Executor and never retried here.
type Decision struct {
	Action      Action   `json:"action"`
	Target      TargetID `json:"target"`
	Desired     string   `json:"desired"`
	Previous    *string  `json:"previous"`
	Explanation string   `json:"explanation"`
}

// StateReader reads the image currently applied to a target.
type StateReader interface {
	ReadState(ctx context.Context, id TargetID) (Observation, error)
}

// Executor applies a decision to its runtime.
type Executor interface {
	Apply(ctx context.Context, d Decision) error
}
