// Package bitbucket queries the Bitbucket Cloud REST API for branch and tag
// targets, commit branches and repository files.
package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

// DefaultAPIBase is the Bitbucket Cloud API root.
const DefaultAPIBase = "https://api.bitbucket.org/2.0"

// Client talks to one workspace with one credential pair.
type Client struct {
	apiBase string
	org     string
	auth    credentials.Pair
	// HTTP defaults to http.DefaultClient.
	HTTP *http.Client
}

// New returns a client for the org workspace. An empty apiBase selects
// DefaultAPIBase.
func New(apiBase, org string, auth credentials.Pair) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	return &Client{apiBase: strings.TrimRight(apiBase, "/"), org: org, auth: auth}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) repoURL(repo string, segments ...string) string {
	parts := []string{c.apiBase, "repositories", url.PathEscape(c.org), url.PathEscape(repo)}
	for _, s := range segments {
		parts = append(parts, escapePath(s))
	}
	return strings.Join(parts, "/")
}

// escapePath escapes each segment of p but keeps its slashes, so branch
// names like feature/login address the branch rather than a subpath.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// RefTarget returns the commit hash a branch or tag points at. A ref that
// does not exist yields ErrNotFound.
func (c *Client) RefTarget(ctx context.Context, repo string, kind RefKind, name string) (string, error) {
	var resp refResponse
	if err := c.getJSON(ctx, "bitbucket.ref", c.repoURL(repo, "refs", string(kind), name), &resp); err != nil {
		return "", err
	}
	return resp.Target.Hash, nil
}

// CommitBranches lists the branches containing a commit.
func (c *Client) CommitBranches(ctx context.Context, repo, hash string) ([]string, error) {
	var resp branchesResponse
	if err := c.getJSON(ctx, "bitbucket.commit_branches", c.repoURL(repo, "commit", hash, "branches"), &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Values))
	for _, v := range resp.Values {
		if v.Name != "" {
			names = append(names, v.Name)
		}
	}
	return names, nil
}

// FetchFile returns the raw contents of path at ref.
func (c *Client) FetchFile(ctx context.Context, repo, ref, path string) ([]byte, error) {
	fileURL := c.repoURL(repo, "src", ref, strings.TrimLeft(path, "/"))
	data, err := c.get(ctx, "bitbucket.fetch_file", fileURL, "*/*")
	if err != nil {
		return nil, fmt.Errorf("fetch %s@%s:%s: %w", repo, ref, path, err)
	}
	return data, nil
}

// Verify checks the credentials by fetching the authenticated user.
func (c *Client) Verify(ctx context.Context) (*User, error) {
	if !c.auth.Complete() {
		return nil, failure.New(failure.CredentialsMissing, "bitbucket.verify", "source-control credentials incomplete")
	}
	var resp userResponse
	err := c.getJSON(ctx, "bitbucket.verify", c.apiBase+"/user", &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, failure.New(failure.Unknown, "bitbucket.verify", "HTTP 404")
	}
	if err != nil {
		return nil, err
	}
	return &User{Username: resp.Username, DisplayName: resp.DisplayName}, nil
}
