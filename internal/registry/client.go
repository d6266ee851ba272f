// Package registry checks whether an image tag has been published to Docker
// Hub. A check is two round-trips at most: a login for a session token and
// one tag lookup.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/image"
)

// DefaultHubURL is the Docker Hub API root.
const DefaultHubURL = "https://hub.docker.com"

var ErrTagNotFound = errors.New("tag not found")

// Result is the outcome of one availability check. Exists is true only
// when the registry answered the tag lookup with success.
type Result struct {
	Image      string       `json:"image"`
	Exists     bool         `json:"exists"`
	Kind       failure.Kind `json:"error_type,omitempty"`
	Message    string       `json:"message,omitempty"`
	Suggestion string       `json:"suggestion,omitempty"`
}

// Err returns the classified failure, or nil when the image exists.
func (r *Result) Err() error {
	if r.Kind == "" {
		return nil
	}
	return &failure.Error{Kind: r.Kind, Op: "registry.check", Message: r.Message}
}

// Checker talks to one registry API. It never retries.
type Checker struct {
	hubURL string
	// HTTP defaults to http.DefaultClient.
	HTTP *http.Client
}

// NewChecker returns a checker for hubURL, or Docker Hub when empty.
func NewChecker(hubURL string) *Checker {
	if hubURL == "" {
		hubURL = DefaultHubURL
	}
	return &Checker{hubURL: strings.TrimRight(hubURL, "/")}
}

func (c *Checker) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// Check reports whether ref exists. Malformed references and incomplete
// credentials are rejected before any network call.
func (c *Checker) Check(ctx context.Context, ref image.Reference, pair credentials.Pair) *Result {
	r := &Result{Image: ref.String()}

	if err := ref.Validate(); err != nil {
		return r.fail(err)
	}
	if !pair.Complete() {
		return r.fail(failure.New(failure.CredentialsMissing, "registry.check", "registry credentials incomplete"))
	}

	token, err := c.Login(ctx, pair)
	if err != nil {
		return r.fail(err)
	}

	err = c.lookupTag(ctx, ref, token)
	if errors.Is(err, ErrTagNotFound) {
		r.Kind = failure.NotFound
		r.Message = fmt.Sprintf("image %s not found in registry", ref)
		r.Suggestion = failure.NotFound.Suggestion()
		return r
	}
	if err != nil {
		return r.fail(err)
	}

	r.Exists = true
	return r
}

func (r *Result) fail(err error) *Result {
	r.Kind = failure.KindOf(err)
	r.Message = err.Error()
	r.Suggestion = r.Kind.Suggestion()
	return r
}

func (c *Checker) lookupTag(ctx context.Context, ref image.Reference, token string) error {
	tagURL := fmt.Sprintf("%s/v2/repositories/%s/%s/tags/%s/", c.hubURL,
		url.PathEscape(ref.Namespace), escapeRepo(ref.Repository), url.PathEscape(ref.Tag))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tagURL, nil)
	if err != nil {
		return failure.Wrap(failure.Unknown, "registry.lookup", err)
	}
	req.Header.Set("Authorization", "JWT "+token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return failure.Network("registry.lookup", err)
	}
	if err := resp.Body.Close(); err != nil {
		return failure.Network("registry.lookup", fmt.Errorf("close registry response: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrTagNotFound
	default:
		return failure.New(failure.Unknown, "registry.lookup", "registry returned HTTP %d for %s", resp.StatusCode, ref)
	}
}

func escapeRepo(repo string) string {
	segs := strings.Split(repo, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
