// Package refs turns a branch or tag name into the commit it points at.
package refs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mamatnurahmat/devops-tools/internal/bitbucket"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/logger"
)

// ShortHashLen is the length of the commit prefix used as the image tag.
// Published tags depend on it, so it never changes.
const ShortHashLen = 7

// Kind tells branches and tags apart.
type Kind int

const (
	Branch Kind = iota + 1
	Tag
)

func (k Kind) String() string {
	switch k {
	case Branch:
		return "branch"
	case Tag:
		return "tag"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k Kind) collection() bitbucket.RefKind {
	if k == Tag {
		return bitbucket.Tags
	}
	return bitbucket.Branches
}

// Info is one resolved reference.
type Info struct {
	Repository string `json:"repository"`
	Name       string `json:"ref"`
	Kind       Kind   `json:"kind"`
	FullHash   string `json:"commit"`
	ShortHash  string `json:"short_hash"`
	// Branch is the branch a tag's commit belongs to, when one was found.
	// For branches it is the branch itself.
	Branch string `json:"branch,omitempty"`
}

// Source is the source-control API the resolver queries.
// Lookups of missing refs return bitbucket.ErrNotFound.
type Source interface {
	RefTarget(ctx context.Context, repo string, kind bitbucket.RefKind, name string) (string, error)
	CommitBranches(ctx context.Context, repo, hash string) ([]string, error)
}

// Resolver resolves references against a Source. Results are not cached.
type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve looks ref up as a branch, then as a tag. Only an explicit
// not-found moves on to the next lookup; any other failure aborts.
func (r *Resolver) Resolve(ctx context.Context, repo, ref string) (*Info, error) {
	if repo == "" || ref == "" {
		return nil, failure.New(failure.InvalidFormat, "refs.resolve", "repository and ref are required")
	}

	for _, kind := range []Kind{Branch, Tag} {
		hash, err := r.source.RefTarget(ctx, repo, kind.collection(), ref)
		if errors.Is(err, bitbucket.ErrNotFound) {
			logger.Debug().Str("repo", repo).Str("ref", ref).Stringer("kind", kind).Msg("ref not found")
			continue
		}
		if err != nil {
			return nil, err
		}

		info, err := newInfo(repo, ref, kind, hash)
		if err != nil {
			return nil, err
		}
		if kind == Branch {
			info.Branch = ref
		} else {
			info.Branch = r.tagBranch(ctx, repo, info.FullHash)
		}
		return info, nil
	}
	return nil, failure.New(failure.RefNotFound, "refs.resolve", "no branch or tag %q in %s", ref, repo)
}

// tagBranch returns the first branch containing hash, or "". Failures
// are logged and otherwise ignored.
func (r *Resolver) tagBranch(ctx context.Context, repo, hash string) string {
	branches, err := r.source.CommitBranches(ctx, repo, hash)
	if err != nil {
		logger.Warn().Err(err).Str("repo", repo).Str("commit", hash).Msg("could not map tag to a branch")
		return ""
	}
	if len(branches) == 0 {
		return ""
	}
	return branches[0]
}

func newInfo(repo, ref string, kind Kind, hash string) (*Info, error) {
	hash = strings.TrimSpace(hash)
	if !validHash(hash) {
		return nil, failure.New(failure.Unknown, "refs.resolve", "%s %q has malformed commit hash %q", kind, ref, hash)
	}
	return &Info{
		Repository: repo,
		Name:       ref,
		Kind:       kind,
		FullHash:   hash,
		ShortHash:  ShortHash(hash),
	}, nil
}

// ShortHash returns the first ShortHashLen characters of hash.
func ShortHash(hash string) string {
	if len(hash) < ShortHashLen {
		return hash
	}
	return hash[:ShortHashLen]
}

func validHash(h string) bool {
	if len(h) < ShortHashLen {
		return false
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
