// Package image builds and parses the canonical namespace/repository:tag
// image references that deployments are compared on.
package image

import (
	"strings"
	"unicode"

	"github.com/distribution/reference"

	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

// Reference is an image reference split into its three parts.
// Values are never mutated; WithTag returns a new Reference.
type Reference struct {
	Namespace  string `json:"namespace"`
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

// Build combines a registry namespace, a repository (or the IMAGE field of
// the repository's descriptor) and a short commit hash. Inputs are used
// verbatim; registry naming rules are not applied here.
func Build(namespace, repository, shortHash string) (Reference, error) {
	var missing []string
	if namespace == "" {
		missing = append(missing, "namespace")
	}
	if repository == "" {
		missing = append(missing, "repository")
	}
	if shortHash == "" {
		missing = append(missing, "tag")
	}
	if len(missing) > 0 {
		return Reference{}, failure.New(failure.InvalidFormat, "image.build", "empty %s", strings.Join(missing, ", "))
	}

	ref := Reference{Namespace: namespace, Repository: repository, Tag: shortHash}
	if err := ref.Validate(); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

// String renders namespace/repository:tag.
func (r Reference) String() string {
	return r.Namespace + "/" + r.Repository + ":" + r.Tag
}

// WithTag returns a copy of r with a different tag.
func (r Reference) WithTag(tag string) Reference {
	r.Tag = tag
	return r
}

// IsZero reports whether r is the zero Reference.
func (r Reference) IsZero() bool {
	return r == Reference{}
}

// Validate checks that every part is present, that no part contains control
// characters, and that the only colon is the tag separator.
func (r Reference) Validate() error {
	parts := []struct{ name, value string }{
		{"namespace", r.Namespace},
		{"repository", r.Repository},
		{"tag", r.Tag},
	}
	for _, p := range parts {
		if p.value == "" {
			return failure.New(failure.InvalidFormat, "image.validate", "missing %s in %q", p.name, r.String())
		}
		if strings.ContainsRune(p.value, ':') {
			return failure.New(failure.InvalidFormat, "image.validate", "%s %q contains ':'", p.name, p.value)
		}
		if strings.IndexFunc(p.value, unicode.IsControl) >= 0 {
			return failure.New(failure.InvalidFormat, "image.validate", "%s %q contains control characters", p.name, p.value)
		}
	}
	if strings.Contains(r.Namespace, "/") {
		return failure.New(failure.InvalidFormat, "image.validate", "namespace %q contains '/'", r.Namespace)
	}
	if strings.Contains(r.Tag, "/") {
		return failure.New(failure.InvalidFormat, "image.validate", "tag %q contains '/'", r.Tag)
	}
	return nil
}

// Parse splits a rendered reference back into its parts. The tag follows
// the last colon and the namespace precedes the first slash, so
// Parse(r.String()) == r for every valid r.
func Parse(s string) (Reference, error) {
	idx := strings.LastIndex(s, ":")
	if idx == -1 {
		return Reference{}, failure.New(failure.InvalidFormat, "image.parse", "missing tag in %q", s)
	}
	base, tag := s[:idx], s[idx+1:]

	slash := strings.Index(base, "/")
	if slash == -1 {
		return Reference{}, failure.New(failure.InvalidFormat, "image.parse", "missing namespace in %q", s)
	}

	ref := Reference{Namespace: base[:slash], Repository: base[slash+1:], Tag: tag}
	if err := ref.Validate(); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

// ParseCustom parses an image supplied by the caller on the command line.
// On top of Parse it enforces the distribution reference grammar, since a
// custom image goes straight to the runtime without a registry check.
func ParseCustom(s string) (Reference, error) {
	ref, err := Parse(s)
	if err != nil {
		return Reference{}, err
	}
	named, err := reference.Parse(s)
	if err != nil {
		return Reference{}, failure.Wrap(failure.InvalidFormat, "image.parse", err)
	}
	if _, ok := named.(reference.Tagged); !ok {
		return Reference{}, failure.New(failure.InvalidFormat, "image.parse", "missing tag in %q", s)
	}
	return ref, nil
}
