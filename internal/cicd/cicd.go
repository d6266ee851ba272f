// Package cicd reads the per-repository deployment descriptor
// (cicd/cicd.json) and derives deployment targets from it.
package cicd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/mamatnurahmat/devops-tools/internal/bitbucket"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

// DefaultPath is where the descriptor lives in every repository.
const DefaultPath = "cicd/cicd.json"

// Descriptor is the subset of cicd.json the deployers read.
type Descriptor struct {
	Project    string `json:"PROJECT"`
	Deployment string `json:"DEPLOYMENT"`
	Image      string `json:"IMAGE"`
	Port       Port   `json:"PORT"`
	DevHost    string `json:"DEVHOST"`
	StaHost    string `json:"STAHOST"`
	ProHost    string `json:"PROHOST"`
	DevDomain  string `json:"DEVDOMAIN"`
	StaDomain  string `json:"STADOMAIN"`
	ProDomain  string `json:"PRODOMAIN"`
}

// Port accepts both "3001" and 3001.
type Port string

func (p *Port) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Port(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("PORT must be a string or number: %w", err)
	}
	*p = Port(n.String())
	return nil
}

// Fetcher reads a file from a repository at a ref.
type Fetcher interface {
	FetchFile(ctx context.Context, repo, ref, path string) ([]byte, error)
}

// Fetch reads and decodes the descriptor of repo at ref.
func Fetch(ctx context.Context, f Fetcher, repo, ref, path string) (*Descriptor, error) {
	if path == "" {
		path = DefaultPath
	}
	data, err := f.FetchFile(ctx, repo, ref, path)
	if errors.Is(err, bitbucket.ErrNotFound) {
		return nil, failure.New(failure.InvalidFormat, "cicd.fetch", "%s not found in %s@%s", path, repo, ref)
	}
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, failure.Wrap(failure.InvalidFormat, "cicd.fetch", fmt.Errorf("decode %s: %w", path, err))
	}
	return &d, nil
}

// ImageField returns the repository part of the image name: IMAGE when the
// descriptor sets it, otherwise the repository name.
func (d *Descriptor) ImageField(repo string) string {
	if d != nil && d.Image != "" {
		return d.Image
	}
	return repo
}

// KubeTarget names the orchestrator target for ref. The namespace is
// "<ref>-<PROJECT>" and the deployment is DEPLOYMENT unless overridden.
func (d *Descriptor) KubeTarget(ref, namespace, deployment string) (string, string, error) {
	if deployment == "" {
		deployment = d.Deployment
	}
	if deployment == "" {
		return "", "", failure.New(failure.InvalidFormat, "cicd.kube_target", "DEPLOYMENT field not found in cicd.json")
	}
	if namespace == "" {
		if d.Project == "" {
			return "", "", failure.New(failure.InvalidFormat, "cicd.kube_target", "PROJECT field not found in cicd.json")
		}
		namespace = ref + "-" + d.Project
	}
	return namespace, deployment, nil
}

// Environment is a web deployment stage.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// EnvironmentFor maps a ref to a stage: develop and development go to
// development, staging to staging, production and version tags (v1...) to
// production. Any other branch deploys to development.
func EnvironmentFor(ref string) Environment {
	switch strings.ToLower(ref) {
	case "develop", "development":
		return Development
	case "staging":
		return Staging
	case "production":
		return Production
	}
	if IsVersionTag(ref) {
		return Production
	}
	return Development
}

// IsVersionTag reports whether ref looks like v<digit>...
func IsVersionTag(ref string) bool {
	return len(ref) > 1 && ref[0] == 'v' && unicode.IsDigit(rune(ref[1]))
}

// HostTarget is where a web deployment goes.
type HostTarget struct {
	Environment Environment `json:"environment"`
	Host        string      `json:"host"`
	Domain      string      `json:"domain,omitempty"`
}

// HostTarget picks the host for ref. An explicit host wins over the
// descriptor.
func (d *Descriptor) HostTarget(ref, host string) (HostTarget, error) {
	env := EnvironmentFor(ref)
	t := HostTarget{Environment: env}
	switch env {
	case Staging:
		t.Host, t.Domain = d.StaHost, d.StaDomain
	case Production:
		t.Host, t.Domain = d.ProHost, d.ProDomain
	default:
		t.Host, t.Domain = d.DevHost, d.DevDomain
	}
	if host != "" {
		t.Host = host
	}
	if t.Host == "" {
		return HostTarget{}, failure.New(failure.InvalidFormat, "cicd.host_target", "no host for %s environment in cicd.json", env)
	}
	return t, nil
}
