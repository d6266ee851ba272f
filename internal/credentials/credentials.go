// Package credentials resolves the registry and source-control credential
// pairs a deployment needs. Sources are consulted in a fixed order and each
// pair is filled by the first source that holds it complete.
package credentials

import (
	"context"
	"strings"

	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/logger"
)

// Origin names the source a pair came from.
type Origin string

const (
	OriginFile         Origin = "file"
	OriginRemote       Origin = "remote"
	OriginDockerConfig Origin = "docker-config"
	OriginNetrc        Origin = "netrc"
	OriginKeyring      Origin = "keyring"
	OriginEnv          Origin = "env"
	OriginNone         Origin = "none"
)

// Pair is a username and secret. A pair with either field empty is
// treated as absent.
type Pair struct {
	Username string `json:"username"`
	Secret   string `json:"-"`
	Origin   Origin `json:"origin"`
}

// Complete reports whether both fields are set.
func (p Pair) Complete() bool {
	return p.Username != "" && p.Secret != ""
}

func (p Pair) missing() []string {
	var fields []string
	if p.Username == "" {
		fields = append(fields, "username")
	}
	if p.Secret == "" {
		fields = append(fields, "secret")
	}
	return fields
}

// String never includes the secret.
func (p Pair) String() string {
	if !p.Complete() {
		return "<none>"
	}
	return p.Username + " (" + string(p.Origin) + ")"
}

// Set holds both pairs.
type Set struct {
	Registry      Pair `json:"registry"`
	SourceControl Pair `json:"source_control"`
}

// Discovered reports whether any complete pair came from somewhere other
// than the credential file, i.e. whether saving the set would add to it.
func (s Set) Discovered() bool {
	for _, p := range []Pair{s.Registry, s.SourceControl} {
		if p.Complete() && p.Origin != OriginFile {
			return true
		}
	}
	return false
}

// Require lists the pairs a caller cannot do without.
type Require struct {
	Registry      bool
	SourceControl bool
}

// Both requires every pair.
var Both = Require{Registry: true, SourceControl: true}

// Provider is one credential source. Lookup returns whatever the source
// holds; incomplete pairs are ignored by the resolver.
type Provider interface {
	Origin() Origin
	Lookup(ctx context.Context) (Set, error)
}

// Resolver walks an ordered provider chain.
type Resolver struct {
	providers []Provider
	// strict returns the first provider error instead of moving on.
	strict bool
}

// Options selects and configures the sources NewResolver chains together.
type Options struct {
	// RemoteOnly consults only Remote and fails on any error from it.
	RemoteOnly bool
	// RemoteFallback adds Remote right after the file in the normal chain.
	RemoteFallback bool
	Remote         *RemoteProvider

	File         string
	DockerConfig string
	Netrc        string
	NetrcMachine string
	Keyring      bool

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// NewResolver builds the chain described by opts.
func NewResolver(opts Options) *Resolver {
	remote := opts.Remote
	if remote == nil {
		remote = &RemoteProvider{}
	}
	if opts.RemoteOnly {
		return &Resolver{providers: []Provider{remote}, strict: true}
	}

	chain := []Provider{&FileProvider{Path: opts.File}}
	if opts.RemoteFallback {
		chain = append(chain, remote)
	}
	if opts.DockerConfig != "" {
		chain = append(chain, &DockerConfigProvider{Path: opts.DockerConfig})
	}
	if opts.Netrc != "" {
		chain = append(chain, &NetrcProvider{Path: opts.Netrc, Machine: opts.NetrcMachine})
	}
	if opts.Keyring {
		chain = append(chain, &KeyringProvider{})
	}
	chain = append(chain, &EnvProvider{LookupEnv: opts.LookupEnv})
	return &Resolver{providers: chain}
}

// NewChain builds a resolver over an explicit provider list.
func NewChain(strict bool, providers ...Provider) *Resolver {
	return &Resolver{providers: providers, strict: strict}
}

// Resolve fills the required pairs. A required pair that no source holds
// complete fails with CredentialsMissing naming the pair and its missing
// fields.
func (r *Resolver) Resolve(ctx context.Context, req Require) (Set, error) {
	var out Set
	for _, p := range r.providers {
		if done(out, req) {
			break
		}
		found, err := p.Lookup(ctx)
		if err != nil {
			if r.strict {
				return Set{}, err
			}
			logger.Warn().Err(err).Str("source", string(p.Origin())).Msg("credential source skipped")
			continue
		}
		if !out.Registry.Complete() && found.Registry.Complete() {
			out.Registry = found.Registry
			out.Registry.Origin = p.Origin()
		}
		if !out.SourceControl.Complete() && found.SourceControl.Complete() {
			out.SourceControl = found.SourceControl
			out.SourceControl.Origin = p.Origin()
		}
	}

	var problems []string
	if req.Registry && !out.Registry.Complete() {
		problems = append(problems, "registry ("+strings.Join(out.Registry.missing(), ", ")+")")
	}
	if req.SourceControl && !out.SourceControl.Complete() {
		problems = append(problems, "source-control ("+strings.Join(out.SourceControl.missing(), ", ")+")")
	}
	if len(problems) > 0 {
		return Set{}, failure.New(failure.CredentialsMissing, "credentials.resolve",
			"no source holds %s", strings.Join(problems, " and "))
	}

	for _, p := range []*Pair{&out.Registry, &out.SourceControl} {
		if !p.Complete() {
			*p = Pair{Origin: OriginNone}
		}
	}
	logger.Debug().
		Str("registry", string(out.Registry.Origin)).
		Str("source_control", string(out.SourceControl.Origin)).
		Msg("credentials resolved")
	return out, nil
}

func done(s Set, req Require) bool {
	if req.Registry && !s.Registry.Complete() {
		return false
	}
	if req.SourceControl && !s.SourceControl.Complete() {
		return false
	}
	return true
}
