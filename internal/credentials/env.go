package credentials

import (
	"context"
	"os"
)

// Environment names, primary first. The later names are what older tooling
// exported.
var (
	envRegistryUser   = []string{"DOCKERHUB_USER", "DOCKERHUB_USERNAME", "DOCKER_USERNAME"}
	envRegistrySecret = []string{"DOCKERHUB_PASSWORD", "DOCKERHUB_TOKEN", "DOCKER_PASSWORD"}
	envGitUser        = []string{"GIT_USER", "BITBUCKET_USER"}
	envGitSecret      = []string{"GIT_PASSWORD", "BITBUCKET_TOKEN", "BITBUCKET_APP_PASSWORD"}
)

// EnvProvider reads both pairs from environment variables.
type EnvProvider struct {
	LookupEnv func(string) (string, bool)
}

func (p *EnvProvider) Origin() Origin { return OriginEnv }

func (p *EnvProvider) Lookup(_ context.Context) (Set, error) {
	return Set{
		Registry:      Pair{Username: p.first(envRegistryUser), Secret: p.first(envRegistrySecret)},
		SourceControl: Pair{Username: p.first(envGitUser), Secret: p.first(envGitSecret)},
	}, nil
}

func (p *EnvProvider) first(names []string) string {
	lookup := p.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range names {
		if v, ok := lookup(name); ok && v != "" {
			return v
		}
	}
	return ""
}
