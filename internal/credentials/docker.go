package credentials

import (
	"context"
	"fmt"

	"oras.land/oras-go/v2/registry/remote/credentials"
)

// dockerHubServer is the key Docker clients store Hub logins under.
const dockerHubServer = "https://index.docker.io/v1/"

// DockerConfigProvider reads the registry pair from a docker client config,
// including any credential helper it names.
type DockerConfigProvider struct {
	Path string
	// Server defaults to the Docker Hub entry.
	Server string
}

func (p *DockerConfigProvider) Origin() Origin { return OriginDockerConfig }

func (p *DockerConfigProvider) Lookup(ctx context.Context) (Set, error) {
	store, err := credentials.NewStore(p.Path, credentials.StoreOptions{})
	if err != nil {
		return Set{}, fmt.Errorf("open docker config %s: %w", p.Path, err)
	}
	server := p.Server
	if server == "" {
		server = dockerHubServer
	}
	cred, err := store.Get(ctx, server)
	if err != nil {
		return Set{}, fmt.Errorf("read %s from docker config: %w", server, err)
	}
	// Identity tokens cannot be used for the Hub login endpoint.
	return Set{Registry: Pair{Username: cred.Username, Secret: cred.Password}}, nil
}
