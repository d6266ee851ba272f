package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jdx/go-netrc"
)

// NetrcProvider reads the source-control pair from a netrc file.
type NetrcProvider struct {
	Path    string
	Machine string
}

func (p *NetrcProvider) Origin() Origin { return OriginNetrc }

func (p *NetrcProvider) Lookup(_ context.Context) (Set, error) {
	if _, err := os.Stat(p.Path); errors.Is(err, os.ErrNotExist) {
		return Set{}, nil
	}
	n, err := netrc.Parse(p.Path)
	if err != nil {
		return Set{}, fmt.Errorf("parse %s: %w", p.Path, err)
	}
	machine := p.Machine
	if machine == "" {
		machine = "bitbucket.org"
	}
	m := n.Machine(machine)
	if m == nil {
		return Set{}, nil
	}
	return Set{SourceControl: Pair{Username: m.Get("login"), Secret: m.Get("password")}}, nil
}
