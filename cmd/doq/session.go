package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/mamatnurahmat/devops-tools/internal/bitbucket"
	"github.com/mamatnurahmat/devops-tools/internal/cicd"
	"github.com/mamatnurahmat/devops-tools/internal/config"
	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/deploy"
	"github.com/mamatnurahmat/devops-tools/internal/display"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/refs"
	"github.com/mamatnurahmat/devops-tools/internal/registry"
)

// session wires the collaborators of one invocation. Credentials resolved
// through it are kept for the clients built afterwards.
type session struct {
	cfg   *config.Config
	http  *http.Client
	chain *credentials.Resolver
	creds credentials.Set
}

func newSession(cfg *config.Config) *session {
	return &session{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		chain: credentials.NewResolver(credentialOptions(cfg)),
	}
}

func credentialOptions(cfg *config.Config) credentials.Options {
	return credentials.Options{
		RemoteOnly:     cfg.Credentials.RemoteOnly,
		RemoteFallback: cfg.Credentials.RemoteFallback,
		Remote:         remoteProvider(cfg),
		File:           cfg.Credentials.File,
		DockerConfig:   cfg.Registry.DockerConfig,
		Netrc:          cfg.Credentials.Netrc,
		NetrcMachine:   cfg.Credentials.NetrcMachine,
		Keyring:        cfg.Credentials.Keyring,
	}
}

func remoteProvider(cfg *config.Config) *credentials.RemoteProvider {
	return &credentials.RemoteProvider{
		URL:      cfg.Bootstrap.URL,
		Token:    cfg.Bootstrap.Token,
		Username: cfg.Bootstrap.Username,
		Insecure: cfg.Bootstrap.Insecure,
	}
}

// Resolve implements deploy.CredentialSource.
func (s *session) Resolve(ctx context.Context, req credentials.Require) (credentials.Set, error) {
	set, err := s.chain.Resolve(ctx, req)
	if err != nil {
		return set, err
	}
	s.creds = set
	return set, nil
}

func (s *session) bitbucket() *bitbucket.Client {
	c := bitbucket.New(s.cfg.Bitbucket.APIBase, s.cfg.Bitbucket.Org, s.creds.SourceControl)
	c.HTTP = s.http
	return c
}

func (s *session) registry() *registry.Checker {
	c := registry.NewChecker(s.cfg.Registry.HubURL)
	c.HTTP = s.http
	return c
}

// refSource builds the Bitbucket client on each call so it picks up the
// credentials resolved earlier in the run.
type refSource struct{ s *session }

func (r refSource) RefTarget(ctx context.Context, repo string, kind bitbucket.RefKind, name string) (string, error) {
	return r.s.bitbucket().RefTarget(ctx, repo, kind, name)
}

func (r refSource) CommitBranches(ctx context.Context, repo, hash string) ([]string, error) {
	return r.s.bitbucket().CommitBranches(ctx, repo, hash)
}

func (s *session) refs() *refs.Resolver {
	return refs.NewResolver(refSource{s})
}

func (s *session) descriptor(ctx context.Context, repo, ref string) (*cicd.Descriptor, error) {
	return cicd.Fetch(ctx, s.bitbucket(), repo, ref, s.cfg.Bitbucket.CICDPath)
}

func (s *session) engine(reader deploy.StateReader) *deploy.Engine {
	return &deploy.Engine{
		Credentials: s,
		Refs:        s.refs(),
		Registry:    s.registry(),
		Comparator:  deploy.NewComparator(reader),
		Namespace:   s.cfg.Registry.Namespace,
	}
}

// run executes req, showing progress on an interactive stderr.
func (s *session) run(ctx context.Context, req deploy.Request, reader deploy.StateReader) *deploy.Result {
	e := s.engine(reader)
	var spinner *display.Spinner
	if !opts.json && term.IsTerminal(int(os.Stderr.Fd())) {
		spinner = display.NewSpinner(opts.display.NoColor, opts.display.NoEmoji)
		e.Observer = spinner.Observe
	}

	res := e.Run(ctx, req)
	if spinner != nil {
		spinner.Finish(res)
	}
	return res
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printer() *display.Printer {
	return display.NewPrinter(opts.display)
}

type errorOutput struct {
	Kind       failure.Kind `json:"error_type"`
	Message    string       `json:"message"`
	Suggestion string       `json:"suggestion,omitempty"`
}

// reportError prints err in the selected output format.
func reportError(err error) {
	kind := failure.KindOf(err)
	if opts.json {
		_ = printer().JSON(errorOutput{Kind: kind, Message: err.Error(), Suggestion: kind.Suggestion()})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if hint := kind.Suggestion(); hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
}

// applyContext bounds the executor separately from the decision run.
func applyContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, 4*cfg.Timeout)
}
