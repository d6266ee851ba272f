package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/display"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/logger"
	"github.com/mamatnurahmat/devops-tools/internal/prompter"
)

var (
	authForce   bool
	authKeyring bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage registry and Bitbucket credentials",
}

var authSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Resolve credentials from every source and save them to ~/.doq/auth.json",
	Args:  cobra.NoArgs,
	Run:   runAuthSync,
}

var authVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Log in to Docker Hub and Bitbucket with the resolved credentials",
	Args:  cobra.NoArgs,
	Run:   runAuthVerify,
}

var authPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local credential file to the bootstrap service",
	Args:  cobra.NoArgs,
	Run:   runAuthPush,
}

func init() {
	authSyncCmd.Flags().BoolVarP(&authForce, "force", "f", false, "Save without asking")
	authSyncCmd.Flags().BoolVar(&authKeyring, "keyring", false, "Also store the credentials in the OS keychain")
	authPushCmd.Flags().BoolVarP(&authForce, "force", "f", false, "Upload without asking")

	authCmd.AddCommand(authSyncCmd, authVerifyCmd, authPushCmd)
}

func runAuthSync(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	s := newSession(cfg)
	set, err := s.Resolve(ctx, credentials.Both)
	if err != nil {
		reportError(err)
		exit(1)
	}
	fmt.Fprintf(os.Stderr, "Registry:       %s\n", set.Registry)
	fmt.Fprintf(os.Stderr, "Source control: %s\n", set.SourceControl)

	if !set.Discovered() && !authKeyring {
		fmt.Fprintln(os.Stderr, "Credentials already saved.")
		return
	}

	if !authForce {
		ok, err := prompter.New().Confirm(fmt.Sprintf("Save credentials to %s?", cfg.Credentials.File), false)
		if err != nil {
			reportError(err)
			exit(1)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Not saved.")
			return
		}
	}

	if set.Discovered() {
		if err := credentials.Save(cfg.Credentials.File, set); err != nil {
			reportError(err)
			exit(1)
		}
		logger.Info().Str("path", cfg.Credentials.File).Msg("credentials saved")
		fmt.Fprintf(os.Stderr, "Saved to %s\n", cfg.Credentials.File)
	}
	if authKeyring {
		if err := credentials.StoreKeyring(ctx, set); err != nil {
			reportError(err)
			exit(1)
		}
		fmt.Fprintln(os.Stderr, "Stored in the OS keychain.")
	}
}

func runAuthVerify(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	s := newSession(cfg)
	set, err := s.Resolve(ctx, credentials.Both)
	if err != nil {
		reportError(err)
		exit(1)
	}

	checks := []display.Check{
		{Name: "Docker Hub", Pair: set.Registry},
		{Name: "Bitbucket", Pair: set.SourceControl},
	}

	// Both checks always run to completion; failures are reported per check.
	var g errgroup.Group
	g.Go(func() error {
		_, checks[0].Err = s.registry().Login(ctx, set.Registry)
		return nil
	})
	g.Go(func() error {
		_, checks[1].Err = s.bitbucket().Verify(ctx)
		return nil
	})
	_ = g.Wait()

	code := 0
	for _, c := range checks {
		if c.Err != nil {
			code = 1
		}
	}

	if opts.json {
		type checkOutput struct {
			Name   string       `json:"name"`
			User   string       `json:"username"`
			Origin string       `json:"origin"`
			Kind   failure.Kind `json:"error_type,omitempty"`
			Error  string       `json:"message,omitempty"`
		}
		out := make([]checkOutput, 0, len(checks))
		for _, c := range checks {
			o := checkOutput{Name: c.Name, User: c.Pair.Username, Origin: string(c.Pair.Origin)}
			if c.Err != nil {
				o.Kind, o.Error = failure.KindOf(c.Err), c.Err.Error()
			}
			out = append(out, o)
		}
		_ = printer().JSON(out)
	} else {
		printer().RenderChecks(checks)
	}
	exit(code)
}

func runAuthPush(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	fields, err := credentials.Load(cfg.Credentials.File)
	if err != nil {
		reportError(failure.Wrap(failure.InvalidFormat, "credentials.load", err))
		exit(1)
	}

	remote := remoteProvider(cfg)
	if !authForce {
		msg := fmt.Sprintf("Upload %d keys from %s to %s for %s?", len(fields), cfg.Credentials.File, remote.URL, remote.Username)
		ok, err := prompter.New().Confirm(msg, false)
		if err != nil {
			reportError(err)
			exit(1)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "Not uploaded.")
			return
		}
	}

	pushCtx, pushCancel := context.WithTimeout(ctx, cfg.Timeout)
	defer pushCancel()
	if err := remote.Push(pushCtx, fields); err != nil {
		reportError(err)
		exit(1)
	}
	logger.Info().Str("user", remote.Username).Msg("credentials pushed")
	fmt.Fprintln(os.Stderr, "Uploaded.")
}
