package main

import (
	"github.com/spf13/cobra"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
)

var refCmd = &cobra.Command{
	Use:   "ref <repo> <ref>",
	Short: "Resolve a branch or tag to its commit",
	Args:  cobra.ExactArgs(2),
	Run:   runRef,
}

func runRef(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	s := newSession(cfg)
	if _, err := s.Resolve(ctx, credentials.Require{SourceControl: true}); err != nil {
		reportError(err)
		exit(1)
	}

	info, err := s.refs().Resolve(ctx, args[0], args[1])
	if err != nil {
		reportError(err)
		exit(1)
	}

	if opts.json {
		_ = printer().JSON(info)
		return
	}
	printer().RenderRef(info)
}
