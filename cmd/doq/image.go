package main

import (
	"github.com/spf13/cobra"

	"github.com/mamatnurahmat/devops-tools/internal/deploy"
)

var imageCmd = &cobra.Command{
	Use:   "image <repo> <ref>",
	Short: "Check that the image for a branch or tag has been published",
	Long: `Resolves the ref, derives <namespace>/<repo>:<short hash> and asks the
registry whether the tag exists. Exits 0 when the image exists or is not
published yet ("ready" tells them apart in --json output), 1 on failure.`,
	Args: cobra.ExactArgs(2),
	Run:  runImage,
}

type imageOutput struct {
	*deploy.Result
	Ready bool `json:"ready"`
}

func runImage(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	s := newSession(cfg)
	res := s.run(ctx, deploy.Request{Repository: args[0], Ref: args[1], CheckOnly: true}, nil)

	if opts.json {
		ready := res.Availability != nil && res.Availability.Exists
		_ = printer().JSON(imageOutput{Result: res, Ready: ready})
	} else {
		printer().Render("image", res)
	}
	exit(res.ExitCode())
}
