package main

import (
	"fmt"
	"os"
	"time"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"

	"github.com/mamatnurahmat/devops-tools/internal/config"
	"github.com/mamatnurahmat/devops-tools/internal/display"
	"github.com/mamatnurahmat/devops-tools/internal/logger"
)

var version = "dev"

// options holds the global flags.
type options struct {
	configPath string
	remoteOnly bool
	timeout    time.Duration
	debug      bool
	json       bool
	display    display.Config
}

var (
	opts options
	cfg  *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "doq",
	Short:   "Decide and apply image deployments from a branch or tag",
	Version: version,
	Long: `Resolves a branch or tag to its commit, derives the image name from the
short hash, checks that the image was published and compares it with what
a target runs. The decision is SKIP, CREATE or UPDATE.

Targets: Kubernetes deployments and docker compose projects over SSH.`,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.CloseFileWriter()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default ~/.doq/config.yaml)")
	pf.BoolVar(&opts.remoteOnly, "remote-only", false, "Fetch credentials from the bootstrap service only")
	pf.DurationVar(&opts.timeout, "timeout", 0, "Timeout for each network call (default from config, 30s)")
	pf.BoolVar(&opts.debug, "debug", false, "Verbose logging on stderr")
	pf.BoolVar(&opts.json, "json", false, "Print the result as JSON")
	pf.BoolVarP(&opts.display.Short, "short", "s", false, "Compact output (1 line)")
	pf.StringVar(&opts.display.TZ, "tz", "", "Timezone: IANA name or numeric offset (+7, -5)")
	pf.BoolVar(&opts.display.NoColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&opts.display.NoEmoji, "no-emoji", false, "Disable emojis")

	rootCmd.AddCommand(imageCmd, refCmd, deployK8sCmd, deployWebCmd, authCmd)
}

// setup loads the config, applies flag overrides and starts logging.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("remote-only") {
		loaded.Credentials.RemoteOnly = opts.remoteOnly
	}
	if opts.timeout > 0 {
		loaded.Timeout = opts.timeout
	}
	cfg = loaded

	return logger.Init(logger.Options{
		Debug:   opts.debug,
		Quiet:   !opts.debug,
		NoColor: opts.display.NoColor,
		Dir:     cfg.Log.Dir,
		File: logger.FileConfig{
			Enabled:    cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			MaxBackups: cfg.Log.MaxBackups,
		},
	})
}

// exit flushes the log file before leaving with code.
func exit(code int) {
	_ = logger.CloseFileWriter()
	os.Exit(code)
}

func main() {
	cc.Init(&cc.Config{
		RootCmd:       rootCmd,
		Headings:      cc.HiCyan + cc.Bold + cc.Underline,
		Commands:      cc.HiYellow + cc.Bold,
		Aliases:       cc.Bold + cc.Italic,
		ExecName:      cc.Bold,
		Flags:         cc.Bold,
		FlagsDataType: cc.Italic + cc.HiBlue,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}
