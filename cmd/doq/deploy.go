package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mamatnurahmat/devops-tools/internal/compose"
	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/deploy"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/kube"
	"github.com/mamatnurahmat/devops-tools/internal/logger"
)

var (
	deployImage      string
	deployNamespace  string
	deployDeployment string
	deployHost       string
	deployDryRun     bool
)

var deployK8sCmd = &cobra.Command{
	Use:   "deploy-k8s <repo> <ref>",
	Short: "Deploy the image for a branch or tag to Kubernetes",
	Long: `Runs the decision pipeline against a Deployment and applies the result.
The namespace defaults to <ref>-<PROJECT> and the deployment to DEPLOYMENT,
both read from the repository's cicd/cicd.json at the ref.`,
	Args: cobra.ExactArgs(2),
	Run:  runDeployK8s,
}

var deployWebCmd = &cobra.Command{
	Use:   "deploy-web <repo> <ref>",
	Short: "Deploy the image for a branch or tag to a docker compose host",
	Long: `Runs the decision pipeline against the compose project <repo> in the
home directory of the SSH user and applies the result. The host is picked
from cicd/cicd.json by environment: develop, staging, production or a
version tag.`,
	Args: cobra.ExactArgs(2),
	Run:  runDeployWeb,
}

func init() {
	for _, c := range []*cobra.Command{deployK8sCmd, deployWebCmd} {
		c.Flags().StringVar(&deployImage, "image", "", "Deploy this image instead of the one built from the ref")
		c.Flags().BoolVar(&deployDryRun, "dry-run", false, "Decide but do not apply")
	}
	deployK8sCmd.Flags().StringVarP(&deployNamespace, "namespace", "n", "", "Target namespace")
	deployK8sCmd.Flags().StringVar(&deployDeployment, "deployment", "", "Target deployment")
	deployWebCmd.Flags().StringVar(&deployHost, "host", "", "Target host")
}

type deployOutput struct {
	*deploy.Result
	DryRun     bool   `json:"dry_run"`
	Applied    bool   `json:"applied"`
	ApplyError string `json:"apply_error,omitempty"`
}

// finishDeploy applies a decided result unless this is a dry run, prints
// the outcome and returns the exit code.
func finishDeploy(ctx context.Context, res *deploy.Result, executor deploy.Executor) int {
	out := deployOutput{Result: res, DryRun: deployDryRun}
	code := res.ExitCode()

	var applyErr error
	if res.Decision != nil && !deployDryRun && res.Decision.Action != deploy.Skip {
		applyCtx, cancel := applyContext(ctx)
		applyErr = executor.Apply(applyCtx, *res.Decision)
		cancel()
		if applyErr != nil {
			logger.Error().Err(applyErr).Str("run_id", res.RunID).Msg("apply failed")
			out.ApplyError = applyErr.Error()
			code = 1
		} else {
			out.Applied = true
		}
	}

	if opts.json {
		_ = printer().JSON(out)
		return code
	}
	p := printer()
	p.Render("deploy", res)
	if res.Decision != nil && !opts.display.Short {
		p.Applied(res.Decision, deployDryRun, applyErr)
	}
	return code
}

func runDeployK8s(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()
	repo, ref := args[0], args[1]

	client, err := kube.NewClient(kube.Options{Kubeconfig: cfg.Kube.Kubeconfig, Context: cfg.Kube.Context})
	if err != nil {
		reportError(failure.Wrap(failure.Unknown, "kube.connect", err))
		exit(1)
	}

	s := newSession(cfg)
	req := deploy.Request{Repository: repo, Ref: ref, CustomImage: deployImage}

	if deployImage != "" && deployNamespace != "" && deployDeployment != "" {
		target := kube.Target(deployNamespace, deployDeployment)
		req.Plan = func(context.Context, credentials.Set) (deploy.Plan, error) {
			return deploy.Plan{Target: target}, nil
		}
	} else {
		req.PlanRequires = credentials.Require{SourceControl: true}
		req.Plan = func(ctx context.Context, _ credentials.Set) (deploy.Plan, error) {
			desc, err := s.descriptor(ctx, repo, ref)
			if err != nil {
				return deploy.Plan{}, err
			}
			ns, name, err := desc.KubeTarget(ref, deployNamespace, deployDeployment)
			if err != nil {
				return deploy.Plan{}, err
			}
			return deploy.Plan{ImageField: desc.ImageField(repo), Target: kube.Target(ns, name)}, nil
		}
	}

	res := s.run(ctx, req, client)
	exit(finishDeploy(ctx, res, client))
}

// webTarget connects to the compose host once the plan has named it.
type webTarget struct {
	host *compose.Host
}

func (w *webTarget) ReadState(ctx context.Context, id deploy.TargetID) (deploy.Observation, error) {
	return w.host.ReadState(ctx, id)
}

func (w *webTarget) Apply(ctx context.Context, d deploy.Decision) error {
	return w.host.Apply(ctx, d)
}

func runDeployWeb(cmd *cobra.Command, args []string) {
	ctx, cancel := signalContext()
	defer cancel()
	repo, ref := args[0], args[1]

	s := newSession(cfg)
	web := &webTarget{}
	var runner *compose.SSHRunner

	req := deploy.Request{
		Repository:   repo,
		Ref:          ref,
		CustomImage:  deployImage,
		PlanRequires: credentials.Require{SourceControl: true},
		Plan: func(ctx context.Context, _ credentials.Set) (deploy.Plan, error) {
			desc, err := s.descriptor(ctx, repo, ref)
			if err != nil {
				return deploy.Plan{}, err
			}
			target, err := desc.HostTarget(ref, deployHost)
			if err != nil {
				return deploy.Plan{}, err
			}
			if desc.Port == "" {
				return deploy.Plan{}, failure.New(failure.InvalidFormat, "cicd.port", "PORT field not found in cicd.json")
			}
			logger.Info().Str("environment", string(target.Environment)).Str("host", target.Host).Msg("web target")

			runner = compose.NewSSHRunner(compose.SSHConfig{
				Host:            target.Host,
				Port:            cfg.SSH.Port,
				User:            cfg.SSH.User,
				KeyFile:         cfg.SSH.KeyFile,
				KnownHosts:      cfg.SSH.KnownHosts,
				InsecureHostKey: cfg.SSH.InsecureHostKey,
				ConnectTimeout:  cfg.Timeout,
			})
			web.host = compose.NewHost(runner, target.Host)
			web.host.Port = string(desc.Port)
			web.host.TargetPort = cfg.SSH.TargetPort
			return deploy.Plan{ImageField: desc.ImageField(repo), Target: compose.Target(target.Host, repo)}, nil
		},
	}

	res := s.run(ctx, req, web)
	code := finishDeploy(ctx, res, web)
	if runner != nil {
		_ = runner.Close()
	}
	exit(code)
}
