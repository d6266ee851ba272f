package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mamatnurahmat/devops-tools/internal/deploy"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/logger"
)

// FileName is the compose file kept in each project directory.
const FileName = "docker-compose.yaml"

// exitMissing is the status readFile's command exits with when the
// compose file does not exist.
const exitMissing = 3

// Target names a compose project on a host as a deploy.TargetID.
func Target(host, project string) deploy.TargetID {
	return deploy.TargetID{Runtime: deploy.RuntimeCompose, Scope: host, Name: project}
}

// Host deploys compose projects into $HOME/<project> on one machine.
type Host struct {
	runner Runner

	// Address is the host the runner is connected to.
	Address string
	// Port is the published port written into new compose files.
	Port       string
	TargetPort int
}

func NewHost(runner Runner, address string) *Host {
	return &Host{runner: runner, Address: address}
}

func projectDir(project string) string {
	return "$HOME/" + quote(project)
}

func (h *Host) readFile(ctx context.Context, project string) ([]byte, bool, error) {
	file := projectDir(project) + "/" + FileName
	cmd := fmt.Sprintf("test -f %s || exit %d; cat %s", file, exitMissing, file)

	out, err := h.runner.Run(ctx, cmd, nil)
	if err != nil {
		var exit interface{ ExitStatus() int }
		if errors.As(err, &exit) && exit.ExitStatus() == exitMissing {
			return nil, false, nil
		}
		return nil, false, classify("compose.read", err)
	}
	return out, true, nil
}

// CurrentImage returns the image the project's compose file declares. A
// project without a compose file is reported as not existing.
func (h *Host) CurrentImage(ctx context.Context, project string) (deploy.Observation, error) {
	content, ok, err := h.readFile(ctx, project)
	if err != nil || !ok {
		return deploy.Observation{}, err
	}
	img, err := ParseImage(ctx, content)
	if err != nil {
		return deploy.Observation{}, err
	}
	return deploy.Observation{Image: img, Exists: true}, nil
}

// ReadState implements deploy.StateReader.
func (h *Host) ReadState(ctx context.Context, id deploy.TargetID) (deploy.Observation, error) {
	if id.Runtime != deploy.RuntimeCompose {
		return deploy.Observation{}, failure.New(failure.InvalidFormat, "compose.read_state", "target %s is not a compose target", id)
	}
	if id.Scope != h.Address {
		return deploy.Observation{}, failure.New(failure.InvalidFormat, "compose.read_state", "target %s is not on host %s", id, h.Address)
	}
	return h.CurrentImage(ctx, id.Name)
}

// Apply implements deploy.Executor. It writes the compose file for the
// desired image and restarts the project.
func (h *Host) Apply(ctx context.Context, d deploy.Decision) error {
	if d.Action == deploy.Skip {
		return nil
	}
	if d.Action != deploy.Create && d.Action != deploy.Update {
		return fmt.Errorf("unknown action %q", d.Action)
	}

	project := d.Target.Name
	content, err := Render(Service{Name: project, Image: d.Desired, Port: h.Port, TargetPort: h.TargetPort})
	if err != nil {
		return err
	}

	dir := projectDir(project)
	steps := []struct {
		name  string
		cmd   string
		stdin []byte
	}{
		{"write", fmt.Sprintf("mkdir -p %s && cat > %s/%s", dir, dir, FileName), content},
		{"pull", fmt.Sprintf("cd %s && docker compose pull", dir), nil},
		{"up", fmt.Sprintf("cd %s && docker compose up -d", dir), nil},
	}
	for _, s := range steps {
		logger.Debug().Str("host", h.Address).Str("project", project).Str("step", s.name).Msg("compose")
		if _, err := h.runner.Run(ctx, s.cmd, s.stdin); err != nil {
			return classify("compose."+s.name, err)
		}
	}
	logger.Info().Str("host", h.Address).Str("project", project).Str("image", d.Desired).Msg("compose project applied")
	return nil
}

func classify(op string, err error) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return err
	}
	return failure.Wrap(failure.Unknown, op, err)
}

// quote wraps s in single quotes for a POSIX shell.
func quote(s string) string {
	if s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_.") == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

