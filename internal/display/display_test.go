package display

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/deploy"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/refs"
	"github.com/mamatnurahmat/devops-tools/internal/registry"
)

func plainPrinter(short bool) (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewPrinter(Config{Short: short, NoColor: true, NoEmoji: true, TZ: "+7", Out: &buf}), &buf
}

func updateResult() *deploy.Result {
	previous := "loyaltolpi/web:1111111"
	return &deploy.Result{
		State: deploy.Done,
		Reference: &refs.Info{
			Repository: "web", Name: "v1.2.0", Kind: refs.Tag,
			FullHash: "abc1234def5678abc1234def5678abc1234def5", ShortHash: "abc1234", Branch: "main",
		},
		Image:        "loyaltolpi/web:abc1234",
		Availability: &registry.Result{Image: "loyaltolpi/web:abc1234", Exists: true},
		Decision: &deploy.Decision{
			Action:      deploy.Update,
			Target:      deploy.TargetID{Runtime: deploy.RuntimeKubernetes, Scope: "staging-ns", Name: "web"},
			Desired:     "loyaltolpi/web:abc1234",
			Previous:    &previous,
			Explanation: "kubernetes:staging-ns/web runs loyaltolpi/web:1111111; updating to loyaltolpi/web:abc1234",
		},
	}
}

func TestRenderFull(t *testing.T) {
	p, buf := plainPrinter(false)
	p.Render("deploy", updateResult())

	out := buf.String()
	assert.Contains(t, out, "doq deploy")
	assert.Contains(t, out, "UTC+7")
	assert.Contains(t, out, "REFERENCE")
	assert.Contains(t, out, "v1.2.0 (tag)")
	assert.Contains(t, out, "Branch:")
	assert.Contains(t, out, "published")
	assert.Contains(t, out, "kubernetes:staging-ns/web")
	assert.Contains(t, out, "loyaltolpi/web:1111111")
	assert.Contains(t, out, "Update")
	assert.NotContains(t, out, "\033[")
}

func TestRenderShort(t *testing.T) {
	p, buf := plainPrinter(true)
	p.Render("deploy", updateResult())

	out := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(out, "[~] UPDATE"), out)
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestRenderFailure(t *testing.T) {
	p, buf := plainPrinter(false)
	p.Render("deploy", &deploy.Result{
		State:      deploy.Failed,
		Kind:       failure.AuthFailed,
		Message:    "registry.login: rejected",
		Suggestion: failure.AuthFailed.Suggestion(),
	})

	out := buf.String()
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "auth_failed")
	assert.Contains(t, out, "registry.login: rejected")
	assert.Contains(t, out, "Hint:")
}

func TestRenderNotPublished(t *testing.T) {
	p, buf := plainPrinter(true)
	p.Render("image", &deploy.Result{
		State: deploy.Done,
		Image: "loyaltolpi/web:abc1234",
		Kind:  failure.NotFound,
	})
	assert.Contains(t, buf.String(), "loyaltolpi/web:abc1234 not published")
}

func TestRenderCreateHasNoPrevious(t *testing.T) {
	p, buf := plainPrinter(false)
	p.Render("deploy", &deploy.Result{
		State: deploy.Done,
		Image: "loyaltolpi/web:abc1234",
		Decision: &deploy.Decision{
			Action:  deploy.Create,
			Target:  deploy.TargetID{Runtime: deploy.RuntimeCompose, Scope: "10.0.0.5", Name: "web"},
			Desired: "loyaltolpi/web:abc1234",
		},
	})
	out := buf.String()
	assert.Contains(t, out, "Running:")
	assert.Contains(t, out, "none")
	assert.Contains(t, out, "[+] Status:")
	assert.Contains(t, out, "Create")
}

func TestApplied(t *testing.T) {
	d := &deploy.Decision{Action: deploy.Update, Target: deploy.TargetID{Runtime: "kubernetes", Scope: "ns", Name: "web"}}

	p, buf := plainPrinter(false)
	p.Applied(d, true, nil)
	assert.Contains(t, buf.String(), "dry run, UPDATE not applied")

	p, buf = plainPrinter(false)
	p.Applied(d, false, nil)
	assert.Contains(t, buf.String(), "UPDATE applied to kubernetes:ns/web")

	p, buf = plainPrinter(false)
	p.Applied(d, false, failure.New(failure.NetworkTimeout, "kube.set_image", "deadline"))
	assert.Contains(t, buf.String(), "kube.set_image: deadline")
	assert.Contains(t, buf.String(), "retry")
}

func TestRenderChecks(t *testing.T) {
	p, buf := plainPrinter(false)
	p.RenderChecks([]Check{
		{Name: "Registry", Pair: credentials.Pair{Username: "bot", Secret: "s", Origin: credentials.OriginEnv}},
		{Name: "Bitbucket", Pair: credentials.Pair{Username: "dev", Secret: "s", Origin: credentials.OriginFile}, Err: errors.New("HTTP 401")},
	})

	out := buf.String()
	assert.Contains(t, out, "bot (env) accepted")
	assert.Contains(t, out, "dev (file) HTTP 401")
	assert.NotContains(t, out, " s ")
}

func TestJSON(t *testing.T) {
	p, buf := plainPrinter(false)
	require.NoError(t, p.JSON(updateResult()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "loyaltolpi/web:abc1234", decoded["image"])
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "42s", humanDuration(42*time.Second))
	assert.Equal(t, "5m", humanDuration(5*time.Minute))
	assert.Equal(t, "2h 3m", humanDuration(2*time.Hour+3*time.Minute))
	assert.Equal(t, "1d 1h", humanDuration(25*time.Hour+10*time.Minute))
}

func TestParseTZ(t *testing.T) {
	assert.Equal(t, "UTC+7", parseTZ("+7").String())
	assert.Equal(t, "UTC-5", parseTZ("-5").String())
	assert.Equal(t, time.Local, parseTZ(""))
	assert.Equal(t, time.Local, parseTZ("not a zone"))
}

func TestSpinnerFinish(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, true, true)
	s.Observe(deploy.CheckingAvailability)
	s.Finish(&deploy.Result{
		State: deploy.Failed,
		Steps: []deploy.State{deploy.ResolvingCredentials, deploy.CheckingAvailability, deploy.Failed},
	})
	assert.Contains(t, buf.String(), "Checking registry failed")

	buf.Reset()
	s = newSpinner(&buf, true, true)
	s.Finish(&deploy.Result{State: deploy.Done})
	s.ClearLine()
	assert.Contains(t, buf.String(), "Done")
}
