package deploy

import (
	"context"

	"github.com/google/uuid"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/image"
	"github.com/mamatnurahmat/devops-tools/internal/logger"
	"github.com/mamatnurahmat/devops-tools/internal/refs"
	"github.com/mamatnurahmat/devops-tools/internal/registry"
)

// State is a pipeline step. A run moves through the states in order and
// ends in Done or Failed.
type State string

const (
	ResolvingCredentials State = "RESOLVING_CREDENTIALS"
	ResolvingReference   State = "RESOLVING_REFERENCE"
	BuildingImageName    State = "BUILDING_IMAGE_NAME"
	CheckingAvailability State = "CHECKING_AVAILABILITY"
	ReadingState         State = "READING_STATE"
	Deciding             State = "DECIDING"
	Done                 State = "DONE"
	Failed               State = "FAILED"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// CredentialSource resolves the credential pairs a run needs.
type CredentialSource interface {
	Resolve(ctx context.Context, req credentials.Require) (credentials.Set, error)
}

// RefResolver resolves a branch or tag to a commit.
type RefResolver interface {
	Resolve(ctx context.Context, repo, ref string) (*refs.Info, error)
}

// AvailabilityChecker checks that an image has been published.
type AvailabilityChecker interface {
	Check(ctx context.Context, ref image.Reference, pair credentials.Pair) *registry.Result
}

// Plan is what a run needs to know about its repository beyond the ref:
// the image name to publish under and the target to deploy to.
type Plan struct {
	// ImageField replaces the repository name in the image reference.
	ImageField string
	Target     TargetID
}

// PlanFunc produces the Plan once credentials are known.
type PlanFunc func(ctx context.Context, creds credentials.Set) (Plan, error)

// Request is one run.
type Request struct {
	Repository string
	Ref        string

	// CustomImage skips reference resolution and the availability check;
	// the caller vouches for the image.
	CustomImage string

	// CheckOnly stops after the availability check. A missing image then
	// ends the run in Done with the NotFound kind.
	CheckOnly bool

	// Plan is optional. Without it the image is named after the repository
	// and a run must be CheckOnly.
	Plan PlanFunc
	// PlanRequires lists the credentials Plan needs on the custom image
	// path, where nothing else requires them.
	PlanRequires credentials.Require
}

// Result is the structured outcome of a run.
type Result struct {
	RunID        string           `json:"run_id"`
	State        State            `json:"state"`
	Steps        []State          `json:"steps"`
	Repository   string           `json:"repository"`
	Ref          string           `json:"ref"`
	Reference    *refs.Info       `json:"reference,omitempty"`
	Image        string           `json:"image,omitempty"`
	Availability *registry.Result `json:"availability,omitempty"`
	Target       *TargetID        `json:"target,omitempty"`
	Decision     *Decision        `json:"decision,omitempty"`
	Kind         failure.Kind     `json:"error_type,omitempty"`
	Message      string           `json:"message,omitempty"`
	Suggestion   string           `json:"suggestion,omitempty"`
}

// ExitCode is 0 for a run that reached Done and 1 otherwise.
func (r *Result) ExitCode() int {
	if r.State == Done {
		return 0
	}
	return 1
}

// Engine runs the decision pipeline. It holds no state between runs.
type Engine struct {
	Credentials CredentialSource
	Refs        RefResolver
	Registry    AvailabilityChecker
	Comparator  *Comparator
	// Namespace is the registry namespace images are published under.
	Namespace string
	// Observer, when set, is called on every state entered.
	Observer func(State)
}

// Run executes one request and returns its result. The error of the first
// failing step ends the run in Failed with that step's kind.
func (e *Engine) Run(ctx context.Context, req Request) *Result {
	res := &Result{
		RunID:      uuid.NewString(),
		Repository: req.Repository,
		Ref:        req.Ref,
	}
	log := logger.With("run_id", res.RunID)

	enter := func(s State) {
		res.State = s
		res.Steps = append(res.Steps, s)
		log.Debug().Str("state", string(s)).Msg("pipeline state")
		if e.Observer != nil {
			e.Observer(s)
		}
	}
	fail := func(err error) *Result {
		res.Kind = failure.KindOf(err)
		res.Message = err.Error()
		res.Suggestion = res.Kind.Suggestion()
		log.Error().Err(err).Str("kind", string(res.Kind)).Str("step", string(res.State)).Msg("pipeline failed")
		enter(Failed)
		return res
	}

	log.Info().Str("repo", req.Repository).Str("ref", req.Ref).Msg("pipeline started")

	enter(ResolvingCredentials)
	var custom image.Reference
	require := credentials.Both
	if req.CustomImage != "" {
		ref, err := image.ParseCustom(req.CustomImage)
		if err != nil {
			return fail(err)
		}
		custom = ref
		require = req.PlanRequires
	} else if req.Repository == "" || req.Ref == "" {
		return fail(failure.New(failure.InvalidFormat, "deploy.run", "repository and ref are required"))
	}
	if req.Plan == nil && !req.CheckOnly {
		return fail(failure.New(failure.InvalidFormat, "deploy.run", "no deployment target"))
	}
	if req.CheckOnly && !custom.IsZero() {
		return fail(failure.New(failure.InvalidFormat, "deploy.run", "a custom image is not checked against the registry"))
	}

	creds, err := e.Credentials.Resolve(ctx, require)
	if err != nil {
		return fail(err)
	}

	var plan Plan
	var desired image.Reference

	if custom.IsZero() {
		enter(ResolvingReference)
		info, err := e.Refs.Resolve(ctx, req.Repository, req.Ref)
		if err != nil {
			return fail(err)
		}
		res.Reference = info
		if req.Plan != nil {
			if plan, err = req.Plan(ctx, creds); err != nil {
				return fail(err)
			}
		}

		enter(BuildingImageName)
		field := plan.ImageField
		if field == "" {
			field = req.Repository
		}
		desired, err = image.Build(e.Namespace, field, info.ShortHash)
		if err != nil {
			return fail(err)
		}
		res.Image = desired.String()

		enter(CheckingAvailability)
		avail := e.Registry.Check(ctx, desired, creds.Registry)
		res.Availability = avail
		if req.CheckOnly && avail.Kind == failure.NotFound {
			res.Kind = avail.Kind
			res.Message = avail.Message
			res.Suggestion = avail.Suggestion
			log.Info().Str("image", res.Image).Msg("image not published yet")
			enter(Done)
			return res
		}
		if err := avail.Err(); err != nil {
			return fail(err)
		}
		log.Info().Str("image", res.Image).Msg("image available")
		if req.CheckOnly {
			enter(Done)
			return res
		}
	} else {
		desired = custom
		res.Image = desired.String()
		log.Info().Str("image", res.Image).Msg("using custom image")
	}

	enter(ReadingState)
	if !custom.IsZero() {
		if plan, err = req.Plan(ctx, creds); err != nil {
			return fail(err)
		}
	}
	res.Target = &plan.Target
	target, err := e.Comparator.Compare(ctx, plan.Target, desired)
	if err != nil {
		return fail(err)
	}

	enter(Deciding)
	d := Decide(target)
	res.Decision = &d
	log.Info().Str("action", string(d.Action)).Str("target", d.Target.String()).Msg(d.Explanation)

	enter(Done)
	return res
}
