package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamatnurahmat/devops-tools/internal/image"
)

var apiTarget = TargetID{Runtime: RuntimeKubernetes, Scope: "develop-core", Name: "svc"}

func mustParse(t *testing.T, s string) image.Reference {
	t.Helper()
	ref, err := image.Parse(s)
	require.NoError(t, err)
	return ref
}

func TestDecideCreate(t *testing.T) {
	d := Decide(Target{ID: apiTarget, Desired: mustParse(t, "acme/svc:660cbcf")})

	assert.Equal(t, Create, d.Action)
	assert.Equal(t, "acme/svc:660cbcf", d.Desired)
	assert.Nil(t, d.Previous)
	assert.Equal(t, apiTarget, d.Target)
}

func TestDecideUpdate(t *testing.T) {
	d := Decide(Target{
		ID:       apiTarget,
		Observed: Observation{Image: "acme/svc:abc1234", Exists: true},
		Desired:  mustParse(t, "acme/svc:660cbcf"),
	})

	assert.Equal(t, Update, d.Action)
	require.NotNil(t, d.Previous)
	assert.Equal(t, "acme/svc:abc1234", *d.Previous)
	assert.Contains(t, d.Explanation, "acme/svc:abc1234")
}

func TestDecideSkip(t *testing.T) {
	d := Decide(Target{
		ID:       apiTarget,
		Observed: Observation{Image: "acme/svc:660cbcf", Exists: true},
		Desired:  mustParse(t, "acme/svc:660cbcf"),
	})

	assert.Equal(t, Skip, d.Action)
	require.NotNil(t, d.Previous)
	assert.Equal(t, "acme/svc:660cbcf", *d.Previous)
}

func TestDecideIsSyntactic(t *testing.T) {
	// Same content under a registry-qualified name still counts as different.
	d := Decide(Target{
		ID:       apiTarget,
		Observed: Observation{Image: "docker.io/acme/svc:660cbcf", Exists: true},
		Desired:  mustParse(t, "acme/svc:660cbcf"),
	})
	assert.Equal(t, Update, d.Action)
}

func TestDecideIsPure(t *testing.T) {
	targets := []Target{
		{ID: apiTarget, Desired: mustParse(t, "acme/svc:660cbcf")},
		{ID: apiTarget, Observed: Observation{Image: "acme/svc:abc1234", Exists: true}, Desired: mustParse(t, "acme/svc:660cbcf")},
		{ID: apiTarget, Observed: Observation{Image: "acme/svc:660cbcf", Exists: true}, Desired: mustParse(t, "acme/svc:660cbcf")},
	}
	for _, tg := range targets {
		first := Decide(tg)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Decide(tg))
		}
	}
}
