package cicd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamatnurahmat/devops-tools/internal/bitbucket"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

type fakeFetcher struct {
	files map[string]string
	err   error
}

func (f fakeFetcher) FetchFile(_ context.Context, repo, ref, path string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.files[repo+"@"+ref+":"+path]
	if !ok {
		return nil, bitbucket.ErrNotFound
	}
	return []byte(data), nil
}

func TestFetch(t *testing.T) {
	f := fakeFetcher{files: map[string]string{
		"svc@develop:cicd/cicd.json": `{"PROJECT":"core","DEPLOYMENT":"svc-api","IMAGE":"svc-image","PORT":3001,"DEVHOST":"10.0.0.5","BUILD":"ignored"}`,
	}}

	d, err := Fetch(context.Background(), f, "svc", "develop", "")
	require.NoError(t, err)
	assert.Equal(t, &Descriptor{
		Project:    "core",
		Deployment: "svc-api",
		Image:      "svc-image",
		Port:       "3001",
		DevHost:    "10.0.0.5",
	}, d)
}

func TestFetchErrors(t *testing.T) {
	_, err := Fetch(context.Background(), fakeFetcher{}, "svc", "develop", "")
	assert.True(t, failure.Is(err, failure.InvalidFormat))

	bad := fakeFetcher{files: map[string]string{"svc@develop:cicd/cicd.json": `{"PORT":[1]}`}}
	_, err = Fetch(context.Background(), bad, "svc", "develop", "")
	assert.True(t, failure.Is(err, failure.InvalidFormat))

	down := fakeFetcher{err: failure.Network("bitbucket.fetch_file", errors.New("unexpected EOF"))}
	_, err = Fetch(context.Background(), down, "svc", "develop", "")
	assert.False(t, failure.Is(err, failure.InvalidFormat))
}

func TestImageField(t *testing.T) {
	assert.Equal(t, "svc-image", (&Descriptor{Image: "svc-image"}).ImageField("svc"))
	assert.Equal(t, "svc", (&Descriptor{}).ImageField("svc"))
	var nilDesc *Descriptor
	assert.Equal(t, "svc", nilDesc.ImageField("svc"))
}

func TestKubeTarget(t *testing.T) {
	d := &Descriptor{Project: "core", Deployment: "svc-api"}

	ns, dep, err := d.KubeTarget("develop", "", "")
	require.NoError(t, err)
	assert.Equal(t, "develop-core", ns)
	assert.Equal(t, "svc-api", dep)

	ns, dep, err = d.KubeTarget("develop", "custom-ns", "custom-dep")
	require.NoError(t, err)
	assert.Equal(t, "custom-ns", ns)
	assert.Equal(t, "custom-dep", dep)

	_, _, err = (&Descriptor{Project: "core"}).KubeTarget("develop", "", "")
	assert.True(t, failure.Is(err, failure.InvalidFormat))

	_, _, err = (&Descriptor{Deployment: "svc-api"}).KubeTarget("develop", "", "")
	assert.True(t, failure.Is(err, failure.InvalidFormat))
}

func TestEnvironmentFor(t *testing.T) {
	tests := map[string]Environment{
		"develop":     Development,
		"Development": Development,
		"staging":     Staging,
		"production":  Production,
		"v1.2.0":      Production,
		"v2":          Production,
		"vnext":       Development,
		"feature/x":   Development,
		"v":           Development,
	}
	for ref, want := range tests {
		assert.Equal(t, want, EnvironmentFor(ref), ref)
	}
}

func TestHostTarget(t *testing.T) {
	d := &Descriptor{
		DevHost: "10.0.0.1", DevDomain: "dev.example.com",
		StaHost: "10.0.0.2",
		ProHost: "10.0.0.3", ProDomain: "example.com",
	}

	got, err := d.HostTarget("v1.0.0", "")
	require.NoError(t, err)
	assert.Equal(t, HostTarget{Environment: Production, Host: "10.0.0.3", Domain: "example.com"}, got)

	got, err = d.HostTarget("staging", "")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", got.Host)

	got, err = d.HostTarget("feature/x", "192.168.1.9")
	require.NoError(t, err)
	assert.Equal(t, HostTarget{Environment: Development, Host: "192.168.1.9", Domain: "dev.example.com"}, got)

	_, err = (&Descriptor{}).HostTarget("develop", "")
	assert.True(t, failure.Is(err, failure.InvalidFormat))
}
