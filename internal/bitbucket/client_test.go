package bitbucket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

var testAuth = credentials.Pair{Username: "bb", Secret: "app-pw"}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "acme", testAuth)
}

func TestRefTarget(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "bb", user)
		assert.Equal(t, "app-pw", pass)

		switch r.URL.Path {
		case "/repositories/acme/svc/refs/branches/develop":
			_, _ = w.Write([]byte(`{"name":"develop","target":{"hash":"660cbcfd1a2b3c4d5e6f708192a3b4c5d6e7f80"}}`))
		case "/repositories/acme/svc/refs/branches/feature/login":
			_, _ = w.Write([]byte(`{"name":"feature/login","target":{"hash":"abc1234def"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	hash, err := c.RefTarget(context.Background(), "svc", Branches, "develop")
	require.NoError(t, err)
	assert.Equal(t, "660cbcfd1a2b3c4d5e6f708192a3b4c5d6e7f80", hash)

	hash, err = c.RefTarget(context.Background(), "svc", Branches, "feature/login")
	require.NoError(t, err)
	assert.Equal(t, "abc1234def", hash)

	_, err = c.RefTarget(context.Background(), "svc", Tags, "develop")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		kind   failure.Kind
	}{
		{http.StatusUnauthorized, failure.AuthFailed},
		{http.StatusForbidden, failure.AuthFailed},
		{http.StatusInternalServerError, failure.Unknown},
		{http.StatusTooManyRequests, failure.Unknown},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		})
		_, err := c.RefTarget(context.Background(), "svc", Branches, "develop")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, tt.kind, failure.KindOf(err), tt.status)
	}
}

func TestTimeoutIsClassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.RefTarget(ctx, "svc", Branches, "develop")
	assert.True(t, failure.Is(err, failure.NetworkTimeout), err)
}

func TestConnectionRefusedIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(base, "acme", testAuth)
	_, err := c.RefTarget(context.Background(), "svc", Branches, "develop")
	assert.True(t, failure.Is(err, failure.NetworkError), err)
}

func TestCommitBranches(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repositories/acme/svc/commit/abc1234/branches", r.URL.Path)
		_, _ = w.Write([]byte(`{"values":[{"name":"main"},{"name":""},{"name":"release"}]}`))
	})

	names, err := c.CommitBranches(context.Background(), "svc", "abc1234")
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "release"}, names)
}

func TestFetchFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repositories/acme/svc/src/develop/cicd/cicd.json" {
			_, _ = w.Write([]byte(`{"PROJECT":"core"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	data, err := c.FetchFile(context.Background(), "svc", "develop", "cicd/cicd.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"PROJECT":"core"}`, string(data))

	_, err = c.FetchFile(context.Background(), "svc", "develop", "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		_, _ = w.Write([]byte(`{"username":"bb","display_name":"Build Bot"}`))
	})

	u, err := c.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &User{Username: "bb", DisplayName: "Build Bot"}, u)

	_, err = New("http://127.0.0.1:1", "acme", credentials.Pair{Username: "bb"}).Verify(context.Background())
	assert.True(t, failure.Is(err, failure.CredentialsMissing))
}
