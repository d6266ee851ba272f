package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamatnurahmat/devops-tools/internal/credentials"
	"github.com/mamatnurahmat/devops-tools/internal/failure"
	"github.com/mamatnurahmat/devops-tools/internal/image"
)

var (
	hubPair = credentials.Pair{Username: "hub", Secret: "hubpw"}
	svcRef  = image.Reference{Namespace: "acme", Repository: "svc", Tag: "660cbcf"}
)

type fakeHub struct {
	loginStatus int
	loginBody   string
	tagStatus   int
	requests    atomic.Int32
}

func (f *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	switch r.URL.Path {
	case "/v2/users/login/":
		var req loginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if f.loginStatus == 0 && (req.Username != "hub" || req.Password != "hubpw") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.loginStatus != 0 {
			w.WriteHeader(f.loginStatus)
		}
		body := f.loginBody
		if body == "" {
			body = `{"token":"jwt-123"}`
		}
		_, _ = w.Write([]byte(body))
	case "/v2/repositories/acme/svc/tags/660cbcf/":
		if r.Header.Get("Authorization") != "JWT jwt-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		status := f.tagStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newChecker(t *testing.T, hub *fakeHub) *Checker {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return NewChecker(srv.URL + "/")
}

func TestCheckExists(t *testing.T) {
	hub := &fakeHub{}
	res := newChecker(t, hub).Check(context.Background(), svcRef, hubPair)

	assert.Equal(t, &Result{Image: "acme/svc:660cbcf", Exists: true}, res)
	assert.NoError(t, res.Err())
	assert.EqualValues(t, 2, hub.requests.Load())
}

func TestCheckNotFound(t *testing.T) {
	hub := &fakeHub{tagStatus: http.StatusNotFound}
	res := newChecker(t, hub).Check(context.Background(), svcRef, hubPair)

	assert.False(t, res.Exists)
	assert.Equal(t, failure.NotFound, res.Kind)
	assert.Equal(t, "build the image first", res.Suggestion)
	assert.True(t, failure.Is(res.Err(), failure.NotFound))
	assert.EqualValues(t, 2, hub.requests.Load())
}

func TestCheckClassification(t *testing.T) {
	tests := []struct {
		name string
		hub  *fakeHub
		pair credentials.Pair
		want failure.Kind
	}{
		{"wrong password", &fakeHub{}, credentials.Pair{Username: "hub", Secret: "nope"}, failure.AuthFailed},
		{"login forbidden", &fakeHub{loginStatus: http.StatusForbidden}, hubPair, failure.AuthFailed},
		{"login without token", &fakeHub{loginStatus: http.StatusOK, loginBody: `{}`}, hubPair, failure.AuthFailed},
		{"login server error", &fakeHub{loginStatus: http.StatusInternalServerError}, hubPair, failure.Unknown},
		{"login rate limited", &fakeHub{loginStatus: http.StatusTooManyRequests}, hubPair, failure.Unknown},
		{"login garbage", &fakeHub{loginStatus: http.StatusOK, loginBody: `<html>`}, hubPair, failure.Unknown},
		{"tag server error", &fakeHub{tagStatus: http.StatusBadGateway}, hubPair, failure.Unknown},
		{"tag unauthorized", &fakeHub{tagStatus: http.StatusUnauthorized}, hubPair, failure.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newChecker(t, tt.hub).Check(context.Background(), svcRef, tt.pair)
			assert.False(t, res.Exists)
			assert.Equal(t, tt.want, res.Kind)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestCheckRejectsBeforeNetwork(t *testing.T) {
	hub := &fakeHub{}
	c := newChecker(t, hub)

	res := c.Check(context.Background(), image.Reference{Repository: "svc", Tag: "660cbcf"}, hubPair)
	assert.Equal(t, failure.InvalidFormat, res.Kind)

	res = c.Check(context.Background(), svcRef, credentials.Pair{Username: "hub"})
	assert.Equal(t, failure.CredentialsMissing, res.Kind)

	assert.Zero(t, hub.requests.Load())
}

func TestCheckTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := NewChecker(srv.URL).Check(ctx, svcRef, hubPair)
	assert.Equal(t, failure.NetworkTimeout, res.Kind)
	assert.True(t, res.Kind.Retryable())
}

func TestCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	res := NewChecker(base).Check(context.Background(), svcRef, hubPair)
	assert.Equal(t, failure.NetworkError, res.Kind)
}

func TestLogin(t *testing.T) {
	c := newChecker(t, &fakeHub{})

	token, err := c.Login(context.Background(), hubPair)
	require.NoError(t, err)
	assert.Equal(t, "jwt-123", token)

	_, err = c.Login(context.Background(), credentials.Pair{})
	assert.True(t, failure.Is(err, failure.CredentialsMissing))
}
