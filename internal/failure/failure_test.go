package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, NetworkTimeout},
		{"wrapped deadline", fmt.Errorf("login: %w", context.DeadlineExceeded), NetworkTimeout},
		{"url timeout", &url.Error{Op: "Get", URL: "https://hub", Err: timeoutErr{}}, NetworkTimeout},
		{"dial refused", &url.Error{Op: "Post", URL: "https://hub", Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}}, NetworkError},
		{"dns", &net.DNSError{Err: "no such host", Name: "hub.invalid"}, NetworkError},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), NetworkError},
		{"other", errors.New("boom"), Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))

	err := fmt.Errorf("resolve: %w", New(RefNotFound, "refs.resolve", "ref %q not found", "feature"))
	assert.Equal(t, RefNotFound, KindOf(err))
	assert.True(t, Is(err, RefNotFound))
	assert.False(t, Is(err, NotFound))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("HTTP 500")
	err := Wrap(Unknown, "registry.lookup", cause)
	require.Error(t, err)
	assert.Equal(t, "registry.lookup: HTTP 500", err.Error())
	assert.ErrorIs(t, err, cause)

	withMsg := &Error{Kind: AuthFailed, Op: "registry.login", Message: "login rejected", Err: cause}
	assert.Equal(t, "registry.login: login rejected: HTTP 500", withMsg.Error())

	assert.NoError(t, Wrap(Unknown, "op", nil))
	assert.NoError(t, Network("op", nil))
}

func TestKindBehaviour(t *testing.T) {
	assert.True(t, NetworkTimeout.Retryable())
	assert.True(t, NetworkError.Retryable())
	assert.False(t, AuthFailed.Retryable())
	assert.False(t, NotFound.Retryable())

	assert.Equal(t, 0, NotFound.ExitCode())
	assert.Equal(t, 0, Kind("").ExitCode())
	for _, k := range []Kind{CredentialsMissing, AuthFailed, RefNotFound, InvalidFormat, NetworkTimeout, NetworkError, Unknown} {
		assert.Equal(t, 1, k.ExitCode(), k)
	}

	assert.Equal(t, "build the image first", NotFound.Suggestion())
	assert.Empty(t, Unknown.Suggestion())
}
