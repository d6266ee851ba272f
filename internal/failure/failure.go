// Package failure classifies everything that can stop a deployment decision.
// Every component returns either a value or a *Error carrying one Kind.
package failure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Kind is the classification of a failure. Kinds are strings so they
// serialize naturally into JSON results.
type Kind string

const (
	// CredentialsMissing means a required credential pair could not be
	// resolved from any source.
	CredentialsMissing Kind = "credentials_missing"

	// AuthFailed means credentials were resolved but rejected remotely.
	AuthFailed Kind = "auth_failed"

	// RefNotFound means neither a branch nor a tag with the name exists.
	RefNotFound Kind = "ref_not_found"

	// InvalidFormat means malformed input was caught before any network call.
	InvalidFormat Kind = "invalid_format"

	// NotFound means the registry confirmed the image does not exist yet.
	NotFound Kind = "not_found"

	// NetworkTimeout means a request exceeded its deadline.
	NetworkTimeout Kind = "network_timeout"

	// NetworkError means a connection could not be established or was lost.
	NetworkError Kind = "network_error"

	// Unknown is anything else. It always carries the raw message.
	Unknown Kind = "unknown"
)

// Retryable reports whether the kind is transient. The core never retries;
// callers use this to decide on backoff.
func (k Kind) Retryable() bool {
	return k == NetworkTimeout || k == NetworkError
}

// Suggestion returns a one-line actionable hint for interactive output.
func (k Kind) Suggestion() string {
	switch k {
	case CredentialsMissing:
		return "add credentials to ~/.doq/auth.json, the environment, or run 'doq auth sync'"
	case AuthFailed:
		return "check that the stored username and secret are still valid"
	case RefNotFound:
		return "check the branch or tag name"
	case InvalidFormat:
		return "use the form namespace/repository:tag"
	case NotFound:
		return "build the image first"
	case NetworkTimeout:
		return "check network connectivity and retry"
	case NetworkError:
		return "check network or firewall settings and retry"
	default:
		return ""
	}
}

// ExitCode maps a kind to the process exit code. The availability signal
// not_found is not an error.
func (k Kind) ExitCode() int {
	if k == "" || k == NotFound {
		return 0
	}
	return 1
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Op      string // component operation, e.g. "registry.login"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a failure without an underlying cause.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Network wraps a transport error with the kind Classify picks for it.
func Network(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, Unknown for an
// unclassified error and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Classify maps a transport error to NetworkTimeout, NetworkError or Unknown.
// A timeout is never reported as a connection error and neither is ever
// reported as "not found".
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NetworkTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NetworkTimeout
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr):
		return NetworkError
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return NetworkError
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return NetworkError
	}
	return Unknown
}
