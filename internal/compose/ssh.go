package compose

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

// Runner runs a shell command on a host and returns its stdout.
// A non-zero exit is returned as an error implementing ExitStatus() int.
type Runner interface {
	Run(ctx context.Context, cmd string, stdin []byte) ([]byte, error)
}

// SSHConfig configures SSHRunner.
type SSHConfig struct {
	Host    string
	Port    int
	User    string
	KeyFile string
	// KnownHosts verifies the host key unless InsecureHostKey is set.
	KnownHosts      string
	InsecureHostKey bool
	ConnectTimeout  time.Duration
}

// SSHRunner runs commands over one lazily opened SSH connection.
type SSHRunner struct {
	cfg SSHConfig

	mu     sync.Mutex
	client *ssh.Client
}

func NewSSHRunner(cfg SSHConfig) *SSHRunner {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &SSHRunner{cfg: cfg}
}

func (r *SSHRunner) clientConfig() (*ssh.ClientConfig, error) {
	key, err := os.ReadFile(r.cfg.KeyFile)
	if err != nil {
		return nil, failure.Wrap(failure.CredentialsMissing, "ssh.connect", fmt.Errorf("read SSH key: %w", err))
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, failure.Wrap(failure.InvalidFormat, "ssh.connect", fmt.Errorf("parse SSH private key: %w", err))
	}

	hostKey := ssh.InsecureIgnoreHostKey() //nolint:gosec
	if !r.cfg.InsecureHostKey {
		hostKey, err = knownhosts.New(r.cfg.KnownHosts)
		if err != nil {
			return nil, failure.Wrap(failure.Unknown, "ssh.connect", fmt.Errorf("load known hosts: %w", err))
		}
	}

	return &ssh.ClientConfig{
		User:            r.cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKey,
		Timeout:         r.cfg.ConnectTimeout,
	}, nil
}

func (r *SSHRunner) connect(ctx context.Context) (*ssh.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	config, err := r.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, failure.Network("ssh.connect", fmt.Errorf("SSH dial %s: %w", addr, err))
	}
	_ = conn.SetDeadline(time.Now().Add(r.cfg.ConnectTimeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, failure.Wrap(failure.AuthFailed, "ssh.connect", err)
		}
		return nil, failure.Network("ssh.connect", fmt.Errorf("SSH handshake %s: %w", addr, err))
	}
	_ = conn.SetDeadline(time.Time{})
	r.client = ssh.NewClient(c, chans, reqs)
	return r.client, nil
}

// Run executes cmd in a new session. Cancelling ctx closes the session.
func (r *SSHRunner) Run(ctx context.Context, cmd string, stdin []byte) ([]byte, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, failure.Network("ssh.run", fmt.Errorf("create SSH session: %w", err))
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return nil, failure.Network("ssh.run", ctx.Err())
	case err := <-done:
		if err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
			}
			return stdout.Bytes(), err
		}
	}
	return stdout.Bytes(), nil
}

// Close closes the SSH connection.
func (r *SSHRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		err := r.client.Close()
		r.client = nil
		return err
	}
	return nil
}
