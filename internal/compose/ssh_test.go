package compose

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/mamatnurahmat/devops-tools/internal/failure"
)

func writeKey(t *testing.T) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestSSHRunnerDefaults(t *testing.T) {
	r := NewSSHRunner(SSHConfig{Host: "h"})
	assert.Equal(t, 22, r.cfg.Port)
	assert.Equal(t, 10*time.Second, r.cfg.ConnectTimeout)
	assert.NoError(t, r.Close())
}

func TestSSHRunnerMissingKey(t *testing.T) {
	r := NewSSHRunner(SSHConfig{Host: "127.0.0.1", KeyFile: filepath.Join(t.TempDir(), "nope")})
	_, err := r.Run(context.Background(), "true", nil)
	assert.Equal(t, failure.CredentialsMissing, failure.KindOf(err))
}

func TestSSHRunnerBadKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id_rsa")
	require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))

	r := NewSSHRunner(SSHConfig{Host: "127.0.0.1", KeyFile: path})
	_, err := r.Run(context.Background(), "true", nil)
	assert.Equal(t, failure.InvalidFormat, failure.KindOf(err))
}

func TestSSHRunnerConnectionRefused(t *testing.T) {
	r := NewSSHRunner(SSHConfig{
		Host:            "127.0.0.1",
		Port:            closedPort(t),
		User:            "devops",
		KeyFile:         writeKey(t),
		InsecureHostKey: true,
		ConnectTimeout:  2 * time.Second,
	})
	_, err := r.Run(context.Background(), "true", nil)
	assert.Equal(t, failure.NetworkError, failure.KindOf(err))
}
