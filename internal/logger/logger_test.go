package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConsoleOnly(t *testing.T) {
	require.NoError(t, Init(Options{Debug: true, NoColor: true}))
	assert.Equal(t, zerolog.DebugLevel, Log.GetLevel())
	assert.Empty(t, FilePath())

	require.NoError(t, Init(Options{}))
	assert.Equal(t, zerolog.InfoLevel, Log.GetLevel())
}

func TestInitWithFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Init(Options{Quiet: true, NoColor: true, Dir: dir, File: FileConfig{Enabled: true, MaxSizeMB: 1}}))
	t.Cleanup(func() { _ = CloseFileWriter() })

	assert.Equal(t, filepath.Join(dir, "doq.log"), FilePath())

	Info().Str("run_id", "abc").Msg("pipeline started")

	data, err := os.ReadFile(FilePath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "pipeline started")
	assert.Contains(t, string(data), `"run_id":"abc"`)
}

func TestFileDisabledSkipsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Init(Options{Dir: dir, File: FileConfig{Enabled: false}}))

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestFileConfigDefaults(t *testing.T) {
	cfg := FileConfig{}
	assert.Equal(t, 50, cfg.maxSizeMB())
	assert.Equal(t, 7, cfg.maxAgeDays())
	assert.Equal(t, 3, cfg.maxBackups())

	cfg = FileConfig{MaxSizeMB: 20, MaxAgeDays: 14, MaxBackups: 5}
	assert.Equal(t, 20, cfg.maxSizeMB())
	assert.Equal(t, 14, cfg.maxAgeDays())
	assert.Equal(t, 5, cfg.maxBackups())
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.DebugLevel)

	l := With("target", "develop-core/api")
	l.Info().Msg("reading state")
	assert.Contains(t, buf.String(), `"target":"develop-core/api"`)
}
