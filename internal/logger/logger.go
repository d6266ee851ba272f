// Package logger holds the process-wide zerolog logger. Console output goes
// to stderr so stdout stays free for command results; an optional rotated
// JSON file keeps the full history of every invocation.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Log is the global logger instance
	Log = zerolog.Nop()

	fileWriter *lumberjack.Logger
)

// FileConfig controls the rotated log file.
type FileConfig struct {
	Enabled    bool
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

func (c FileConfig) maxSizeMB() int {
	if c.MaxSizeMB <= 0 {
		return 50
	}
	return c.MaxSizeMB
}

func (c FileConfig) maxAgeDays() int {
	if c.MaxAgeDays <= 0 {
		return 7
	}
	return c.MaxAgeDays
}

func (c FileConfig) maxBackups() int {
	if c.MaxBackups <= 0 {
		return 3
	}
	return c.MaxBackups
}

// Options configures Init.
type Options struct {
	Debug   bool
	Quiet   bool // console shows warnings and errors only (JSON output mode)
	NoColor bool
	Dir     string
	File    FileConfig
}

// Init configures Log. With a directory and file logging enabled, events are
// written to both the console and dir/doq.log.
func Init(opts Options) error {
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	consoleLevel := level
	if opts.Quiet && consoleLevel < zerolog.WarnLevel {
		consoleLevel = zerolog.WarnLevel
	}
	console := &zerolog.FilteredLevelWriter{
		Writer: zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    opts.NoColor,
		}},
		Level: consoleLevel,
	}

	if opts.Dir == "" || !opts.File.Enabled {
		Log = zerolog.New(console).Level(level).With().Timestamp().Logger()
		return nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}

	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "doq.log"),
		MaxSize:    opts.File.maxSizeMB(),
		MaxAge:     opts.File.maxAgeDays(),
		MaxBackups: opts.File.maxBackups(),
		LocalTime:  true,
	}

	multi := zerolog.MultiLevelWriter(console, fileWriter)
	Log = zerolog.New(multi).Level(level).With().Timestamp().Logger()
	return nil
}

// SetOutput points Log at w. Tests use it to capture events.
func SetOutput(w io.Writer, level zerolog.Level) {
	Log = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// CloseFileWriter closes the log file, if one is open.
func CloseFileWriter() error {
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// FilePath returns the active log file, or "" when file logging is off.
func FilePath() string {
	if fileWriter != nil {
		return fileWriter.Filename
	}
	return ""
}

func Debug() *zerolog.Event { return Log.Debug() }
func Info() *zerolog.Event  { return Log.Info() }
func Warn() *zerolog.Event  { return Log.Warn() }
func Error() *zerolog.Event { return Log.Error() }

// With returns a child logger carrying key=value on every event.
func With(key, value string) zerolog.Logger {
	return Log.With().Str(key, value).Logger()
}
