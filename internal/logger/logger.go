package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults, lumberjack semantics.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Level names accepted in config files.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Format names accepted in config files.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// SlogConfig controls the shell's own structured logging.
type SlogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
	Color  bool   `json:"color" mapstructure:"color"`
	Source bool   `json:"source" mapstructure:"source"`
}

// FileConfig describes rotating file capture for the core's stdout/stderr.
// If StdoutPath/StderrPath are empty and Dir is set, files default to
// Dir/<name>.stdout.log and Dir/<name>.stderr.log.
type FileConfig struct {
	Dir        string `json:"dir" mapstructure:"dir"`
	StdoutPath string `json:"stdout" mapstructure:"stdout"`
	StderrPath string `json:"stderr" mapstructure:"stderr"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// Config is the unified logging configuration: slog for the shell itself,
// rotating files for the supervised core's output.
type Config struct {
	Slog SlogConfig `json:"slog" mapstructure:"slog"`
	File FileConfig `json:"file" mapstructure:"file"`
}

// NewSlogger builds the shell's *slog.Logger from Slog settings.
func (c Config) NewSlogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Slog.Level), AddSource: c.Slog.Source}
	var h slog.Handler
	switch c.Slog.Format {
	case FormatJSON:
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		if c.Slog.Color {
			h = NewColorTextHandler(os.Stderr, opts)
		} else {
			h = slog.NewTextHandler(os.Stderr, opts)
		}
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch s {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Writers returns rotating io.WriteClosers for the named process's stdout
// and stderr. Either may be nil when no destination is configured.
func (c FileConfig) Writers(name string) (io.WriteCloser, io.WriteCloser, error) {
	stdout := c.StdoutPath
	stderr := c.StderrPath
	if stdout == "" && c.Dir != "" {
		stdout = filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name))
	}
	if stderr == "" && c.Dir != "" {
		stderr = filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name))
	}
	var outW, errW io.WriteCloser
	if stdout != "" {
		outW = c.newRotating(stdout)
	}
	if stderr != "" {
		errW = c.newRotating(stderr)
	}
	return outW, errW, nil
}

func (c FileConfig) newRotating(path string) io.WriteCloser {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
