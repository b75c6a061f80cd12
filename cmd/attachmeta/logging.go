package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logConfig selects the handler and sink of the CLI logger.
type logConfig struct {
	Level  string
	Format string
	File   string
}

// newLogger builds the logger described by cfg. Logs go to stderr unless
// cfg.File is set, in which case they go to a size-rotated file. The
// returned closer is nil when there is nothing to close.
func newLogger(fs afero.Fs, stderr io.Writer, cfg logConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var (
		out    = stderr
		closer io.Closer
	)
	if cfg.File != "" {
		if err := fs.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			Compress:   true,
		}
		out, closer = lj, lj
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text", "":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q: want text or json", cfg.Format)
	}

	return slog.New(handler), closer, nil
}
