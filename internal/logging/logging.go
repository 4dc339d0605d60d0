// Package logging builds the process-wide slog logger from flags and config.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/btdsl/internal/config"
)

// Options is the resolved logging configuration.
type Options struct {
	Level  slog.Level
	Format string
	// File is the log file path; empty logs to the fallback writer.
	File      string
	MaxSizeMB int
	MaxFiles  int
}

// Resolve merges logging flags with config. Non-empty flags win, then config
// and BTDSL_* env vars via the schema, then schema defaults.
func Resolve(flagFile, flagLevel, flagFormat string, cfg *config.Config) (Options, error) {
	schema := config.DefaultSchema()
	pick := func(flag, key string) string {
		if flag != "" {
			return flag
		}
		return schema.Resolve(cfg, "", key)
	}

	var opts Options
	level, err := ParseLevel(pick(flagLevel, "log.level"))
	if err != nil {
		return opts, err
	}
	opts.Level = level

	switch format := strings.ToLower(pick(flagFormat, "log.format")); format {
	case "text", "json":
		opts.Format = format
	default:
		return opts, fmt.Errorf("invalid log format: %s", format)
	}

	opts.File = pick(flagFile, "log.file")
	opts.MaxSizeMB = schema.ResolveInt(cfg, "", "log.max-size-mb")
	opts.MaxFiles = schema.ResolveInt(cfg, "", "log.max-files")
	return opts, nil
}

// ParseLevel parses debug, info, warn or error, case-insensitively. Empty
// means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// New builds a logger for opts. Without a file it writes to fallback. The
// returned closer releases the log file and is never nil.
func New(opts Options, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	var (
		w      = fallback
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		rw, err := NewRotatingFileWriter(opts.File, opts.MaxSizeMB, opts.MaxFiles)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		w, closer = rw, rw
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var h slog.Handler
	if opts.Format == "json" {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(h), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
