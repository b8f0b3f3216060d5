// Package logging builds the process zerolog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/praetorian-inc/securelink/pkg/config"
	"github.com/rs/zerolog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Builder assembles a zerolog.Logger writing to the console and optionally
// to a rotating file.
type Builder struct {
	level      zerolog.Level
	format     Format
	console    io.Writer
	file       string
	maxSizeMB  int
	maxBackups int
	err        error
}

// NewBuilder returns a builder for an info-level console logger on stderr.
func NewBuilder() *Builder {
	return &Builder{
		level:      zerolog.InfoLevel,
		format:     FormatConsole,
		console:    os.Stderr,
		maxSizeMB:  100,
		maxBackups: 3,
	}
}

// WithConfig applies the log section of the configuration file.
func (b *Builder) WithConfig(cfg config.LogConfig) *Builder {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		b.err = fmt.Errorf("log level: %w", err)
		return b
	}
	b.level = level
	b.format = ParseFormat(cfg.Format)
	b.file = cfg.File
	if cfg.MaxSizeMB > 0 {
		b.maxSizeMB = cfg.MaxSizeMB
	}
	if cfg.MaxBackups > 0 {
		b.maxBackups = cfg.MaxBackups
	}
	return b
}

// WithLevel overrides the level, e.g. from --verbose or --quiet.
func (b *Builder) WithLevel(level zerolog.Level) *Builder {
	b.level = level
	return b
}

// WithConsole replaces the console writer. nil disables console output.
func (b *Builder) WithConsole(w io.Writer) *Builder {
	b.console = w
	return b
}

// Build creates the logger.
func (b *Builder) Build() (zerolog.Logger, error) {
	if b.err != nil {
		return zerolog.Nop(), b.err
	}

	var writers []io.Writer
	if b.console != nil {
		writers = append(writers, wrap(b.format, b.console, isTerminal(b.console)))
	}
	if b.file != "" {
		if err := os.MkdirAll(filepath.Dir(b.file), 0o755); err != nil {
			return zerolog.Nop(), fmt.Errorf("creating log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   b.file,
			MaxSize:    b.maxSizeMB,
			MaxBackups: b.maxBackups,
			LocalTime:  true,
		}
		format := b.format
		if format == FormatConsole {
			format = FormatText
		}
		writers = append(writers, wrap(format, rotating, false))
	}
	if len(writers) == 0 {
		return zerolog.Nop(), nil
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(b.level).
		With().
		Timestamp().
		Logger(), nil
}

// New builds a logger from cfg.
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	return NewBuilder().WithConfig(cfg).Build()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
