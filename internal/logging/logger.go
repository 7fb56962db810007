// Package logging builds the program's zerolog logger: human-readable
// console output on stderr plus a rotated JSON log file. The file doubles
// as the durable audit trail of every wipe run, so file logging stays on
// even when console verbosity is turned down.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls sinks and verbosity.
type Options struct {
	// Level is the minimum level for console output: debug, info, warn,
	// error. The file sink always records debug and up.
	Level string
	// File is the JSON log file path. Empty disables the file sink.
	File string
	// MaxSizeMB and MaxBackups bound rotation of the log file.
	MaxSizeMB  int
	MaxBackups int
	// Verbose forces the console level down to debug.
	Verbose bool
}

// New builds the logger. A file path whose directory cannot be created is
// not fatal: logging falls back to console only, with a note, because a
// broken log path should never stop a wipe.
func New(opts Options) zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}

	level := parseLevel(opts.Level)
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	writers := []io.Writer{levelWriter{w: console, min: level}}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			log := zerolog.New(console).With().Timestamp().Logger()
			log.Warn().Err(err).Str("path", opts.File).Msg("log file unavailable, console only")
			return log.Level(level)
		}
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
		})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// levelWriter filters one sink by level so the console can be quieter than
// the audit file.
type levelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (lw levelWriter) Write(p []byte) (int, error) { return lw.w.Write(p) }

func (lw levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < lw.min {
		return len(p), nil
	}
	return lw.w.Write(p)
}
