// Package logging builds the component loggers used across ct. Every
// component logs through a stdlib *log.Logger with a bracketed prefix; all of
// them share one output, which is stderr or a size-rotated file.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the shared log output.
type Options struct {
	// File is the log file path (empty = stderr)
	File string
	// MaxSizeMB is the size at which the file is rotated
	MaxSizeMB int
	// MaxBackups is how many rotated files are kept
	MaxBackups int
	// MaxAgeDays is how long rotated files are kept
	MaxAgeDays int
}

// Output is the writer shared by component loggers.
type Output struct {
	w      io.Writer
	closer io.Closer
}

// NewOutput returns stderr, or a rotating file writer when opts.File is set.
func NewOutput(opts Options) *Output {
	if opts.File == "" {
		return &Output{w: os.Stderr}
	}
	_ = os.MkdirAll(filepath.Dir(opts.File), 0755)
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	return &Output{w: lj, closer: lj}
}

// Discard returns an output that drops everything.
func Discard() *Output {
	return &Output{w: io.Discard}
}

// Logger returns a logger for one component, e.g. Logger("api") logs with
// the prefix "[api] ".
func (o *Output) Logger(component string) *log.Logger {
	return log.New(o.w, "["+component+"] ", log.LstdFlags)
}

// Writer returns the underlying writer.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Close flushes and closes the log file, if any.
func (o *Output) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}
