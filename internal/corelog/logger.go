// Package corelog provides the small logging wrapper shared by every
// package in this module. It stays close to the standard library
// logger (verbosity-gated Info, unconditional Error, optional file
// rotation) but adds one thing a daemon-shaped logger never needed:
// scan correlation. spec §5 allows many scans to run concurrently
// against one Cache, so a bare Info/Error call can't tell a reader
// which scan produced which line. ForScan binds a scan's correlation
// ID once and returns a handle that stamps every subsequent line with
// it, instead of every call site re-passing the ID as just another
// variadic argument.
package corelog

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// Logger wraps a standard library logger with a verbosity threshold.
// It's safe for concurrent use because log.Logger already serializes
// writes internally; callers never need their own lock around it.
type Logger struct {
	impl              *log.Logger
	fileName          string
	verbosity         int
	duplicateToStderr bool
}

// New creates a logger writing to logFile (or stderr when empty or
// "stderr"). verbosity must be in [-1, 2]; higher values show more Info
// calls. When noLogsIfEmpty is true and logFile is empty, Info/Error are
// silently dropped instead of falling back to stderr.
func New(logFile string, verbosity int, noLogsIfEmpty bool, duplicateToStderr bool) (*Logger, error) {
	var impl *log.Logger

	if logFile != "" && logFile != "stderr" {
		out, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return nil, err
		}
		impl = log.New(out, "", 0)
	} else if !noLogsIfEmpty {
		impl = log.New(os.Stderr, "", 0)
	}

	if verbosity < -1 || verbosity > 2 {
		return nil, errors.New("corelog: verbosity out of range [-1, 2]")
	}

	return &Logger{
		impl:              impl,
		fileName:          logFile,
		verbosity:         verbosity,
		duplicateToStderr: duplicateToStderr,
	}, nil
}

// Nop returns a logger that discards everything; used as a default when
// the caller doesn't configure one explicitly.
func Nop() *Logger {
	return &Logger{}
}

func formatLine(prefix, scanID string, v ...interface{}) string {
	tag := prefix
	if scanID != "" {
		tag = prefix + " scan=" + scanID
	}
	return fmt.Sprintf("%s %s %s", time.Now().Format("2006-01-02 15:04:05"), tag, fmt.Sprintln(v...))
}

// Info logs v when the logger's verbosity is at least the given level.
func (l *Logger) Info(verbosity int, v ...interface{}) {
	if l == nil || l.impl == nil || l.verbosity < verbosity {
		return
	}
	_ = l.impl.Output(0, formatLine("INFO", "", v...))
}

// Error logs v unconditionally (modulo a nil or unconfigured logger).
func (l *Logger) Error(v ...interface{}) {
	if l == nil {
		return
	}
	if l.impl != nil {
		_ = l.impl.Output(0, formatLine("ERROR", "", v...))
	}
	if l.duplicateToStderr {
		_, _ = fmt.Fprint(os.Stderr, formatLine("ERROR", "", v...))
	}
}

// RotateLogFile reopens the underlying file, for use after external log
// rotation (e.g. logrotate) has renamed it out from under the process.
func (l *Logger) RotateLogFile() error {
	if l == nil || l.fileName == "" {
		return nil
	}
	out, err := os.OpenFile(l.fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	l.impl = log.New(out, "", 0)
	return nil
}

// ScanLogger is a Logger bound to one scan's correlation ID, so every
// line it emits can be traced back to the scan that produced it
// without every call site threading the ID through by hand.
type ScanLogger struct {
	parent *Logger
	id     string
}

// ForScan binds id to a new ScanLogger sharing l's destination and
// verbosity threshold.
func (l *Logger) ForScan(id uuid.UUID) *ScanLogger {
	return &ScanLogger{parent: l, id: id.String()}
}

// Info logs v when the parent logger's verbosity is at least the given
// level, tagged with this scan's correlation ID.
func (s *ScanLogger) Info(verbosity int, v ...interface{}) {
	if s == nil || s.parent == nil {
		return
	}
	l := s.parent
	if l.impl == nil || l.verbosity < verbosity {
		return
	}
	_ = l.impl.Output(0, formatLine("INFO", s.id, v...))
}

// Error logs v unconditionally, tagged with this scan's correlation ID.
func (s *ScanLogger) Error(v ...interface{}) {
	if s == nil || s.parent == nil {
		return
	}
	l := s.parent
	if l.impl != nil {
		_ = l.impl.Output(0, formatLine("ERROR", s.id, v...))
	}
	if l.duplicateToStderr {
		_, _ = fmt.Fprint(os.Stderr, formatLine("ERROR", s.id, v...))
	}
}
