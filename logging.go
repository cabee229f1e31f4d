package invoke

import (
	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the structured-logging handle embedded in Services and
// threaded into every Invocation/Monitor at construction, replacing the
// teacher's package-level global logger (eventloop/logging.go's
// globalLogger/SetStructuredLogger) per §9's rejection of hidden
// process-wide singletons.
//
// It wraps github.com/joeycumines/logiface's generic fluent builder,
// backed by github.com/joeycumines/izerolog + github.com/rs/zerolog (see
// SPEC_FULL.md's AMBIENT STACK section) rather than the teacher's
// hand-rolled LogLevel/LogEntry types, which duplicated what the ecosystem
// logger already provides.
type Logger struct {
	logger *logiface.Logger[*izerolog.Event]
}

// NewLogger wraps an already-configured zerolog.Logger.
func NewLogger(z zerolog.Logger) Logger {
	return Logger{logger: logiface.New[*izerolog.Event](izerolog.WithZerolog(z))}
}

// NewNoopLogger returns a Logger with no writer configured; every call
// silently does nothing, same as logiface's own disabled-level behaviour.
func NewNoopLogger() Logger {
	return Logger{logger: logiface.New[*izerolog.Event]()}
}

func (l Logger) valid() bool { return l.logger != nil }

// Warning starts a warning-level log entry. Used by CheckBackupTimeout when
// the target died during the backup wait and the invocation is re-invoked;
// per-attempt retry lines are logged through Debug.
func (l Logger) Warning() *logiface.Builder[*izerolog.Event] {
	return l.logger.Warning()
}

// Debug starts a debug-level entry. Used for finest-level traces on
// wait-notify timeout retries (§6).
func (l Logger) Debug() *logiface.Builder[*izerolog.Event] {
	return l.logger.Debug()
}

// Err starts an error-level entry.
func (l Logger) Err() *logiface.Builder[*izerolog.Event] {
	return l.logger.Err()
}
