package invoke

import "sync/atomic"

// AttemptState is the per-attempt phase of an Invocation's state machine
// (§4.10): NEW → TARGET_RESOLVING → DISPATCHED → {WAITING_PRIMARY,
// WAITING_BACKUPS} → COMPLETE, with retry transitioning WAITING_* back to
// NEW (counters preserved) or, for resetAndReInvoke, back to NEW with
// counters cleared (§4.5).
type AttemptState uint32

const (
	StateNew AttemptState = iota
	StateTargetResolving
	StateDispatched
	StateWaitingPrimary
	StateWaitingBackups
	StateComplete
)

func (s AttemptState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateTargetResolving:
		return "TARGET_RESOLVING"
	case StateDispatched:
		return "DISPATCHED"
	case StateWaitingPrimary:
		return "WAITING_PRIMARY"
	case StateWaitingBackups:
		return "WAITING_BACKUPS"
	case StateComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// attemptState is a lock-free holder for AttemptState, grounded on the
// teacher's FastState: pure CAS transitions, no validation of legality
// beyond the caller's own logic, since every Invocation field here is
// field-level-synchronized rather than protected by a mutex (§5).
type attemptState struct {
	v atomic.Uint32
}

func newAttemptState() *attemptState {
	s := &attemptState{}
	s.v.Store(uint32(StateNew))
	return s
}

func (s *attemptState) Load() AttemptState {
	return AttemptState(s.v.Load())
}

func (s *attemptState) Store(state AttemptState) {
	s.v.Store(uint32(state))
}

func (s *attemptState) TryTransition(from, to AttemptState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
