package invoke

import (
	"fmt"
)

// WrongTargetError is raised when target resolution yields no destination
// while the engine is active (§4.8). It is a recoverable transport/target
// fault under ExceptionPolicy.
type WrongTargetError struct {
	PartitionID  int32
	ReplicaIndex int32
	Cause        error
}

func (e *WrongTargetError) Error() string {
	return fmt.Sprintf("invoke: wrong target for partition %d replica %d", e.PartitionID, e.ReplicaIndex)
}

func (e *WrongTargetError) Unwrap() error { return e.Cause }

// TargetNotMemberError is raised when the resolved target address is not a
// current cluster member and the operation is not a join operation (§4.8).
// Recoverable, subject to retry.
type TargetNotMemberError struct {
	Address string
	Cause   error
}

func (e *TargetNotMemberError) Error() string {
	return fmt.Sprintf("invoke: target %s is not a cluster member", e.Address)
}

func (e *TargetNotMemberError) Unwrap() error { return e.Cause }

// EngineNotActiveError is raised when doInvoke observes an inactive node
// engine (§4.8, §4.9). Fatal local: never retried.
type EngineNotActiveError struct {
	Cause error
}

func (e *EngineNotActiveError) Error() string { return "invoke: node engine is not active" }

func (e *EngineNotActiveError) Unwrap() error { return e.Cause }

// IllegalStateError covers invariant violations that never get a retry:
// mismatched partition/replica ids between the operation and the
// invocation (§4.8), or any other internal consistency failure.
type IllegalStateError struct {
	Message string
	Cause   error
}

func (e *IllegalStateError) Error() string { return "invoke: illegal state: " + e.Message }

func (e *IllegalStateError) Unwrap() error { return e.Cause }

// ThreadDisciplineError is raised by Invoke when the calling goroutine
// violates the invoking-thread contract required for non-migration
// operations (§4.10).
type ThreadDisciplineError struct {
	Message string
}

func (e *ThreadDisciplineError) Error() string { return "invoke: thread discipline violated: " + e.Message }

// OperationReusedError is raised when an Operation already carrying a
// non-zero call-id is handed to a new Invocation (§3 invariant 6).
type OperationReusedError struct {
	CallID uint64
}

func (e *OperationReusedError) Error() string {
	return fmt.Sprintf("invoke: operation already registered under call-id %d", e.CallID)
}

// ResponseAlreadySentError is raised by a second SendResponse call on an
// invocation whose response_received flag is already set (§3 invariant 2,
// §7).
type ResponseAlreadySentError struct {
	CallID uint64
}

func (e *ResponseAlreadySentError) Error() string {
	return fmt.Sprintf("invoke: response already sent for call-id %d", e.CallID)
}

// OperationTimeoutError is the terminal value delivered to the future when
// NotifyInvocationTimeout observes an expired call window with no response
// (§4.5, §8 S6). Message deliberately includes backup-count context, per
// the concrete scenario's assertion.
type OperationTimeoutError struct {
	CallID          uint64
	BackupsExpected int32
	BackupsComplete int32
}

func (e *OperationTimeoutError) Error() string {
	return fmt.Sprintf(
		"invoke: operation timed out waiting for response (call-id %d, backups-expected %d, backups-completed %d)",
		e.CallID, e.BackupsExpected, e.BackupsComplete,
	)
}

// RetryableIOError wraps a recoverable transport fault: a failed remote
// send, or a classified transient gRPC status from the wire (§4.9, §7, and
// the DOMAIN STACK gRPC-status classification in SPEC_FULL.md).
type RetryableIOError struct {
	Cause error
}

func (e *RetryableIOError) Error() string { return "invoke: retryable I/O failure: " + e.Cause.Error() }

func (e *RetryableIOError) Unwrap() error { return e.Cause }

// ExceptionDecision is the outcome of ExceptionPolicy.Classify (§4.1).
type ExceptionDecision int

const (
	// DecisionThrow makes the failure terminal: it becomes the future's
	// result.
	DecisionThrow ExceptionDecision = iota
	// DecisionRetry schedules another attempt, subject to try_count.
	DecisionRetry
	// DecisionContinueWait reschedules another attempt because the
	// operation asked to keep waiting; as with a retry, that attempt
	// increments invoke_count.
	DecisionContinueWait
)

// ExceptionPolicy classifies a failure into {RETRY, CONTINUE_WAIT, THROW}
// (§4.1). The default policy treats WrongTargetError, TargetNotMemberError,
// and RetryableIOError as recoverable transport/target faults, gated on
// invoke_count < try_count; everything else is terminal. Partition-bound
// and target-bound invocations may supply their own ExceptionPolicy to
// refine this per §9's tagged-variant guidance (replacing the source
// language's subclass-override mechanism).
type ExceptionPolicy func(err error, invokeCount, tryCount int32) ExceptionDecision

// DefaultExceptionPolicy implements the recoverable-fault list from §4.1
// and §7: retryable I/O, wrong-target, and target-not-member are retried
// while attempts remain; everything else throws.
func DefaultExceptionPolicy(err error, invokeCount, tryCount int32) ExceptionDecision {
	if err == nil {
		return DecisionThrow
	}
	if isRecoverableTransportFault(err) {
		if invokeCount < tryCount {
			return DecisionRetry
		}
		return DecisionThrow
	}
	return DecisionThrow
}

func isRecoverableTransportFault(err error) bool {
	switch err.(type) {
	case *RetryableIOError, *WrongTargetError, *TargetNotMemberError:
		return true
	}
	return isRetryableTransportStatus(err)
}
