// Package invoke implements the invocation engine of a distributed
// in-memory data grid: the component responsible for dispatching a typed
// [Operation] against a target (the local node, or a remote member holding
// a specific partition replica), correlating its response, waiting for
// backup acknowledgements, enforcing call timeouts, and retrying on
// recoverable faults.
//
// # Architecture
//
// An [Invocation] wraps an [Operation] and drives it through at most
// try_count attempts. [Invocation.Invoke] resolves the target, registers
// the invocation in an [InvocationRegistry], and dispatches it
// either to the local [OperationExecutor] or across the wire via
// [OperationService.Send]. Primary responses (delivered through
// [Invocation.SendResponse]), call timeouts, and errors all funnel through
// one internal classifier, and backup acks arrive through
// [Invocation.NotifyOneBackupComplete]; together they drive the owning
// [InvocationFuture] toward
// completion, retry, or continued waiting. A background [Monitor] sweeps
// the registry at a fixed cadence, calling NotifyInvocationTimeout and
// CheckBackupTimeout on every live entry so no invocation depends on a
// per-entry timer.
//
// # Thread Safety
//
// There is no lock on an Invocation. Every mutable field is either
// single-transition (an atomic.Bool CAS'd false→true at most once per
// attempt) or
// published via atomic store/load with an explicit ordering contract: in
// notifyNormalResponse, backups_expected is always published before
// pending_response, so a concurrent NotifyOneBackupComplete never observes
// a pending response with zero expected backups. The only blocking call
// anywhere in this package is [InvocationFuture.Get].
//
// # Usage
//
//	svc := invoke.Services{
//	    NodeEngine:       myNodeEngine,
//	    OperationService: myOperationService,
//	}
//	inv := invoke.NewPartitionInvocation(svc, op, partitionID, replicaIndex,
//	    invoke.WithTryCount(3),
//	)
//	future, err := inv.Invoke(ctx)
//	if err != nil {
//	    // thread-discipline or reuse violation, never a remote failure
//	}
//	result, err := future.Get(ctx, deadline)
//
// # Error Types
//
// The package's error taxonomy distinguishes recoverable transport/target
// faults ([RetryableIOError], [WrongTargetError], [TargetNotMemberError]),
// fatal local invariant violations ([IllegalStateError],
// [ThreadDisciplineError], [OperationReusedError], [EngineNotActiveError]),
// a terminal outcome delivered through the future
// ([OperationTimeoutError]), and the duplicate-response error returned by
// [Invocation.SendResponse] ([ResponseAlreadySentError]). All implement the
// standard [error] interface; the types that carry a Cause field
// ([RetryableIOError], [WrongTargetError], [TargetNotMemberError],
// [IllegalStateError], [EngineNotActiveError]) also implement Unwrap for
// cause-chain matching.
package invoke
