package invoke

import (
	"context"
	"sync/atomic"
	"time"
)

// resolvedTarget is the late-bound outcome of §4.8 target resolution:
// target_address, target_member, and remote from the data model (§3).
type resolvedTarget struct {
	address string
	member  *Member
	remote  bool
}

// Invocation is the core state machine (§2, 35% of the component share):
// it owns one execution attempt chain for an Operation, including retries,
// and owns the result InvocationFuture (§3 Ownership). There is no lock on
// an Invocation — every mutable field below is either single-transition
// (responseReceived) or published via atomic store/load with the explicit
// ordering contract from §5.
type Invocation struct {
	services Services
	opts     *invocationOptions
	executor executorAdapter

	serviceName        string
	operation          Operation
	target             Target
	isJoin             bool
	tryCount           int32
	tryPauseMillis     time.Duration
	callTimeout        time.Duration // derived, §4.6
	resultDeserialized bool
	callback           func(any)
	future             *InvocationFuture
	exceptionPolicy    ExceptionPolicy

	// invoked guards §3 invariant 1: a second call to Invoke/InvokeAsync
	// fails rather than re-dispatching.
	invoked atomic.Bool

	// Mutable single-transition (§3 invariant 2).
	responseReceived atomic.Bool

	// Mutable counters (§3).
	invokeCount      atomic.Int32
	backupsCompleted atomic.Int32
	backupsExpected  atomic.Int32

	// Mutable late-bound (§3).
	resolved                      atomic.Pointer[resolvedTarget]
	pendingResponse               atomic.Pointer[any]
	pendingResponseReceivedMillis atomic.Int64

	callID atomic.Uint64
	state  *attemptState
}

// NewPartitionInvocation constructs an Invocation bound to a partition
// replica: the common case for mutating data-structure operations, which
// must be re-resolved against the partition table on every attempt (§4.8).
func NewPartitionInvocation(services Services, op Operation, partitionID, replicaIndex int32, opts ...InvocationOption) *Invocation {
	return newInvocation(services, op, Partitioned(partitionID, replicaIndex), opts...)
}

// NewTargetInvocation constructs an Invocation bound to an explicit member
// address — used for operations (e.g. cluster-management, join) that are
// not partition-scoped (§4.8, §9 tagged-variant design note).
func NewTargetInvocation(services Services, op Operation, address string, opts ...InvocationOption) *Invocation {
	return newInvocation(services, op, Targeted(address), opts...)
}

func newInvocation(services Services, op Operation, target Target, opts ...InvocationOption) *Invocation {
	services = services.validate()
	if op == nil {
		panic("invoke: operation must not be nil")
	}

	cfg, err := resolveInvocationOptions(opts)
	if err != nil {
		panic(err)
	}

	callTimeout := deriveCallTimeout(cfg.callTimeout, op, time.Duration(services.OperationService.DefaultCallTimeoutMillis())*time.Millisecond)
	op.SetCallTimeout(callTimeout)

	inv := &Invocation{
		services:        services,
		opts:            cfg,
		executor:        newExecutorAdapter(services, cfg),
		serviceName:     op.ServiceName(),
		operation:       op,
		target:          target,
		isJoin:          op.IsJoinOperation(),
		tryCount:        cfg.tryCount,
		tryPauseMillis:  cfg.tryPauseMillis,
		callTimeout:     callTimeout,
		exceptionPolicy: cfg.exceptionPolicy,
		future:          NewInvocationFuture(callTimeout),
		state:           newAttemptState(),
	}
	inv.pendingResponseReceivedMillis.Store(-1)
	return inv
}

// deriveCallTimeout implements §4.6: a positive caller-supplied timeout
// wins outright; otherwise a wait-aware operation with a finite positive
// wait_timeout contributes min(max(wait_timeout, MinTimeout),
// defaultCallTimeout); otherwise the default.
func deriveCallTimeout(callerCallTimeout time.Duration, op Operation, defaultCallTimeout time.Duration) time.Duration {
	if callerCallTimeout > 0 {
		return callerCallTimeout
	}
	if ws, ok := waitSupportOf(op); ok {
		if wt := ws.WaitTimeout(); wt > 0 {
			eff := wt
			if eff < MinTimeout {
				eff = MinTimeout
			}
			if eff > defaultCallTimeout {
				eff = defaultCallTimeout
			}
			return eff
		}
	}
	return defaultCallTimeout
}

// WithCallback registers a callback invoked once the future settles. Must
// be called before Invoke/InvokeAsync.
func (inv *Invocation) WithCallback(cb func(any)) *Invocation {
	inv.callback = cb
	inv.future.Then(cb)
	return inv
}

// Future returns the owning InvocationFuture, valid immediately after
// construction regardless of dispatch state (§3 Ownership).
func (inv *Invocation) Future() *InvocationFuture { return inv.future }

// CallID returns the registry key once assigned, or 0 before the first
// attempt registers (§3 invariant 6).
func (inv *Invocation) CallID() uint64 { return inv.callID.Load() }

// Invoke dispatches synchronously on the calling goroutine for the first
// attempt and returns the future (§4.10). Per the resolved open question
// in SPEC_FULL.md, only the *first* attempt is guaranteed inline; retries
// are scheduled through Services.ExecutionService when one is set (on a new
// goroutine or a time.AfterFunc timer otherwise), and a re-invocation from
// CheckBackupTimeout runs on the goroutine that called CheckBackupTimeout.
func (inv *Invocation) Invoke(ctx context.Context) (*InvocationFuture, error) {
	return inv.invokeInternal(ctx, false)
}

// InvokeAsync dispatches the first attempt on the calling goroutine exactly
// as Invoke does; the only difference is that the thread-discipline check
// uses isAsync=true (§4.10, §6
// OperationExecutor.IsInvocationAllowedFromCurrentThread).
func (inv *Invocation) InvokeAsync(ctx context.Context) (*InvocationFuture, error) {
	return inv.invokeInternal(ctx, true)
}

func (inv *Invocation) invokeInternal(ctx context.Context, async bool) (*InvocationFuture, error) {
	if inv.operation.CallID() != 0 {
		return nil, &OperationReusedError{CallID: inv.operation.CallID()}
	}
	if !inv.invoked.CompareAndSwap(false, true) {
		return nil, &IllegalStateError{Message: "invocation already invoked"}
	}

	exec := inv.services.OperationService.OperationExecutor()
	if exec != nil && !exec.IsInvocationAllowedFromCurrentThread(inv.operation, async) {
		return nil, &ThreadDisciplineError{Message: "invoking goroutine may not dispatch this operation"}
	}

	inv.doInvoke()
	return inv.future, nil
}

// run is the scheduler's re-entry point for a retry (§4.10); it delegates
// to doInvoke exactly as the first attempt does.
func (inv *Invocation) run() {
	inv.doInvoke()
}

// doInvoke implements §4.8 (target resolution) and §4.9 (dispatch).
func (inv *Invocation) doInvoke() {
	if !inv.services.NodeEngine.IsActive() {
		inv.notify(&EngineNotActiveError{})
		return
	}

	inv.state.Store(StateTargetResolving)
	// response_received gates at most one primary response per attempt
	// (§3: "exactly once per successful primary response"), not once for
	// the Invocation's whole lifetime — a retried attempt must be able to
	// accept a response of its own.
	inv.responseReceived.Store(false)
	inv.invokeCount.Add(1)
	address, member, err := resolveTarget(inv.services.NodeEngine, inv.target, inv.operation.PartitionID(), inv.operation.ReplicaIndex(), inv.isJoin)
	if err != nil {
		inv.notify(err)
		return
	}

	remote := address != inv.services.NodeEngine.ThisAddress()
	inv.resolved.Store(&resolvedTarget{address: address, member: member, remote: remote})

	if inv.operation.CallID() == 0 {
		callID := inv.services.OperationService.InvocationRegistry().Register(inv)
		inv.operation.SetCallID(callID)
		inv.callID.Store(callID)
	}
	inv.operation.SetResponseHandler(func(response any) { _ = inv.SendResponse(response) })

	inv.state.Store(StateDispatched)

	if !remote {
		if inv.operation.CallerUUID() == "" {
			inv.operation.SetCaller(inv.services.NodeEngine.ThisAddress(), inv.services.NodeEngine.LocalMemberUUID())
		}
		inv.state.Store(StateWaitingPrimary)
		inv.executor.runLocal(inv.operation)
		return
	}

	inv.state.Store(StateWaitingPrimary)
	ok, sendErr := inv.services.OperationService.Send(inv.operation, address)
	if sendErr != nil || !ok {
		// Do not deregister here: a send refusal is classified by notify
		// below like any other error, and may well be RETRYable (§4.1) —
		// deregistering now would make this invocation permanently
		// invisible to the Monitor (§3 Lifecycle: registered until the
		// future completes) for the rest of its life, even once a later
		// attempt succeeds and leaves backups outstanding. notify's
		// terminal branches already deregister when the failure is THROWn.
		if sendErr == nil {
			sendErr = &RetryableIOError{Cause: errSendRefused}
		} else if !isRecoverableTransportFault(sendErr) {
			sendErr = &RetryableIOError{Cause: sendErr}
		}
		inv.notify(sendErr)
	}
}

var errSendRefused = &IllegalStateError{Message: "transport refused to send operation"}

// SendResponse is the response-handler callback (§4.10): it guards the
// single-transition of response_received (§3 invariant 2, §5 ordering
// guarantee 2) and forwards to notify. A second call returns
// ResponseAlreadySentError and otherwise has no effect — in particular it
// never re-invokes notify, which would double-drive the classifier.
func (inv *Invocation) SendResponse(response any) error {
	if !inv.responseReceived.CompareAndSwap(false, true) {
		return &ResponseAlreadySentError{CallID: inv.callID.Load()}
	}
	inv.notify(response)
	return nil
}

// notify is the single entry point for all signals (§4.2): safe from any
// goroutine, idempotent for duplicate terminal errors because the future's
// single-assignment discipline swallows seconds (§5 ordering guarantee 4).
func (inv *Invocation) notify(response any) {
	normal, errResp, isTimeout, direct, isDirect := classify(response)
	switch {
	case isTimeout:
		inv.notifyCallTimeoutResponse()
	case errResp != nil:
		inv.notifyErrorResponse(errResp.Cause)
	case normal != nil:
		inv.notifyNormalResponse(normal.Value, normal.BackupCount)
	case isDirect:
		if inv.future.complete(direct) {
			inv.deregister()
		}
	}
}

// notifyCallTimeoutResponse implements §4.5's wait-notify handling: the op
// was parked in a WaitSupport queue and its call window elapsed without the
// wait being satisfied. The retry that follows must not cost a try_count
// slot, since nothing about the operation actually failed — only its call
// window did.
func (inv *Invocation) notifyCallTimeoutResponse() {
	if ws, ok := waitSupportOf(inv.operation); ok {
		ws.SetWaitTimeout(ws.WaitTimeout() - inv.callTimeout)
	}
	inv.invokeCount.Add(-1)
	inv.handleRetryResponse()
}

// notifyErrorResponse applies ExceptionPolicy (§4.1) and either retries,
// continues waiting, or makes the failure terminal (§7).
func (inv *Invocation) notifyErrorResponse(cause error) {
	switch inv.exceptionPolicy(cause, inv.invokeCount.Load(), inv.tryCount) {
	case DecisionRetry, DecisionContinueWait:
		inv.handleRetryResponse()
	default:
		if inv.future.complete(cause) {
			inv.deregister()
		}
	}
}

// notifyNormalResponse implements §4.3's three-way race between the
// primary response and backup acknowledgements. The store of
// backups_expected is published strictly before pending_response — §5
// ordering guarantee 1 — so a concurrent NotifyOneBackupComplete never
// observes a non-nil pending_response with a zero backups_expected.
func (inv *Invocation) notifyNormalResponse(value any, expectedBackups int32) {
	if value == nil {
		value = NullResponse
	}

	if expectedBackups > inv.backupsCompleted.Load() {
		inv.pendingResponseReceivedMillis.Store(inv.services.NodeEngine.ClusterService().Now().UnixMilli())
		inv.backupsExpected.Store(expectedBackups) // publish order is mandatory, see §5.1
		inv.state.Store(StateWaitingBackups)
		inv.pendingResponse.Store(&value)

		if inv.backupsCompleted.Load() != expectedBackups {
			return
		}
		// backups finished the race between the two stores above; fall
		// through and complete now.
	}

	if inv.future.complete(value) {
		inv.deregister()
	}
}

// NotifyOneBackupComplete is invoked once per backup ack (§4.4). Only the
// goroutine whose increment observes backups_completed == backups_expected
// completes the future — at-most-one completion under any interleaving
// (§5 ordering guarantee 3).
func (inv *Invocation) NotifyOneBackupComplete() {
	newValue := inv.backupsCompleted.Add(1)

	pr := inv.pendingResponse.Load()
	if pr == nil {
		return // primary hasn't replied; ordering requires the primary first
	}

	expected := inv.backupsExpected.Load()
	switch {
	case expected > newValue:
		return // more to come
	case expected < newValue:
		// Reachable after resetAndReInvoke races a stale ack from the
		// prior attempt; treated as benign per the Open Question decision
		// in SPEC_FULL.md, not an invariant violation.
		inv.services.Logger.Debug().Str("event", "stale-backup-ack").Log("backup ack observed past reset backups_expected")
		return
	}

	if inv.future.complete(*pr) {
		inv.deregister()
	}
}

// NotifyInvocationTimeout is driven by the Monitor (§4.5).
func (inv *Invocation) NotifyInvocationTimeout() {
	if inv.pendingResponse.Load() != nil {
		return
	}
	if inv.future.HasWaiters() {
		return // the blocked waiter will detect its own deadline
	}
	maxCallTimeout := inv.future.MaxCallTimeout()
	if maxCallTimeout <= 0 {
		return // INFINITE
	}

	invocationTime := inv.operation.InvocationTime()
	expiration := invocationTime.Add(maxCallTimeout)
	if expiration.Before(invocationTime) {
		return // overflow guard: saturating, never treat as expired
	}

	now := inv.services.NodeEngine.ClusterService().Now()
	if now.Before(expiration) {
		return
	}

	err := &OperationTimeoutError{
		CallID:          inv.callID.Load(),
		BackupsExpected: inv.backupsExpected.Load(),
		BackupsComplete: inv.backupsCompleted.Load(),
	}
	if inv.future.complete(err) {
		inv.deregister()
	}
}

// CheckBackupTimeout is driven by the Monitor at a cadence independent of
// call-timeout (§4.5).
func (inv *Invocation) CheckBackupTimeout(timeout time.Duration) {
	expected := inv.backupsExpected.Load()
	completed := inv.backupsCompleted.Load()
	if expected == completed {
		return
	}

	receivedAtMillis := inv.pendingResponseReceivedMillis.Load()
	if receivedAtMillis == -1 {
		return // primary never replied; call-timeout handles this case
	}

	now := inv.services.NodeEngine.ClusterService().Now()
	if now.Before(time.UnixMilli(receivedAtMillis).Add(timeout)) {
		return
	}

	resolved := inv.resolved.Load()
	memberAlive := resolved != nil && inv.services.NodeEngine.ClusterService().Member(resolved.address) != nil
	if !memberAlive {
		inv.services.Logger.Warning().Uint64("callId", inv.callID.Load()).Log("target died during backup wait; resetting and re-invoking")
		inv.resetAndReInvoke()
		return
	}

	// Target alive but backups tardy: favour progress over backup
	// strictness past the backup deadline.
	if pr := inv.pendingResponse.Load(); pr != nil {
		if inv.future.complete(*pr) {
			inv.deregister()
		}
	}
}

// resetAndReInvoke is the durability repair of §4.5: the primary
// acknowledged a mutation but died before replicating it, so completing
// the future here would surface a value no node actually stores.
// Re-driving the operation against whatever is now primary trades a
// silent data loss for a (hopefully idempotent) duplicate write.
//
// §8 invariant 3: every per-attempt field this clears must read back as
// zero/sentinel before the next doInvoke begins — true here because every
// store below precedes the inv.run() call that starts that doInvoke.
func (inv *Invocation) resetAndReInvoke() {
	inv.invokeCount.Store(0)
	inv.pendingResponse.Store(nil)
	inv.pendingResponseReceivedMillis.Store(-1)
	inv.backupsExpected.Store(0)
	inv.backupsCompleted.Store(0)
	inv.state.Store(StateNew)
	inv.run()
}

// handleRetryResponse implements §4.7: an interrupted future completes
// with InterruptedResponse instead of retrying (§5 Cancellation);
// otherwise the future is marked with the WAIT signal and a retry is
// scheduled, fast or delayed depending on invoke_count.
func (inv *Invocation) handleRetryResponse() {
	if inv.future.Interrupted() {
		if inv.future.complete(InterruptedResponse) {
			inv.deregister()
		}
		return
	}

	inv.future.SetSignal(WaitResponse)
	inv.logRetry()
	inv.scheduleRetry()
}

func (inv *Invocation) scheduleRetry() {
	inv.executor.scheduleRetry(inv.invokeCount.Load(), inv.tryPauseMillis, inv.run)
}

// logRetry implements the §4.7 logging throttle: always log below
// LogMaxInvocationCount, then only one in LogInvocationCountMod past it —
// further rate-limited per call-id via Services.RetryLogLimiter, grounded
// on catrate (SPEC_FULL.md DOMAIN STACK).
func (inv *Invocation) logRetry() {
	count := inv.invokeCount.Load()
	if count > LogMaxInvocationCount && count%LogInvocationCountMod != 0 {
		return
	}
	if inv.services.RetryLogLimiter != nil {
		if _, ok := inv.services.RetryLogLimiter.Allow(inv.callID.Load()); !ok {
			return
		}
	}
	inv.services.Logger.Debug().
		Uint64("callId", inv.callID.Load()).
		Int("invokeCount", int(count)).
		Log("scheduling invocation retry")
}

// deregister removes the invocation from the registry and marks the
// attempt state terminal. Called from every path that settles the future.
func (inv *Invocation) deregister() {
	inv.state.Store(StateComplete)
	if id := inv.callID.Load(); id != 0 {
		inv.services.OperationService.InvocationRegistry().Deregister(id)
	}
}
