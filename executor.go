package invoke

import "time"

// executorAdapter is the ExecutorAdapter component (§2, 5% share):
// immediate-execute-or-enqueue for local operations, and delayed-retry
// scheduling for remote/failed ones (§4.7, §4.9). It exists as its own
// type, separate from Invocation, so the fast-vs-delayed retry split and
// the local-dispatch decision are independently testable without a full
// Invocation fixture.
type executorAdapter struct {
	services Services
	opts     *invocationOptions
}

func newExecutorAdapter(services Services, opts *invocationOptions) executorAdapter {
	return executorAdapter{services: services, opts: opts}
}

// runLocal dispatches op on the local OperationExecutor, which itself
// decides between inline execution and enqueueing (§4.9).
func (e executorAdapter) runLocal(op Operation) {
	e.services.OperationService.OperationExecutor().RunOnCallingThreadIfPossible(op)
}

// scheduleRetry implements the fast/delayed split of §4.7: attempts below
// MaxFastInvocationCount go back to the async executor immediately;
// later attempts are paced onto the delayed executor at tryPauseMillis.
func (e executorAdapter) scheduleRetry(invokeCount int32, tryPauseMillis time.Duration, fn func()) {
	if invokeCount < MaxFastInvocationCount {
		if e.services.ExecutionService != nil {
			e.services.ExecutionService.Schedule(e.opts.asyncPool, fn, 0)
			return
		}
		go fn()
		return
	}
	if e.services.ExecutionService != nil {
		e.services.ExecutionService.Schedule(e.opts.delayedPool, fn, tryPauseMillis)
		return
	}
	time.AfterFunc(tryPauseMillis, fn)
}
