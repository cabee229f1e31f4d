package invoke

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// InvocationFuture is the single-assignment result cell shared by the
// invoker (waiter) and the Invocation (completer) (§3, §4.10). It supports
// blocking Get with a caller-supplied deadline, async callback
// registration, an interrupt flag observed by the retry path, and reports
// whether any goroutine is currently blocked in Get — NotifyInvocationTimeout
// consults this to decide whether a blocked waiter will detect its own
// deadline instead (§4.5).
//
// Grounded on the teacher's mutex-guarded promise type (subscriber
// channels fanned out under lock on first settle); InvocationFuture drops
// the Promise/A+ chaining machinery entirely — nothing in this domain
// needs chained Then/Catch/Finally transforms, only "wait for the one
// value" and "run this callback once settled" (Get and Then).
type InvocationFuture struct {
	mu             sync.Mutex
	done           bool
	result         any
	subscribers    []chan any
	callbacks      []func(any)
	waiters        atomic.Int32
	interrupted    atomic.Bool
	maxCallTimeout time.Duration // 0 == infinite, per §4.5
	signal         atomic.Pointer[any]
}

// SetSignal publishes a non-terminal marker (e.g. WaitResponse) observable
// by diagnostics without settling the future — §4.7's "set the future to
// WAIT sentinel" is a transient annotation distinct from the single
// completion in §3 invariant 3; Signal/SetSignal model that distinction
// explicitly instead of overloading complete.
func (f *InvocationFuture) SetSignal(v any) {
	f.signal.Store(&v)
}

// Signal returns the most recently published transient marker, or nil if
// none has been set.
func (f *InvocationFuture) Signal() any {
	if p := f.signal.Load(); p != nil {
		return *p
	}
	return nil
}

// NewInvocationFuture constructs a pending future. maxCallTimeout is the
// derived call_timeout from §4.6; pass 0 for an invocation configured with
// no overall deadline.
func NewInvocationFuture(maxCallTimeout time.Duration) *InvocationFuture {
	return &InvocationFuture{maxCallTimeout: maxCallTimeout}
}

// MaxCallTimeout returns the derived call_timeout this future was
// constructed with.
func (f *InvocationFuture) MaxCallTimeout() time.Duration {
	return f.maxCallTimeout
}

// complete performs the single idempotent set described in §3 invariant 3:
// the first caller to observe f.done == false wins and fans the result out
// to every blocked waiter and registered callback; every subsequent caller
// is a harmless no-op (§5 ordering guarantee 4).
func (f *InvocationFuture) complete(value any) bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.done = true
	f.result = value
	subs := f.subscribers
	f.subscribers = nil
	cbs := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()

	for _, ch := range subs {
		ch <- value
		close(ch)
	}
	for _, cb := range cbs {
		cb(value)
	}
	return true
}

// Done reports whether the future has settled.
func (f *InvocationFuture) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

// Then registers a callback invoked exactly once with the settled value.
// If the future is already settled, the callback runs synchronously
// before Then returns.
func (f *InvocationFuture) Then(cb func(any)) {
	f.mu.Lock()
	if f.done {
		result := f.result
		f.mu.Unlock()
		cb(result)
		return
	}
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// Get blocks until the future settles, the deadline elapses, or ctx is
// cancelled. A ctx cancellation sets the interrupt flag so a retry in
// flight observes it and completes with InterruptedResponse (§5
// Cancellation); a deadline elapsing returns context.DeadlineExceeded
// without touching the invocation — §4.5 notes that blocked waiters detect
// their own deadline rather than relying on the monitor.
func (f *InvocationFuture) Get(ctx context.Context, deadline time.Duration) (any, error) {
	f.mu.Lock()
	if f.done {
		result := f.result
		f.mu.Unlock()
		return result, nil
	}
	ch := make(chan any, 1)
	f.subscribers = append(f.subscribers, ch)
	f.mu.Unlock()

	f.waiters.Add(1)
	defer f.waiters.Add(-1)

	var timer *time.Timer
	var timerC <-chan time.Time
	if deadline > 0 {
		timer = time.NewTimer(deadline)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case v := <-ch:
		return v, nil
	case <-timerC:
		return nil, context.DeadlineExceeded
	case <-ctx.Done():
		f.Interrupt()
		return nil, ctx.Err()
	}
}

// HasWaiters reports whether any goroutine is currently blocked in Get
// (§4.5's "any thread is blocked on the future" check).
func (f *InvocationFuture) HasWaiters() bool {
	return f.waiters.Load() > 0
}

// Interrupt marks the future as interrupted. Observed by the retry path
// (handleRetryResponse, §4.7) on the next attempt.
func (f *InvocationFuture) Interrupt() {
	f.interrupted.Store(true)
}

// Interrupted reports whether Interrupt was called.
func (f *InvocationFuture) Interrupted() bool {
	return f.interrupted.Load()
}
