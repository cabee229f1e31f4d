package invoke

import "time"

// Constants named directly from §4.6/§4.7/§6.
const (
	// MinTimeout is MIN_TIMEOUT: the floor applied to a wait-aware
	// operation's wait_timeout when deriving call_timeout (§4.6).
	MinTimeout = 10_000 * time.Millisecond
	// MaxFastInvocationCount is MAX_FAST_INVOCATION_COUNT: the number of
	// attempts that may be retried on the immediate/async executor before
	// falling back to the delayed executor (§4.7).
	MaxFastInvocationCount = 5
	// LogMaxInvocationCount is LOG_MAX_INVOCATION_COUNT: once invoke_count
	// exceeds this, per-attempt retry logging throttles (§4.7).
	LogMaxInvocationCount = 99
	// LogInvocationCountMod is LOG_INVOCATION_COUNT_MOD: the throttled
	// logging rate past LogMaxInvocationCount — one in every N (§4.7).
	LogInvocationCountMod = 10

	// defaultTryCount and defaultTryPause are applied when an invocation
	// is constructed without WithTryCount/WithTryPauseMillis.
	defaultTryCount     = 250
	defaultTryPause     = 500 * time.Millisecond
	defaultScanBatch    = 20
	defaultScanCadence  = 1 * time.Second
	defaultBackupCheckCadence = 1 * time.Second
)

// invocationOptions holds the per-invocation configuration resolved at
// construction.
type invocationOptions struct {
	tryCount        int32
	tryPauseMillis  time.Duration
	callTimeout     time.Duration
	exceptionPolicy ExceptionPolicy
	asyncPool       string
	delayedPool     string
}

// InvocationOption configures an Invocation at construction, following the
// teacher's functional-options idiom (options.go: applyLoop closures
// collected and applied in order, nils skipped).
type InvocationOption interface {
	applyInvocation(*invocationOptions) error
}

type invocationOptionFunc struct {
	fn func(*invocationOptions) error
}

func (o *invocationOptionFunc) applyInvocation(opts *invocationOptions) error {
	return o.fn(opts)
}

// WithTryCount overrides try_count (§3, §8 invariant 4).
func WithTryCount(n int32) InvocationOption {
	return &invocationOptionFunc{func(o *invocationOptions) error {
		o.tryCount = n
		return nil
	}}
}

// WithTryPauseMillis overrides try_pause_millis, the delayed-retry pacing
// applied once invoke_count reaches MaxFastInvocationCount (§4.7, §8
// invariant 5).
func WithTryPauseMillis(d time.Duration) InvocationOption {
	return &invocationOptionFunc{func(o *invocationOptions) error {
		o.tryPauseMillis = d
		return nil
	}}
}

// WithCallTimeout supplies the caller-side call_timeout input to the
// derivation in §4.6. A zero value leaves derivation to the operation's
// wait-timeout/default-timeout fallback.
func WithCallTimeout(d time.Duration) InvocationOption {
	return &invocationOptionFunc{func(o *invocationOptions) error {
		o.callTimeout = d
		return nil
	}}
}

// WithExceptionPolicy overrides DefaultExceptionPolicy, per §9's guidance
// that partition-bound and target-bound invocations may refine retry
// policy (replacing the source language's subclass override of
// onException).
func WithExceptionPolicy(p ExceptionPolicy) InvocationOption {
	return &invocationOptionFunc{func(o *invocationOptions) error {
		o.exceptionPolicy = p
		return nil
	}}
}

// WithExecutorPools names the ExecutionService pools used for fast and
// delayed retries respectively (§4.7).
func WithExecutorPools(asyncPool, delayedPool string) InvocationOption {
	return &invocationOptionFunc{func(o *invocationOptions) error {
		o.asyncPool = asyncPool
		o.delayedPool = delayedPool
		return nil
	}}
}

func resolveInvocationOptions(opts []InvocationOption) (*invocationOptions, error) {
	cfg := &invocationOptions{
		tryCount:        defaultTryCount,
		tryPauseMillis:  defaultTryPause,
		exceptionPolicy: DefaultExceptionPolicy,
		asyncPool:       "async",
		delayedPool:     "scheduled",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyInvocation(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// monitorOptions holds the Monitor's cadences, independently configurable
// per §4.5 ("cadence independent of call-timeout").
type monitorOptions struct {
	scanInterval         time.Duration
	scanBatchSize        int
	backupCheckInterval  time.Duration
}

// MonitorOption configures a Monitor at construction.
type MonitorOption interface {
	applyMonitor(*monitorOptions) error
}

type monitorOptionFunc struct {
	fn func(*monitorOptions) error
}

func (o *monitorOptionFunc) applyMonitor(opts *monitorOptions) error {
	return o.fn(opts)
}

// WithScanInterval sets the invocation-scan cadence driving
// NotifyInvocationTimeout (§2, §4.5).
func WithScanInterval(d time.Duration) MonitorOption {
	return &monitorOptionFunc{func(o *monitorOptions) error {
		o.scanInterval = d
		return nil
	}}
}

// WithScanBatchSize bounds how many registry entries a single scan tick
// inspects (§2 InvocationRegistry "periodic scan").
func WithScanBatchSize(n int) MonitorOption {
	return &monitorOptionFunc{func(o *monitorOptions) error {
		o.scanBatchSize = n
		return nil
	}}
}

// WithBackupCheckInterval sets the backup-timeout cadence driving
// CheckBackupTimeout (§4.5).
func WithBackupCheckInterval(d time.Duration) MonitorOption {
	return &monitorOptionFunc{func(o *monitorOptions) error {
		o.backupCheckInterval = d
		return nil
	}}
}

func resolveMonitorOptions(opts []MonitorOption) (*monitorOptions, error) {
	cfg := &monitorOptions{
		scanInterval:        defaultScanCadence,
		scanBatchSize:       defaultScanBatch,
		backupCheckInterval: defaultBackupCheckCadence,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyMonitor(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
