package invoke

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// Partition is the subset of the partition table the core reads when
// resolving a partition-bound target (§4.8, §6).
type Partition interface {
	// ReplicaAddress returns the address currently hosting the given
	// replica index, or "" if unknown.
	ReplicaAddress(replicaIndex int32) string
}

// PartitionService is consulted by resolveTarget for partition-bound
// invocations (§6).
type PartitionService interface {
	Partition(partitionID int32) Partition
}

// ClusterService answers cluster-membership questions (§6).
type ClusterService interface {
	Member(address string) *Member
	Now() time.Time
}

// NodeEngine is the root collaborator the core never owns, only borrows
// (§6, §9 no-globals design note): it exposes this node's own address,
// whether the engine is still active, and the cluster/partition views
// needed for target resolution.
type NodeEngine interface {
	ThisAddress() string
	IsActive() bool
	ClusterService() ClusterService
	PartitionService() PartitionService
	LocalMemberUUID() string
}

// OperationExecutor decides whether the calling goroutine may run an
// operation inline, and runs it accordingly (§4.9, §6).
type OperationExecutor interface {
	// IsInvocationAllowedFromCurrentThread reports whether invoking from
	// the calling goroutine is permitted for this operation (isAsync
	// distinguishes Invoke from InvokeAsync, mirroring the source
	// language's thread-discipline check, §4.10).
	IsInvocationAllowedFromCurrentThread(op Operation, isAsync bool) bool
	// RunOnCallingThreadIfPossible executes op, choosing inline execution
	// or enqueueing onto the executor's own worker pool.
	RunOnCallingThreadIfPossible(op Operation)
}

// OperationService is the collaborator responsible for wire transport and
// for supplying the defaults the Invocation needs (§6).
type OperationService interface {
	// Send transmits op to the given address; a false return (or a
	// non-nil error) means the transport itself refused the op, which
	// funnels into RetryableIOError per §4.9.
	Send(op Operation, address string) (bool, error)
	DefaultCallTimeoutMillis() int64
	OperationExecutor() OperationExecutor
	InvocationRegistry() *InvocationRegistry
}

// ExecutionService schedules retry work on a named pool for
// ExecutorAdapter: with zero delay for fast retries, and after
// try_pause_millis for delayed ones (§4.7, §6).
type ExecutionService interface {
	Schedule(poolName string, task func(), delay time.Duration)
}

// Services bundles every external collaborator an Invocation needs,
// passed by value into each constructor rather than reached for through a
// package-level global (§9's explicit rejection of shared mutable
// globals). Logger is the structured-logging handle described in
// SPEC_FULL.md's AMBIENT STACK section; a zero Services{} is invalid and
// constructors panic if NodeEngine or OperationService is nil.
type Services struct {
	NodeEngine       NodeEngine
	OperationService OperationService
	ExecutionService ExecutionService
	Logger           Logger

	// RetryLogLimiter throttles per-attempt retry log lines for a single
	// chronically-failing call-id, grounded on catrate's sliding-window
	// limiter (SPEC_FULL.md's DOMAIN STACK section). Optional: a nil
	// limiter means every eligible retry is logged, subject only to the
	// invoke_count-based throttle of §4.7.
	RetryLogLimiter *catrate.Limiter
}

// validate panics on a malformed Services value and returns a copy with
// Logger defaulted to a no-op implementation, so call sites never need a
// nil check before logging.
func (s Services) validate() Services {
	if s.NodeEngine == nil {
		panic("invoke: Services.NodeEngine must not be nil")
	}
	if s.OperationService == nil {
		panic("invoke: Services.OperationService must not be nil")
	}
	if !s.Logger.valid() {
		s.Logger = NewNoopLogger()
	}
	return s
}
