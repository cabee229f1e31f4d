package invoke

import "time"

// Operation is the external, abstract unit of work the core dispatches and
// never interprets (§1, §3). The engine reads and writes a fixed set of
// attributes on it; everything else about what the operation does belongs
// to the per-data-structure layer this package explicitly does not model.
type Operation interface {
	// CallID returns 0 until the operation is first registered with an
	// InvocationRegistry, after which it is non-zero for the operation's
	// entire lifetime within that Invocation (§3 invariant 6).
	CallID() uint64
	// SetCallID is invoked exactly once, by doInvoke, with the id returned
	// by InvocationRegistry.Register.
	SetCallID(id uint64)

	// CallerAddress/CallerUUID identify the invoking node; SetCaller is
	// called during local dispatch if they are unset (§4.9).
	CallerAddress() string
	CallerUUID() string
	SetCaller(address, uuid string)

	PartitionID() int32
	ReplicaIndex() int32
	ServiceName() string

	// SetCallTimeout receives the call_timeout derived when the Invocation
	// is constructed (§4.6); the core does not read CallTimeout back.
	CallTimeout() time.Duration
	SetCallTimeout(d time.Duration)

	// InvocationTime is set once, at construction, and used by
	// NotifyInvocationTimeout to compute the absolute expiration (§4.5).
	InvocationTime() time.Time

	// SetResponseHandler installs the channel/callback that receives this
	// operation's response once dispatched (§4.9, §9 "response handler as
	// self" note: modelled as a callback, not a cyclic self-reference).
	SetResponseHandler(handler func(response any))

	// IsJoinOperation reports whether this operation is exempt from the
	// "target must be a current cluster member" check (§4.8) — the one
	// op-family-specific branch TargetResolver needs.
	IsJoinOperation() bool
}

// WaitSupport is the capability interface an Operation may additionally
// implement to participate in the call-timeout/wait-timeout relationship
// of §4.5/§4.6 (replacing the source language's instanceof check with an
// explicit, discoverable interface per Go convention).
type WaitSupport interface {
	WaitTimeout() time.Duration
	SetWaitTimeout(d time.Duration)
}

// waitSupportOf attempts the WaitSupport capability check.
func waitSupportOf(op Operation) (WaitSupport, bool) {
	ws, ok := op.(WaitSupport)
	return ws, ok
}
