package invoke

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// isRetryableTransportStatus classifies a wire-level transport error using
// its gRPC status code, grounding the "recoverable transport/target errors"
// bucket of §4.1/§7 in a real transport's error model rather than a
// hand-rolled sentinel list — see SPEC_FULL.md's DOMAIN STACK section.
//
// A node-local OperationService implementation is free to return plain
// RetryableIOError values instead; this classifier only applies when the
// collaborator surfaces a *status.Status-bearing error, e.g. one produced
// by an in-process or networked gRPC transport.
func isRetryableTransportStatus(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.Aborted, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
