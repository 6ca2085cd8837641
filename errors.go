package calcgraph

import "errors"

// Structural errors returned by the mutating API, as opposed to the
// evaluation-error *values* described in value.go/ErrorKind. See spec §7.
var (
	ErrUnknownSheet        = errors.New("calcgraph: unknown sheet")
	ErrUnknownVertex       = errors.New("calcgraph: unknown vertex")
	ErrNestedAction        = errors.New("calcgraph: nested action")
	ErrOverlayBudget       = errors.New("calcgraph: computed-overlay memory budget exceeded under arrow-canonical mode")
	ErrEvaluationCancelled = errors.New("calcgraph: evaluation cancelled")
	ErrEvaluationTimeout   = errors.New("calcgraph: evaluation deadline exceeded")
	ErrArrowCacheRead      = errors.New("calcgraph: graph value cache read attempted under arrow-canonical mode")
)

// TransactionError wraps a failure raised from within an action body,
// preserving the reason so callers can distinguish nesting violations
// from arbitrary user errors.
type TransactionError struct {
	Reason string
	Cause  error
}

func (e *TransactionError) Error() string {
	if e.Cause != nil {
		return "calcgraph: transaction failed: " + e.Reason + ": " + e.Cause.Error()
	}
	return "calcgraph: transaction failed: " + e.Reason
}

func (e *TransactionError) Unwrap() error { return e.Cause }
