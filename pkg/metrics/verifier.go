package metrics

import "time"

// Verification entry points, used as the "operation" label.
const (
	OperationVerifyPath   = "verify_path"
	OperationVerifyHandle = "verify_handle"
	OperationVerifyState  = "verify_state"
)

// VerifierMetrics provides observability for verification, corruption
// detection and repair.
//
// Implementations must be safe for concurrent use. Paths are deliberately
// not used as labels: a filesystem has unbounded cardinality.
type VerifierMetrics interface {
	// ObserveVerification records one completed verification call.
	ObserveVerification(operation string, duration time.Duration, valid bool, objects, invariants, violations int)

	// RecordCorruption records a positive corruption detection.
	// kind is "file", "directory", "handle" or "missing".
	RecordCorruption(kind string)

	// RecordRepair records the outcome of a repair attempt.
	RecordRepair(success bool)

	// RecordRecoveryTrigger records an invoked recovery callback.
	RecordRecoveryTrigger()
}

// NewNoopVerifierMetrics returns a VerifierMetrics that does nothing.
func NewNoopVerifierMetrics() VerifierMetrics {
	return noopVerifierMetrics{}
}

type noopVerifierMetrics struct{}

func (noopVerifierMetrics) ObserveVerification(string, time.Duration, bool, int, int, int) {}
func (noopVerifierMetrics) RecordCorruption(string)                                        {}
func (noopVerifierMetrics) RecordRepair(bool)                                              {}
func (noopVerifierMetrics) RecordRecoveryTrigger()                                         {}
