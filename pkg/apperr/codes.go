package apperr

// Code classifies an error for callers across the service boundary.
type Code string

const (
	// CodeValidation marks bad or missing input. Never retried.
	CodeValidation Code = "VALIDATION"
	// CodeNotFound marks a referenced user or conversation that does not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict marks an optimistic check that observed a concurrent write.
	CodeConflict Code = "CONFLICT"
	// CodeTransient marks connectivity failures and exhausted retries.
	CodeTransient Code = "TRANSIENT"
	// CodeInternal is everything else.
	CodeInternal Code = "INTERNAL"
)
