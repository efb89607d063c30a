package shared

import "errors"

var (
	// ErrValidation indicates malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates the referenced document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState indicates the operation is not legal in the document's current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrConversionFailed wraps storage failures during quote conversion.
	// Conversion is idempotent, so callers may safely retry.
	ErrConversionFailed = errors.New("conversion failed")
)
