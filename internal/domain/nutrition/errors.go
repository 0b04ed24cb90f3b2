package nutrition

import "errors"

// Row validation errors
var (
	ErrInvalidState = errors.New("invalid nutrition state")
	ErrRowRejected  = errors.New("nutrition row rejected")
)

// Resolution errors
var (
	ErrNotFound            = errors.New("nutrition not found in any source")
	ErrFingerprintMismatch = errors.New("nutrition deviates from expected fingerprint")
)
