package fraud

import "errors"

var (
	// ErrPatternUnavailable means the history store could not be read; the
	// returned pattern is zeroed and must not be mistaken for "no history".
	ErrPatternUnavailable = errors.New("transaction pattern unavailable")

	ErrAlertNotFound           = errors.New("fraud alert not found")
	ErrInvalidStatusTransition = errors.New("invalid fraud alert status transition")
	ErrStatusChanged           = errors.New("fraud alert status changed concurrently")
)
