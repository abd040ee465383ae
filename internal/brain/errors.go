package brain

import "errors"

// Component failures. Each is converted to a safe fallback at its stage boundary.
var (
	ErrClassification  = errors.New("classification failed")
	ErrEnrichment      = errors.New("context enrichment failed")
	ErrGeneration      = errors.New("reply generation failed")
	ErrOrderExtraction = errors.New("order extraction failed")
	ErrBilling         = errors.New("billing calculation failed")
)

// Settlement and routing conditions surfaced to the caller.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDelivery            = errors.New("delivery failed")
	ErrMerchantNotFound    = errors.New("merchant not found")
	ErrInvalidMessage      = errors.New("invalid inbound message")
)

// ProcessingError tells the worker whether a failed message is worth another attempt.
type ProcessingError struct {
	Err       error
	Retryable bool
}

func (e *ProcessingError) Error() string {
	return e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error) *ProcessingError {
	return &ProcessingError{Err: err, Retryable: true}
}

func NewFatalError(err error) *ProcessingError {
	return &ProcessingError{Err: err, Retryable: false}
}

// IsRetryable reports whether err, or anything it wraps, is a retryable ProcessingError.
// Errors of unknown shape are treated as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var perr *ProcessingError
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return true
}
