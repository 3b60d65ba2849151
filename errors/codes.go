package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Stream errors
const (
	// ErrCodeProtocol indicates a payload on the wire could not be decoded.
	ErrCodeProtocol ErrorCode = "PROTOCOL_ERROR"
	// ErrCodeCancelled indicates the stream's cancellation token fired.
	ErrCodeCancelled ErrorCode = "CANCELLED"
	// ErrCodeMissingBody indicates a response carried no body to decode.
	ErrCodeMissingBody ErrorCode = "MISSING_BODY"
	// ErrCodeInvalidState indicates a single-use stream was consumed twice.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
)

// Transport errors (retryable)
const (
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeExternalService indicates an error from the upstream service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	// ErrCodeUnavailable indicates the relay is at capacity or the upstream
	// circuit is open.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
)

// Request errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:         true,
	ErrCodeExternalService: true,
	ErrCodeUnavailable:     true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
