package errors

import (
	"encoding/json"
	stderrors "errors"
)

// ErrorResponse is the JSON structure returned to clients following RFC 7807.
// A relayed stream that fails after its status was sent ends with the same
// structure as its last NDJSON record.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details sent to clients.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	StreamID  string         `json:"stream_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse for JSON serialization.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:      e.Code,
			Message:   e.Message,
			Retryable: e.Retryable,
			Details:   e.Details,
		},
	}
}

// ResponseFor converts any error to an ErrorResponse. Errors that are not
// AppErrors are reported as INTERNAL_ERROR without exposing their text.
func ResponseFor(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	return Wrap(err).ToResponse()
}

// StreamRecord renders err as the newline-terminated record that closes a
// stream whose headers were already committed.
func StreamRecord(err error, streamID string) []byte {
	resp := ResponseFor(err)
	resp.Error.StreamID = streamID
	line, merr := json.Marshal(resp)
	if merr != nil {
		// Details carried something unencodable; the code still goes out.
		resp.Error.Details = nil
		line, _ = json.Marshal(resp)
	}
	return append(line, '\n')
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
