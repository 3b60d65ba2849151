package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeProtocol, "bad frame", http.StatusBadGateway)
	if err.Code != ErrCodeProtocol {
		t.Errorf("expected code %s, got %s", ErrCodeProtocol, err.Code)
	}
	if err.Message != "bad frame" {
		t.Errorf("expected message 'bad frame', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusBadGateway {
		t.Errorf("expected status %d, got %d", http.StatusBadGateway, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("PROTOCOL_ERROR should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeTimeout, "timed out", http.StatusGatewayTimeout)
	if !err.Retryable {
		t.Error("TIMEOUT should be retryable")
	}
}

func TestAppError_Protocol_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := Protocol("decode item", cause)
	if err.Code != ErrCodeProtocol {
		t.Errorf("expected PROTOCOL_ERROR, got %s", err.Code)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if !strings.Contains(err.Error(), "decode item") {
		t.Errorf("expected reason in message, got %q", err.Error())
	}
}

func TestAppError_InvalidState_DefaultMessage(t *testing.T) {
	err := InvalidState("")
	if err.Message == "" {
		t.Error("expected default message")
	}
	if err.Code != ErrCodeInvalidState {
		t.Errorf("expected INVALID_STATE, got %s", err.Code)
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", InvalidState("already consumed"))
	if !stderrors.Is(err, InvalidState("")) {
		t.Error("expected match on code")
	}
	if stderrors.Is(err, MissingBody()) {
		t.Error("expected no match for a different code")
	}
}

func TestAppError_WithDetails_Merge(t *testing.T) {
	err := Protocol("x", nil).WithDetails(map[string]any{"a": 1}).WithDetails(map[string]any{"b": 2})
	if len(err.Details) != 2 {
		t.Errorf("expected 2 details, got %d", len(err.Details))
	}
}

func TestAppError_WithDetail_NilMap(t *testing.T) {
	err := MissingBody().WithDetail("stream_id", "abc")
	if err.Details["stream_id"] != "abc" {
		t.Errorf("expected stream_id=abc, got %v", err.Details["stream_id"])
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"Protocol", Protocol("x", nil), ErrCodeProtocol, http.StatusBadGateway, false},
		{"Cancelled", Cancelled(nil), ErrCodeCancelled, 499, false},
		{"MissingBody", MissingBody(), ErrCodeMissingBody, http.StatusBadGateway, false},
		{"InvalidState", InvalidState("x"), ErrCodeInvalidState, http.StatusInternalServerError, false},
		{"Timeout", Timeout("read"), ErrCodeTimeout, http.StatusGatewayTimeout, true},
		{"InvalidInput", InvalidInput("format", "bad"), ErrCodeInvalidInput, http.StatusBadRequest, false},
		{"Internal", Internal(nil), ErrCodeInternal, http.StatusInternalServerError, false},
		{"ExternalService", ExternalServiceError("upstream", nil), ErrCodeExternalService, http.StatusBadGateway, true},
		{"Unavailable", Unavailable("bulkhead full"), ErrCodeUnavailable, http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("status = %d, want %d", tt.err.HTTPStatus, tt.status)
			}
			if tt.err.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", tt.err.Retryable, tt.retryable)
			}
		})
	}
}

func TestIsCancellation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, true},
		{"wrapped context canceled", fmt.Errorf("read: %w", context.Canceled), true},
		{"cancelled app error", Cancelled(nil), true},
		{"deadline", context.DeadlineExceeded, false},
		{"protocol", Protocol("x", nil), false},
	}
	for _, tt := range tests {
		if got := IsCancellation(tt.err); got != tt.want {
			t.Errorf("IsCancellation(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
	orig := MissingBody()
	if got := Wrap(fmt.Errorf("outer: %w", orig)); got != orig {
		t.Error("Wrap should unwrap to the original AppError")
	}
	plain := fmt.Errorf("something broke")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected INTERNAL_ERROR with cause, got %v", got)
	}
}

func TestAppError_ToResponse_Success(t *testing.T) {
	resp := ExternalServiceError("upstream", nil).ToResponse()
	if resp.Error.Code != ErrCodeExternalService {
		t.Errorf("expected EXTERNAL_SERVICE_ERROR, got %s", resp.Error.Code)
	}
	if !resp.Error.Retryable {
		t.Error("expected retryable in response")
	}
	if resp.Error.Details["service"] != "upstream" {
		t.Errorf("expected service detail, got %v", resp.Error.Details)
	}
}

func TestResponseFor(t *testing.T) {
	resp := ResponseFor(fmt.Errorf("db password is hunter2"))
	if resp.Error.Code != ErrCodeInternal {
		t.Errorf("expected INTERNAL_ERROR, got %s", resp.Error.Code)
	}
	if strings.Contains(resp.Error.Message, "hunter2") {
		t.Errorf("internal cause leaked: %q", resp.Error.Message)
	}
	if got := ResponseFor(fmt.Errorf("read: %w", Protocol("bad frame", nil))); got.Error.Code != ErrCodeProtocol {
		t.Errorf("expected PROTOCOL_ERROR through wrapping, got %s", got.Error.Code)
	}
	if got := ResponseFor(nil); got.Error.Code != "" {
		t.Errorf("expected empty response for nil, got %+v", got)
	}
}

func TestStreamRecord(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    ErrorCode
		wantDetails bool
	}{
		{"app error", Protocol("bad frame", nil).WithDetail("line", "{oops"), ErrCodeProtocol, true},
		{"plain error", fmt.Errorf("boom"), ErrCodeInternal, false},
		{"unencodable details", Timeout("upstream").WithDetail("ch", make(chan int)), ErrCodeTimeout, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := StreamRecord(tt.err, "stream-7")
			if !strings.HasSuffix(string(line), "\n") || strings.Count(string(line), "\n") != 1 {
				t.Fatalf("expected one newline-terminated record, got %q", line)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				t.Fatalf("record is not JSON: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
			if resp.Error.StreamID != "stream-7" {
				t.Errorf("stream_id = %q", resp.Error.StreamID)
			}
			if (resp.Error.Details != nil) != tt.wantDetails {
				t.Errorf("details = %v", resp.Error.Details)
			}
		})
	}
}

func TestAsAppError(t *testing.T) {
	got, ok := AsAppError(fmt.Errorf("wrap: %w", Protocol("x", nil)))
	if !ok || got.Code != ErrCodeProtocol {
		t.Fatalf("expected PROTOCOL_ERROR, got %v %v", got, ok)
	}
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("expected AsAppError to return false for non-AppError")
	}
	if !IsAppError(MissingBody()) {
		t.Error("expected IsAppError to be true")
	}
}
