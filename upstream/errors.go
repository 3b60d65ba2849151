package upstream

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/resilience"
)

// service names the upstream in AppError details.
const service = "upstream"

// maxErrorBody caps how much of an error response is kept in details.
const maxErrorBody = 512

// classifyStatus turns a non-2xx status into an AppError. 429 and 5xx are
// retryable; other 4xx are not.
func classifyStatus(status int, body []byte) *apperrors.AppError {
	if status >= 200 && status < 300 {
		return nil
	}
	err := apperrors.ExternalServiceError(service, fmt.Errorf("HTTP %d", status)).
		WithDetail("status", status)
	if len(body) > 0 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		err = err.WithDetail("body", string(body))
	}
	err.Retryable = status == http.StatusTooManyRequests || status >= 500
	return err
}

// classifyTransport maps a failed round trip. Cancellation of ctx is returned
// as-is so callers see a clean stop rather than an upstream failure.
func classifyTransport(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if stderrors.Is(ctxErr, context.DeadlineExceeded) {
			return apperrors.Timeout("upstream open").WithCause(err)
		}
		return ctxErr
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Timeout("upstream open").WithCause(err)
	}
	return apperrors.ExternalServiceError(service, err).WithDetail("reason", "connection")
}

// classifyBreaker maps an open circuit to UNAVAILABLE.
func classifyBreaker(err error) error {
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		return apperrors.Unavailable("upstream circuit open").WithCause(err)
	}
	return err
}

// isRetryable reports whether opening again may succeed.
func isRetryable(err error) bool {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Retryable && appErr.Code != apperrors.ErrCodeUnavailable
	}
	return false
}
