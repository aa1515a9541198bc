package gateway

import (
	"context"
	"errors"

	"github.com/rhuss/respgw/pkg/api"
	"github.com/rhuss/respgw/pkg/breaker"
)

// IsBreakerFailure classifies a backend error as a circuit-breaker failure.
// A 4xx-shaped APIError (bad request, not found) reflects a client mistake,
// not a backend health problem, and must not trip the breaker — only
// 5xx/timeout/connection-level failures count.
func IsBreakerFailure(err error) bool {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case api.ErrorTypeInvalidRequest, api.ErrorTypeNotFound, api.ErrorTypeTooManyRequests:
			return false
		}
		return true
	}
	return err != nil
}

// translateBackendErr maps an error surfaced from the backend call (already
// an *api.APIError in the common case, since pkg/backend does its own HTTP/
// network error mapping) into the client-facing error for this request,
// substituting a breaker-specific code when the breaker itself rejected the
// call rather than the backend.
func translateBackendErr(err error) *api.APIError {
	if errors.Is(err, breaker.ErrOpen) {
		return api.NewServiceUnavailableError("backend is currently unavailable (circuit breaker open)")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewBackendTimeoutError("backend request timed out")
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewBackendError(err.Error())
}
