package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"gigmarket/pkg/apperror"
)

// IsRetryableError decides whether a failed message should be redelivered.
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	// malformed payloads never succeed on retry
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, "json_decode_error"
	}

	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperror.KindServiceUnavailable:
			return true, string(appErr.Kind)
		case apperror.KindInternal:
			if appErr.Err != nil {
				return IsRetryableError(appErr.Err)
			}
			return false, string(appErr.Kind)
		default:
			// not_found, forbidden, invalid_state ... are decided by data, not timing
			return false, string(appErr.Kind)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "timeout") {
		return true, "db_connection_error"
	}

	return false, "unknown_error"
}

// ShouldRetry checks retryCount against maxRetries for retryable failures
func ShouldRetry(retryCount int64, maxRetries int64, isRetryable bool) bool {
	if !isRetryable {
		return false
	}
	return retryCount <= maxRetries
}
