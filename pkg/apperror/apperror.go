// Package apperror defines the typed failures returned by the marketplace core.
// Every error leaving a service carries a stable Kind that callers map to a
// status class.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable failure class.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInvalidState        Kind = "invalid_state"
	KindConflict            Kind = "conflict"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindPaymentNotCompleted Kind = "payment_not_completed"
	KindServiceUnavailable  Kind = "service_unavailable"
	KindInvalidArgument     Kind = "invalid_argument"
	KindUnauthenticated     Kind = "unauthenticated"
	KindInternal            Kind = "internal"
)

// Error is a failure with a kind and a human readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperror.NotFound(""))
// works as a kind test.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error            { return New(KindNotFound, message) }
func Forbidden(message string) *Error           { return New(KindForbidden, message) }
func InvalidState(message string) *Error        { return New(KindInvalidState, message) }
func Conflict(message string) *Error            { return New(KindConflict, message) }
func QuotaExceeded(message string) *Error       { return New(KindQuotaExceeded, message) }
func PaymentNotCompleted(message string) *Error { return New(KindPaymentNotCompleted, message) }
func InvalidArgument(message string) *Error     { return New(KindInvalidArgument, message) }
func Unauthenticated(message string) *Error     { return New(KindUnauthenticated, message) }

func ServiceUnavailable(message string, err error) *Error {
	return Wrap(KindServiceUnavailable, message, err)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to its status class.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindInvalidState, KindInvalidArgument:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindPaymentNotCompleted:
		return http.StatusPaymentRequired
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err. Internal errors are not
// echoed back.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "internal error"
}
