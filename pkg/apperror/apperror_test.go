package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(NotFound("gig not found")))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("award: %w", Conflict("duplicate bid"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", Forbidden("not the owner"))
	assert.True(t, errors.Is(err, Forbidden("")))
	assert.False(t, errors.Is(err, NotFound("")))
	assert.True(t, Is(err, KindForbidden))
	assert.False(t, Is(nil, KindForbidden))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ServiceUnavailable("processor unavailable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "processor unavailable: dial tcp: refused", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:            http.StatusNotFound,
		KindForbidden:           http.StatusForbidden,
		KindUnauthenticated:     http.StatusUnauthorized,
		KindInvalidState:        http.StatusBadRequest,
		KindInvalidArgument:     http.StatusBadRequest,
		KindConflict:            http.StatusConflict,
		KindQuotaExceeded:       http.StatusTooManyRequests,
		KindPaymentNotCompleted: http.StatusPaymentRequired,
		KindServiceUnavailable:  http.StatusServiceUnavailable,
		KindInternal:            http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), kind)
	}
}

func TestMessageHidesInternal(t *testing.T) {
	assert.Equal(t, "gig not found", Message(NotFound("gig not found")))
	assert.Equal(t, "internal error", Message(Internal("query failed: relation missing", errors.New("pg"))))
	assert.Equal(t, "internal error", Message(errors.New("raw")))
}
