package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigmarket/pkg/apperror"
)

func TestJWTRoundTrip(t *testing.T) {
	id := uuid.New()
	tok, err := GenerateJWT(id, "client", "secret", time.Hour)
	require.NoError(t, err)

	gotID, role, err := ParseJWT(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "client", role)

	_, _, err = ParseJWT(tok, "other")
	assert.Error(t, err)

	expired, err := GenerateJWT(id, "client", "secret", -time.Minute)
	require.NoError(t, err)
	_, _, err = ParseJWT(expired, "secret")
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Basic abc":  "",
		"abc":        "",
		"":           "",
	}
	for header, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, ExtractToken(r), header)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", hash)
	assert.True(t, CheckPassword("correct-horse", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error = &json.SyntaxError{}
	cases := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"bad json", fmt.Errorf("decode: %w", syntaxErr), false, "json_decode_error"},
		{"processor down", apperror.ServiceUnavailable("processor unavailable", errors.New("503")), true, "service_unavailable"},
		{"not found", apperror.NotFound("project not found"), false, "not_found"},
		{"invalid state", apperror.InvalidState("project is completed"), false, "invalid_state"},
		{"internal wrapping timeout", apperror.Internal("store failed", context.DeadlineExceeded), true, "timeout"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"connection reset", errors.New("connection reset by peer"), true, "db_connection_error"},
		{"other", errors.New("boom"), false, "unknown_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tc.err)
			assert.Equal(t, tc.retryable, retryable)
			assert.Equal(t, tc.errType, errType)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(0, 5, true))
	assert.True(t, ShouldRetry(5, 5, true))
	assert.False(t, ShouldRetry(6, 5, true))
	assert.False(t, ShouldRetry(0, 5, false))
}

func TestFormatRetryKeyIsStable(t *testing.T) {
	a := FormatRetryKey("q", []byte(`{"x":1}`))
	assert.Equal(t, a, FormatRetryKey("q", []byte(`{"x":1}`)))
	assert.NotEqual(t, a, FormatRetryKey("q", []byte(`{"x":2}`)))
	assert.NotEqual(t, a, FormatRetryKey("other", []byte(`{"x":1}`)))
}
