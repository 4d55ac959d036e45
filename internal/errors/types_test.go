package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentraErrorError(t *testing.T) {
	err := NewValidationError("ERR_TEST", "something is wrong").WithComponent("analysis")
	assert.Equal(t, "[ERR_TEST] component:analysis something is wrong", err.Error())

	wrapped := NewInternalError("ERR_WRAP", "outer", fmt.Errorf("inner"))
	assert.Equal(t, "[ERR_WRAP] outer: inner", wrapped.Error())
}

func TestSentraErrorIsAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := NewIOError("ERR_IO", "read failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, errors.Is(err, &SentraError{Type: ErrorTypeIO, Code: "ERR_IO"}))
	assert.False(t, errors.Is(err, &SentraError{Type: ErrorTypeIO, Code: "ERR_OTHER"}))
}

func TestWithContext(t *testing.T) {
	err := ErrSourceTooLarge(2048, 1024)
	require.NotNil(t, err.Context)
	assert.Equal(t, 2048, err.Context["size"])
	assert.Equal(t, 1024, err.Context["limit"])
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeInternal, "X", "y"))
	})

	t.Run("plain error", func(t *testing.T) {
		err := Wrap(fmt.Errorf("boom"), ErrorTypeNetwork, ErrCodeAgentFailed, "agent call failed")
		assert.Equal(t, ErrorTypeNetwork, err.Type)
		assert.True(t, err.Recoverable)
	})

	t.Run("sentra error keeps context", func(t *testing.T) {
		inner := NewValidationError("ERR_INNER", "inner").WithContext("field", "source").WithComponent("engine")
		err := Wrap(inner, ErrorTypeInternal, "ERR_OUTER", "outer")
		assert.Equal(t, "engine", err.Component)
		assert.Equal(t, "source", err.Context["field"])
		assert.True(t, err.Recoverable)
		assert.ErrorIs(t, err, inner)
	})
}

func TestTypeHelpers(t *testing.T) {
	assert.True(t, IsValidationError(ErrEmptySource()))
	assert.True(t, IsNotFound(ErrSessionNotFound("abc")))
	assert.True(t, IsSecurityError(ErrInvalidOrigin("http://evil.test")))
	assert.False(t, IsValidationError(fmt.Errorf("plain")))
	assert.Equal(t, ErrCodeEmptySource, CodeOf(fmt.Errorf("wrapped: %w", ErrEmptySource())))
	assert.Equal(t, ErrCodeInternalError, CodeOf(fmt.Errorf("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", ErrEmptySource(), http.StatusBadRequest},
		{"not found", ErrSessionNotFound("x"), http.StatusNotFound},
		{"too large", ErrSourceTooLarge(10, 5), http.StatusRequestEntityTooLarge},
		{"security", ErrInvalidOrigin("o"), http.StatusForbidden},
		{"network", NewNetworkError("ERR_NET", "down", nil), http.StatusBadGateway},
		{"deadline", fmt.Errorf("wait: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"rate limited", NewSecurityError(ErrCodeRateLimited, "slow down"), http.StatusTooManyRequests},
		{"method", NewValidationError(ErrCodeMethodNotAllowed, "no"), http.StatusMethodNotAllowed},
		{"plain", fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

type recordingLogger struct {
	warns  []string
	errors []string
}

func (l *recordingLogger) Error(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(_ context.Context, _ error, msg string, _ ...interface{}) {
	l.warns = append(l.warns, msg)
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	handler := NewErrorHandler(logger)
	ctx := context.Background()

	handler.Handle(ctx, nil)
	handler.Handle(ctx, ErrEmptySource())
	handler.Handle(ctx, ErrInvalidOrigin("x"))
	handler.Handle(ctx, fmt.Errorf("plain"))

	assert.Equal(t, []string{"Request rejected"}, logger.warns)
	assert.Equal(t, []string{"Security error occurred", "Unhandled error occurred"}, logger.errors)
}
