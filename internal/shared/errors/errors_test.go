package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns message", func(t *testing.T) {
		err := &AppError{
			Code:    "TEST_ERROR",
			Message: "test error message",
		}
		assert.Equal(t, "test error message", err.Error())
	})

	t.Run("Error includes wrapped error", func(t *testing.T) {
		wrapped := errors.New("wrapped error")
		err := &AppError{
			Code:    "TEST_ERROR",
			Message: "test error message",
			Err:     wrapped,
		}
		assert.Contains(t, err.Error(), "test error message")
		assert.Contains(t, err.Error(), "wrapped error")
	})

	t.Run("Unwrap returns wrapped error", func(t *testing.T) {
		wrapped := errors.New("wrapped error")
		err := &AppError{Code: "TEST_ERROR", Message: "test message", Err: wrapped}
		assert.Equal(t, wrapped, err.Unwrap())
	})
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
		is     error
	}{
		{"not found", NotFound("auth identity"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"unauthorized", Unauthorized(""), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"bad request", BadRequest("Invalid auth type"), "BAD_REQUEST", http.StatusBadRequest, ErrBadRequest},
		{"validation", ValidationError("no out_trade_no"), "VALIDATION_ERROR", http.StatusUnprocessableEntity, ErrBadRequest},
		{"conflict", Conflict("session exists"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"decryption", DecryptionFailed(errors.New("gcm")), "DECRYPTION_FAILED", http.StatusBadRequest, ErrBadRequest},
		{"provider", ProviderFailure("ORDER_NOT_EXIST", errors.New("boom")), "PROVIDER_ERROR", http.StatusBadGateway, ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode)
			assert.True(t, errors.Is(tt.err, tt.is))
		})
	}

	assert.Equal(t, "authentication failed", Unauthorized("").Message)
	assert.Equal(t, "auth identity not found", NotFound("auth identity").Message)
}

func TestGetStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, GetStatusCode(Unauthorized("x")))
	assert.Equal(t, http.StatusNotFound, GetStatusCode(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.Equal(t, http.StatusBadGateway, GetStatusCode(fmt.Errorf("call: %w", ErrUpstream)))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(errors.New("plain")))
}

func TestToResponse(t *testing.T) {
	resp := BadRequest("Invalid actor_type").ToResponse()
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
	assert.Equal(t, "Invalid actor_type", resp.Error.Message)
}
