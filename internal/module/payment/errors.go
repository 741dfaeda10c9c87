package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/weappkit/server/internal/shared/errors"
)

// Module errors.
var (
	ErrValidation         = errors.New("invalid payment")
	ErrNoTradeID          = fmt.Errorf("%w: no out_trade_no", ErrValidation)
	ErrDecryption         = errors.New("notification decryption failed")
	ErrInvalidSignature   = errors.New("invalid notification signature")
	ErrProviderNotFound   = errors.New("payment provider not found")
	ErrSessionNotFound    = errors.New("payment session not found")
	ErrInvalidTransition  = errors.New("invalid payment status transition")
	ErrNotPaid            = fmt.Errorf("%w: trade is not paid", ErrInvalidTransition)
	ErrWebhookEventExists = errors.New("webhook event already processed")
)

// ProviderError is a business failure reported by the wallet provider.
// The transport call itself succeeded.
type ProviderError struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	Detail     any    `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	detail := ""
	if e.Detail != nil {
		if b, err := json.Marshal(e.Detail); err == nil {
			detail = string(b)
		}
	}
	return fmt.Sprintf("%s. code: %s detail: %s", e.Message, e.Code, detail)
}

// parseProviderError decodes the provider's error body.
// Bodies that are not JSON are kept verbatim as the message.
func parseProviderError(status int, body string) *ProviderError {
	pe := &ProviderError{HTTPStatus: status}
	body = strings.TrimSpace(body)
	if body != "" {
		if err := json.Unmarshal([]byte(body), pe); err != nil || pe.Message == "" {
			pe.Message = body
		}
	}
	if pe.Message == "" {
		pe.Message = fmt.Sprintf("provider returned status %d", status)
	}
	return pe
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// toAppError maps module errors onto the shared HTTP error taxonomy.
func toAppError(err error) error {
	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		return apperrors.ProviderFailure(pe.Error(), pe)
	case errors.Is(err, ErrDecryption), errors.Is(err, ErrInvalidSignature):
		return apperrors.DecryptionFailed(err)
	case errors.Is(err, ErrValidation):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, ErrSessionNotFound):
		return apperrors.NotFound("payment session")
	case errors.Is(err, ErrProviderNotFound):
		return apperrors.NotFound("payment provider")
	case errors.Is(err, ErrInvalidTransition):
		return apperrors.Conflict(err.Error())
	default:
		return err
	}
}
