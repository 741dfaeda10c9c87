package auth

import (
	"errors"
	"fmt"
)

// Auth module errors.
var (
	ErrCodesRequired    = errors.New("phoneCode and loginCode are required")
	ErrIdentityNotFound = errors.New("auth identity not found")
	ErrIdentityExists   = errors.New("auth identity already exists")
	ErrInvalidAuthType  = errors.New("invalid auth type")
	ErrInvalidActorType = errors.New("invalid actor_type")
	ErrCustomerLink     = errors.New("failed to link customer to auth identity")

	// Token errors
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTokenClaims = errors.New("invalid token claims")

	// WeChat open API errors
	ErrOpenAPI            = errors.New("wechat open api error")
	ErrOpenAPIUnavailable = errors.New("wechat open api unavailable")
)

// APIError is a business error returned by the WeChat open API in the
// errcode/errmsg envelope.
type APIError struct {
	Endpoint string
	ErrCode  int
	ErrMsg   string
}

// Error returns the provider's errmsg so it surfaces to the caller verbatim.
func (e *APIError) Error() string {
	if e.ErrMsg == "" {
		return fmt.Sprintf("%s: errcode %d", e.Endpoint, e.ErrCode)
	}
	return e.ErrMsg
}

// Unwrap lets callers match ErrOpenAPI.
func (e *APIError) Unwrap() error {
	return ErrOpenAPI
}
