package auth

import (
	"context"
	"fmt"

	apperrors "github.com/weappkit/server/internal/shared/errors"
	"github.com/weappkit/server/internal/shared/metrics"
	"go.uber.org/zap"
)

// LinkMode controls how a failed customer link is handled on login.
type LinkMode string

const (
	// LinkStrict fails the login when the customer cannot be linked.
	LinkStrict LinkMode = "strict"
	// LinkBestEffort logs the failure and returns it as a warning.
	LinkBestEffort LinkMode = "best_effort"
)

// Authenticator resolves login credentials into an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, in AuthenticationInput) AuthenticationResponse
}

// LoginInput is a login request.
type LoginInput struct {
	Type        string
	ActorType   string
	Credentials AuthenticationInput
}

// LoginResult carries the session token. Warning is set when a best-effort
// customer link failed.
type LoginResult struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // seconds
	Warning   string `json:"warning,omitempty"`
}

// Exchange turns a mini program login into a signed session token,
// provisioning a customer on first login.
type Exchange struct {
	provider   Authenticator
	identities IdentityStore
	customers  CustomerStore
	signer     TokenSigner
	linkMode   LinkMode
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewExchange creates a new login exchange.
func NewExchange(
	provider Authenticator,
	identities IdentityStore,
	customers CustomerStore,
	signer TokenSigner,
	linkMode LinkMode,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Exchange {
	if linkMode == "" {
		linkMode = LinkStrict
	}
	return &Exchange{
		provider:   provider,
		identities: identities,
		customers:  customers,
		signer:     signer,
		linkMode:   linkMode,
		logger:     logger,
		metrics:    m,
	}
}

// Login authenticates, provisions the customer if needed and signs a token.
func (e *Exchange) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.Type != AuthTypeMini {
		return nil, ErrInvalidAuthType
	}
	if in.ActorType != ActorCustomer {
		return nil, ErrInvalidActorType
	}

	resp := e.provider.Authenticate(ctx, in.Credentials)
	if !resp.Success || resp.AuthIdentity == nil {
		e.metrics.RecordAuthEvent("login_failed", ProviderIdentifier)
		return nil, apperrors.Unauthorized(resp.Error)
	}
	identity := resp.AuthIdentity
	result := &LoginResult{}

	if in.ActorType == ActorCustomer && identity.LinkedID(ActorCustomer) == "" {
		linked, warning, err := e.provisionCustomer(ctx, identity)
		if err != nil {
			e.metrics.RecordAuthEvent("login_failed", ProviderIdentifier)
			return nil, err
		}
		identity = linked
		result.Warning = warning
	}

	token, err := e.signer.Sign(claimsFor(identity, in.ActorType))
	if err != nil {
		return nil, err
	}
	result.Token = token
	result.ExpiresIn = int64(e.signer.ExpiresIn().Seconds())

	e.metrics.RecordAuthEvent("login", ProviderIdentifier)
	return result, nil
}

// provisionCustomer creates a customer for the identity and links it back.
// In best-effort mode a failed link still yields the customer id on the
// returned identity, with the failure reported as a warning.
func (e *Exchange) provisionCustomer(ctx context.Context, identity *AuthIdentity) (*AuthIdentity, string, error) {
	meta := identity.ProviderMetadata
	customer, err := e.customers.Create(ctx, meta.PhoneInfo.PhoneNumber, map[string]any{
		"openid":  meta.OpenID,
		"unionid": meta.UnionID,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create customer: %w", err)
	}
	e.metrics.RecordAuthEvent("customer_created", ProviderIdentifier)

	patch := map[string]any{ActorCustomer + "_id": customer.ID}
	updated, err := e.identities.UpdateAppMetadata(ctx, identity.ID, patch)
	if err == nil {
		return updated, "", nil
	}

	e.metrics.RecordAuthEvent("customer_link_failed", ProviderIdentifier)
	if e.linkMode == LinkStrict {
		return nil, "", fmt.Errorf("%w: %v", ErrCustomerLink, err)
	}

	e.logger.Warn("customer link failed",
		zap.String("auth_identity_id", identity.ID.String()),
		zap.String("customer_id", customer.ID),
		zap.Error(err),
	)
	local := *identity
	local.AppMetadata = make(map[string]any, len(identity.AppMetadata)+1)
	for k, v := range identity.AppMetadata {
		local.AppMetadata[k] = v
	}
	for k, v := range patch {
		local.AppMetadata[k] = v
	}
	return &local, fmt.Sprintf("%s: %v", ErrCustomerLink, err), nil
}

func claimsFor(identity *AuthIdentity, actorType string) *Claims {
	key := actorType + "_id"
	actorID := identity.LinkedID(actorType)
	return &Claims{
		ActorID:        actorID,
		ActorType:      actorType,
		AuthIdentityID: identity.ID.String(),
		AppMetadata:    map[string]any{key: actorID},
	}
}
