package auth

import (
	"context"
	"errors"

	"github.com/weappkit/server/internal/shared/metrics"
	"go.uber.org/zap"
)

// ProviderIdentifier identifies the mini program login provider.
const ProviderIdentifier = "weapp-mini"

// AuthenticationInput carries the codes obtained by the mini program.
type AuthenticationInput struct {
	PhoneCode string `json:"phoneCode"`
	LoginCode string `json:"loginCode"`
}

// AuthenticationResponse is the outcome of Authenticate. Failures are
// reported in Error rather than returned.
type AuthenticationResponse struct {
	Success      bool          `json:"success"`
	AuthIdentity *AuthIdentity `json:"authIdentity,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Provider resolves WeChat mini program codes into an auth identity.
type Provider struct {
	tokens     *AccessTokenCache
	client     WechatClient
	identities IdentityStore
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewProvider creates a new mini program auth provider.
func NewProvider(tokens *AccessTokenCache, client WechatClient, identities IdentityStore, logger *zap.Logger, m *metrics.Metrics) *Provider {
	return &Provider{
		tokens:     tokens,
		client:     client,
		identities: identities,
		logger:     logger.With(zap.String("provider", ProviderIdentifier)),
		metrics:    m,
	}
}

// Identifier returns the provider identifier.
func (p *Provider) Identifier() string {
	return ProviderIdentifier
}

// Authenticate exchanges the phone and login codes and upserts the identity.
func (p *Provider) Authenticate(ctx context.Context, in AuthenticationInput) AuthenticationResponse {
	if in.PhoneCode == "" || in.LoginCode == "" {
		return AuthenticationResponse{Error: ErrCodesRequired.Error()}
	}

	identity, err := p.authenticate(ctx, in)
	if err != nil {
		p.logger.Warn("authentication failed", zap.Error(err))
		p.metrics.RecordAuthEvent("authenticate_failed", ProviderIdentifier)
		return AuthenticationResponse{Error: err.Error()}
	}
	return AuthenticationResponse{Success: true, AuthIdentity: identity}
}

// Register is Authenticate.
func (p *Provider) Register(ctx context.Context, in AuthenticationInput) AuthenticationResponse {
	return p.Authenticate(ctx, in)
}

func (p *Provider) authenticate(ctx context.Context, in AuthenticationInput) (*AuthIdentity, error) {
	accessToken, err := p.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	phone, err := p.client.GetPhoneNumber(ctx, accessToken, in.PhoneCode)
	if err != nil {
		return nil, err
	}
	session, err := p.client.Code2Session(ctx, in.LoginCode)
	if err != nil {
		return nil, err
	}

	return p.upsertIdentity(ctx, phone.PhoneNumber, ProviderMetadata{
		PhoneInfo: *phone,
		OpenID:    session.OpenID,
		UnionID:   session.UnionID,
	})
}

// upsertIdentity retrieves the identity for phone, creating it when absent.
// Only not-found is recovered from.
func (p *Provider) upsertIdentity(ctx context.Context, phone string, metadata ProviderMetadata) (*AuthIdentity, error) {
	identity, err := p.identities.Retrieve(ctx, phone)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return nil, err
	}

	identity, err = p.identities.Create(ctx, phone, metadata)
	if errors.Is(err, ErrIdentityExists) {
		// Lost a race with a concurrent first login.
		return p.identities.Retrieve(ctx, phone)
	}
	if err != nil {
		return nil, err
	}

	p.logger.Info("auth identity created", zap.String("auth_identity_id", identity.ID.String()))
	p.metrics.RecordAuthEvent("identity_created", ProviderIdentifier)
	return identity, nil
}
