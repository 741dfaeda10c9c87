package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents session token claims.
type Claims struct {
	jwt.RegisteredClaims
	ActorID        string         `json:"actor_id"`
	ActorType      string         `json:"actor_type"`
	AuthIdentityID string         `json:"auth_identity_id"`
	AppMetadata    map[string]any `json:"app_metadata"`
}

// TokenSigner signs session tokens.
type TokenSigner interface {
	Sign(claims *Claims) (string, error)
	ExpiresIn() time.Duration
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
	Issuer    string
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		ExpiresIn: 24 * time.Hour,
		Issuer:    "weappkit",
	}
}

// JWTSigner signs and validates HS256 session tokens.
type JWTSigner struct {
	config *JWTConfig
	now    func() time.Time
}

// NewJWTSigner creates a new JWT signer.
func NewJWTSigner(config *JWTConfig) *JWTSigner {
	if config == nil {
		config = DefaultJWTConfig()
	}
	return &JWTSigner{config: config, now: time.Now}
}

// Sign fills the registered claims and signs the token.
func (s *JWTSigner) Sign(claims *Claims) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Subject:   claims.AuthIdentityID,
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.ExpiresIn)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns its claims.
func (s *JWTSigner) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidTokenClaims
	}
	return claims, nil
}

// ExpiresIn returns the token lifetime.
func (s *JWTSigner) ExpiresIn() time.Duration {
	return s.config.ExpiresIn
}

var _ TokenSigner = (*JWTSigner)(nil)
