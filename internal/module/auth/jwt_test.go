package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTSigner(t *testing.T) {
	signer := NewJWTSigner(&JWTConfig{Secret: "test-secret", ExpiresIn: time.Hour, Issuer: "weappkit"})

	token, err := signer.Sign(&Claims{
		ActorID:        "cus_1",
		ActorType:      ActorCustomer,
		AuthIdentityID: "0b6f1f8e-3c39-4a8e-9c0e-6f1c1f3f6b00",
		AppMetadata:    map[string]any{"customer_id": "cus_1"},
	})
	require.NoError(t, err)

	claims, err := signer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", claims.ActorID)
	assert.Equal(t, ActorCustomer, claims.ActorType)
	assert.Equal(t, "cus_1", claims.AppMetadata["customer_id"])
	assert.Equal(t, "0b6f1f8e-3c39-4a8e-9c0e-6f1c1f3f6b00", claims.Subject)
	assert.Equal(t, "weappkit", claims.Issuer)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTSigner(&JWTConfig{Secret: "other", ExpiresIn: time.Hour})
		_, err := other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWTSigner(&JWTConfig{Secret: "test-secret", ExpiresIn: time.Hour})
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestDefaultJWTConfig(t *testing.T) {
	s := NewJWTSigner(nil)
	assert.Equal(t, 24*time.Hour, s.ExpiresIn())
}
