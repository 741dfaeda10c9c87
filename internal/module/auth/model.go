package auth

import (
	"time"

	"github.com/google/uuid"
)

// ProviderID is the auth provider recorded on identities created by the
// WeChat login exchange.
const ProviderID = "weapp-auth"

// Actor types.
const (
	ActorCustomer = "customer"
	ActorUser     = "user"
)

// AuthTypeMini is the only supported login type.
const AuthTypeMini = "mini"

// ProviderMetadata is the WeChat profile stored on an identity.
type ProviderMetadata struct {
	PhoneInfo PhoneInfo `json:"phone_info"`
	OpenID    string    `json:"openid"`
	UnionID   string    `json:"unionid,omitempty"`
}

// AuthIdentity is a login identity keyed by phone number.
type AuthIdentity struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	EntityID         string           `json:"entity_id" gorm:"size:32;not null;uniqueIndex:idx_auth_identity_entity"` // phone number
	Provider         string           `json:"provider" gorm:"size:32;not null;uniqueIndex:idx_auth_identity_entity"`
	ProviderMetadata ProviderMetadata `json:"provider_metadata" gorm:"type:jsonb;serializer:json"`
	AppMetadata      map[string]any   `json:"app_metadata" gorm:"type:jsonb;serializer:json"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TableName returns the database table name.
func (AuthIdentity) TableName() string {
	return "auth_identities"
}

// LinkedID returns the id of the entity linked for actorType, e.g.
// app_metadata.customer_id for customers.
func (i *AuthIdentity) LinkedID(actorType string) string {
	if i == nil || i.AppMetadata == nil {
		return ""
	}
	id, _ := i.AppMetadata[actorType+"_id"].(string)
	return id
}

// Customer is a storefront customer provisioned on first login.
type Customer struct {
	ID        string         `json:"id" gorm:"primaryKey;size:64"`
	Phone     string         `json:"phone" gorm:"size:32;index"`
	Metadata  map[string]any `json:"metadata" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName returns the database table name.
func (Customer) TableName() string {
	return "customers"
}
