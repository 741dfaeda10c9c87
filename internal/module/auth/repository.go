package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdentityStore defines the interface for auth identity data access.
type IdentityStore interface {
	// Retrieve returns the identity for a phone number, or ErrIdentityNotFound.
	Retrieve(ctx context.Context, entityID string) (*AuthIdentity, error)
	Create(ctx context.Context, entityID string, metadata ProviderMetadata) (*AuthIdentity, error)
	// UpdateAppMetadata merges patch into the identity's app metadata.
	UpdateAppMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) (*AuthIdentity, error)
}

// CustomerStore defines the interface for customer data access.
type CustomerStore interface {
	Create(ctx context.Context, phone string, metadata map[string]any) (*Customer, error)
}

// --- Identity Repository Implementation ---

type identityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new identity repository.
func NewIdentityRepository(db *gorm.DB) IdentityStore {
	return &identityRepository{db: db}
}

func (r *identityRepository) Retrieve(ctx context.Context, entityID string) (*AuthIdentity, error) {
	var identity AuthIdentity
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND provider = ?", entityID, ProviderID).
		First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("get auth identity: %w", err)
	}
	return &identity, nil
}

func (r *identityRepository) Create(ctx context.Context, entityID string, metadata ProviderMetadata) (*AuthIdentity, error) {
	identity := &AuthIdentity{
		ID:               uuid.New(),
		EntityID:         entityID,
		Provider:         ProviderID,
		ProviderMetadata: metadata,
		AppMetadata:      map[string]any{},
	}
	if err := r.db.WithContext(ctx).Create(identity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrIdentityExists
		}
		return nil, fmt.Errorf("create auth identity: %w", err)
	}
	return identity, nil
}

func (r *identityRepository) UpdateAppMetadata(ctx context.Context, id uuid.UUID, patch map[string]any) (*AuthIdentity, error) {
	var identity AuthIdentity
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&identity, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrIdentityNotFound
			}
			return err
		}
		if identity.AppMetadata == nil {
			identity.AppMetadata = make(map[string]any, len(patch))
		}
		for k, v := range patch {
			identity.AppMetadata[k] = v
		}
		return tx.Save(&identity).Error
	})
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update auth identity: %w", err)
	}
	return &identity, nil
}

// --- Customer Repository Implementation ---

type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(db *gorm.DB) CustomerStore {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, phone string, metadata map[string]any) (*Customer, error) {
	customer := &Customer{
		ID:       NewCustomerID(),
		Phone:    phone,
		Metadata: metadata,
	}
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

// NewCustomerID returns a fresh customer id.
func NewCustomerID() string {
	return "cus_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
