package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for payment data access.
type Repository interface {
	// Session operations
	CreateSession(ctx context.Context, session *PaymentSession) error
	GetSession(ctx context.Context, id string) (*PaymentSession, error)
	UpdateSession(ctx context.Context, session *PaymentSession) error

	// Webhook event operations
	CreateWebhookEvent(ctx context.Context, event *PaymentWebhookEvent) error
	GetWebhookEvent(ctx context.Context, provider, eventID string) (*PaymentWebhookEvent, error)
	MarkWebhookEventProcessed(ctx context.Context, id uuid.UUID, err error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new payment repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// --- Session Operations ---

func (r *repository) CreateSession(ctx context.Context, session *PaymentSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create payment session: %w", err)
	}
	return nil
}

func (r *repository) GetSession(ctx context.Context, id string) (*PaymentSession, error) {
	var session PaymentSession
	err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get payment session: %w", err)
	}
	return &session, nil
}

func (r *repository) UpdateSession(ctx context.Context, session *PaymentSession) error {
	if err := r.db.WithContext(ctx).Save(session).Error; err != nil {
		return fmt.Errorf("update payment session: %w", err)
	}
	return nil
}

// --- Webhook Event Operations ---

func (r *repository) CreateWebhookEvent(ctx context.Context, event *PaymentWebhookEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrWebhookEventExists
		}
		return fmt.Errorf("create webhook event: %w", err)
	}
	return nil
}

func (r *repository) GetWebhookEvent(ctx context.Context, provider, eventID string) (*PaymentWebhookEvent, error) {
	var event PaymentWebhookEvent
	err := r.db.WithContext(ctx).First(&event, "provider = ? AND event_id = ?", provider, eventID).Error
	if err != nil {
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return &event, nil
}

func (r *repository) MarkWebhookEventProcessed(ctx context.Context, id uuid.UUID, processErr error) error {
	now := time.Now()
	updates := map[string]any{
		"processed":    true,
		"processed_at": &now,
	}
	if processErr != nil {
		msg := processErr.Error()
		updates["error"] = &msg
	}
	if err := r.db.WithContext(ctx).Model(&PaymentWebhookEvent{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}
