package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentSession is the host-side record of one payment attempt.
type PaymentSession struct {
	ID           string        `json:"id" gorm:"primaryKey;size:64"`
	ProviderID   string        `json:"provider_id" gorm:"size:32;not null;index"`
	Amount       float64       `json:"amount" gorm:"type:numeric(20,2);not null"`
	CurrencyCode string        `json:"currency_code" gorm:"size:3;not null"`
	Status       PaymentStatus `json:"status" gorm:"size:16;not null;default:pending"`
	Data         SessionData   `json:"data" gorm:"type:jsonb;serializer:json"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// TableName returns the database table name.
func (PaymentSession) TableName() string {
	return "payment_sessions"
}

// Transition moves the session to status. Moving to the current status is
// a no-op; terminal sessions cannot move.
func (s *PaymentSession) Transition(to PaymentStatus) (changed bool, err error) {
	if s.Status == to {
		return false, nil
	}
	if s.Status.IsTerminal() || to == StatusPending {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	return true, nil
}

// PaymentWebhookEvent records a received notification for deduplication.
type PaymentWebhookEvent struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Provider      string     `gorm:"size:32;not null;uniqueIndex:idx_provider_event"`
	EventID       string     `gorm:"size:128;not null;uniqueIndex:idx_provider_event"` // envelope id or body fingerprint
	EventType     string     `gorm:"size:64"`
	Action        Action     `gorm:"size:32;not null"`
	OutTradeNo    string     `gorm:"size:64;index"`
	TransactionID string     `gorm:"size:64"`
	Data          string     `gorm:"type:jsonb"` // decrypted notification, canonical JSON
	Processed     bool       `gorm:"default:false"`
	ProcessedAt   *time.Time
	Error         *string
	CreatedAt     time.Time
}

// TableName returns the database table name.
func (PaymentWebhookEvent) TableName() string {
	return "payment_webhook_events"
}
