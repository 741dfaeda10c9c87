package payment

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	canonicaljson "github.com/gibson042/canonicaljson-go"
	"github.com/google/uuid"
	"github.com/weappkit/server/internal/port/outbound"
	"go.uber.org/zap"
)

// Service drives host payment sessions through the wallet providers and
// consumes their notifications.
type Service struct {
	registry *ProviderRegistry
	repo     Repository
	archive  outbound.ObjectStoragePort
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new payment service. archive may be nil.
func NewService(registry *ProviderRegistry, repo Repository, archive outbound.ObjectStoragePort, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		repo:     repo,
		archive:  archive,
		logger:   logger,
		now:      time.Now,
	}
}

// NewSessionID returns a fresh payment-session id.
func NewSessionID() string {
	return SessionPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// CreateSessionInput starts a new payment session.
type CreateSessionInput struct {
	Amount       float64
	CurrencyCode string
	Description  string
	OpenID       string
}

// CreateSession creates a pending session and initiates the remote transaction.
func (s *Service) CreateSession(ctx context.Context, providerID string, in CreateSessionInput) (*PaymentSession, error) {
	p, err := s.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	sessionID := NewSessionID()
	data := SessionData{}
	if in.Description != "" {
		data[KeyDescription] = in.Description
	}
	if in.OpenID != "" {
		data[KeyOpenID] = in.OpenID
	}

	out, err := p.Initiate(ctx, InitiateInput{
		SessionID:    sessionID,
		Amount:       in.Amount,
		CurrencyCode: in.CurrencyCode,
		Description:  in.Description,
		OpenID:       in.OpenID,
		Data:         data,
	})
	if err != nil {
		return nil, err
	}

	session := &PaymentSession{
		ID:           sessionID,
		ProviderID:   p.Identifier(),
		Amount:       in.Amount,
		CurrencyCode: strings.ToLower(in.CurrencyCode),
		Status:       StatusPending,
		Data:         out.Data,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (*PaymentSession, error) {
	return s.repo.GetSession(ctx, id)
}

func (s *Service) loadSession(ctx context.Context, id string) (*PaymentSession, *Provider, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.registry.Get(session.ProviderID)
	if err != nil {
		return nil, nil, err
	}
	return session, p, nil
}

// AuthorizeSession confirms a paid session. The session is only captured
// once the remote trade reports SUCCESS; otherwise it stays as it is and
// ErrNotPaid is returned.
func (s *Service) AuthorizeSession(ctx context.Context, id string) (*PaymentSession, error) {
	session, p, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == StatusCaptured {
		return session, nil
	}

	remote, err := p.GetStatus(ctx, SessionInput{Data: session.Data})
	if err != nil {
		return nil, err
	}
	if remote != StatusCaptured {
		s.logger.Info("authorize rejected for unpaid session",
			zap.String("session_id", id),
			zap.String("remote_status", string(remote)),
		)
		return nil, fmt.Errorf("%w: remote status %s", ErrNotPaid, remote)
	}

	out, err := p.Authorize(ctx, SessionInput{Data: session.Data})
	if err != nil {
		return nil, err
	}
	if _, err := session.Transition(out.Status); err != nil {
		return nil, err
	}
	session.Data = out.Data
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CancelSession closes the remote transaction and cancels the session.
func (s *Service) CancelSession(ctx context.Context, id string) (*PaymentSession, error) {
	session, p, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == StatusCanceled {
		return session, nil
	}
	if session.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, session.Status, StatusCanceled)
	}

	out, err := p.Cancel(ctx, SessionInput{Data: session.Data})
	if err != nil {
		return nil, err
	}
	if out.Reason != "" {
		s.logger.Info("session canceled without remote close",
			zap.String("session_id", id),
			zap.String("reason", out.Reason),
		)
	}
	if _, err := session.Transition(StatusCanceled); err != nil {
		return nil, err
	}
	session.Data = out.Data
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// RefundSession refunds a captured session. The status is unchanged.
func (s *Service) RefundSession(ctx context.Context, id string, amount float64) (*PaymentSession, error) {
	session, p, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != StatusCaptured {
		return nil, fmt.Errorf("%w: refund requires a captured session, got %s", ErrInvalidTransition, session.Status)
	}

	out, err := p.Refund(ctx, RefundInput{Amount: amount, Data: session.Data})
	if err != nil {
		return nil, err
	}
	session.Data = out.Data
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// SyncStatus polls the provider and applies the mapped status to a pending session.
func (s *Service) SyncStatus(ctx context.Context, id string) (*PaymentSession, error) {
	session, p, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, nil
	}

	status, err := p.GetStatus(ctx, SessionInput{Data: session.Data})
	if err != nil {
		return nil, err
	}
	changed, err := session.Transition(status)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := s.repo.UpdateSession(ctx, session); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// WebhookOutcome reports what HandleWebhook did.
type WebhookOutcome struct {
	Result    *WebhookResult
	EventID   string
	Duplicate bool
	// SessionStatus is set when the notification moved a session.
	SessionStatus PaymentStatus
}

// HandleWebhook verifies a notification, records it once, and applies the
// resulting action to the session. Repeated deliveries of a processed
// notification are acknowledged without side effects.
func (s *Service) HandleWebhook(ctx context.Context, hookID string, payload WebhookPayload) (*WebhookOutcome, error) {
	p, err := s.registry.Get(hookID)
	if err != nil {
		return nil, err
	}

	result, err := p.GetWebhookAction(ctx, payload)
	if err != nil {
		return nil, err
	}

	eventID := result.Envelope.ID
	if eventID == "" {
		if eventID, err = fingerprint(payload.RawData); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
		}
	}
	outcome := &WebhookOutcome{Result: result, EventID: eventID}
	log := s.logger.With(
		zap.String("provider", p.Identifier()),
		zap.String("event_id", eventID),
		zap.String("action", string(result.Action)),
	)

	event, err := s.recordEvent(ctx, p.Identifier(), eventID, result)
	if err != nil {
		if errors.Is(err, ErrWebhookEventExists) {
			log.Info("webhook event already processed")
			outcome.Duplicate = true
			return outcome, nil
		}
		return nil, err
	}

	s.archiveNotification(ctx, p.Identifier(), eventID, result, log)

	status, processErr := s.applyAction(ctx, result, log)
	outcome.SessionStatus = status

	if err := s.repo.MarkWebhookEventProcessed(ctx, event.ID, processErr); err != nil {
		log.Error("failed to mark event processed", zap.Error(err))
	}
	if processErr != nil {
		return nil, processErr
	}
	return outcome, nil
}

// recordEvent stores the event, or returns the earlier record when a previous
// delivery failed before completing. Completed events yield ErrWebhookEventExists.
func (s *Service) recordEvent(ctx context.Context, provider, eventID string, result *WebhookResult) (*PaymentWebhookEvent, error) {
	data, err := canonicaljson.Marshal(result.Notification)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}

	event := &PaymentWebhookEvent{
		ID:        uuid.New(),
		Provider:  provider,
		EventID:   eventID,
		EventType: result.Envelope.EventType,
		Action:    result.Action,
		Data:      string(data),
	}
	if result.Notification != nil {
		event.OutTradeNo = result.Notification.OutTradeNo
		event.TransactionID = result.Notification.TransactionID
	}

	err = s.repo.CreateWebhookEvent(ctx, event)
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, ErrWebhookEventExists) {
		return nil, err
	}

	existing, getErr := s.repo.GetWebhookEvent(ctx, provider, eventID)
	if getErr != nil {
		return nil, getErr
	}
	if existing.Processed && existing.Error == nil {
		return nil, ErrWebhookEventExists
	}
	return existing, nil
}

func (s *Service) applyAction(ctx context.Context, result *WebhookResult, log *zap.Logger) (PaymentStatus, error) {
	to, ok := StatusForAction(result.Action)
	if !ok || result.Data == nil {
		log.Debug("notification does not move the session")
		return "", nil
	}

	session, err := s.repo.GetSession(ctx, result.Data.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			log.Warn("notification for unknown session", zap.String("session_id", result.Data.SessionID))
			return "", nil
		}
		return "", err
	}

	changed, err := session.Transition(to)
	if err != nil {
		log.Info("notification ignored for settled session",
			zap.String("session_id", session.ID),
			zap.String("status", string(session.Status)),
		)
		return "", nil
	}

	patch := map[string]any{KeyTransactionID: result.Data.TransactionID}
	if result.Notification != nil && result.Notification.SuccessTime != "" {
		patch[KeySuccessTime] = result.Notification.SuccessTime
	}
	session.Data = session.Data.Merge(patch)
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return "", err
	}
	if changed {
		log.Info("session updated from notification",
			zap.String("session_id", session.ID),
			zap.String("status", string(session.Status)),
		)
	}
	return session.Status, nil
}

type archivedNotification struct {
	Provider     string             `json:"provider"`
	EventID      string             `json:"event_id"`
	EventType    string             `json:"event_type"`
	CreateTime   string             `json:"create_time"`
	Summary      string             `json:"summary"`
	Action       Action             `json:"action"`
	Notification *TradeNotification `json:"notification"`
	ReceivedAt   string             `json:"received_at"`
}

// archiveNotification writes the decrypted notification to object storage.
// Failures are logged only.
func (s *Service) archiveNotification(ctx context.Context, provider, eventID string, result *WebhookResult, log *zap.Logger) {
	if s.archive == nil {
		return
	}

	now := s.now().UTC()
	body, err := canonicaljson.Marshal(archivedNotification{
		Provider:     provider,
		EventID:      eventID,
		EventType:    result.Envelope.EventType,
		CreateTime:   result.Envelope.CreateTime,
		Summary:      result.Envelope.Summary,
		Action:       result.Action,
		Notification: result.Notification,
		ReceivedAt:   now.Format(time.RFC3339),
	})
	if err != nil {
		log.Error("failed to encode notification for archive", zap.Error(err))
		return
	}

	key := fmt.Sprintf("%s/%s/%s.json", provider, now.Format("2006/01/02"), eventID)
	if err := s.archive.Put(ctx, key, body, "application/json"); err != nil {
		log.Error("failed to archive notification", zap.String("key", key), zap.Error(err))
	}
}

// fingerprint identifies a notification body that carries no id.
func fingerprint(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return "", err
	}
	canonical, err := canonicaljson.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
