package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-pay/gopay/wechat/v3"
	"go.uber.org/zap"
)

// NotificationEnvelope is the body WeChat Pay posts to the notify URL.
type NotificationEnvelope struct {
	ID           string               `json:"id"`
	CreateTime   string               `json:"create_time"`
	EventType    string               `json:"event_type"`
	ResourceType string               `json:"resource_type"`
	Summary      string               `json:"summary"`
	Resource     NotificationResource `json:"resource"`
}

// NotificationResource is the encrypted part of the envelope.
type NotificationResource struct {
	Algorithm      string `json:"algorithm"`
	Ciphertext     string `json:"ciphertext"`
	AssociatedData string `json:"associated_data"`
	Nonce          string `json:"nonce"`
	OriginalType   string `json:"original_type"`
}

// TradeNotification is the decrypted resource.
type TradeNotification struct {
	TradeState    string `json:"trade_state"`
	TransactionID string `json:"transaction_id"`
	OutTradeNo    string `json:"out_trade_no"`
	Attach        string `json:"attach,omitempty"`
	RefundID      string `json:"refund_id,omitempty"`
	SuccessTime   string `json:"success_time,omitempty"`
	Amount        struct {
		Total    int64  `json:"total"`
		Currency string `json:"currency,omitempty"`
	} `json:"amount"`
}

// WebhookPayload is an inbound notification as received over HTTP.
type WebhookPayload struct {
	RawData []byte
	Headers http.Header
}

// WebhookData is what the host needs to update the session.
type WebhookData struct {
	SessionID     string  `json:"session_id"`
	OutTradeNo    string  `json:"out_trade_no"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
}

// WebhookResult pairs an action with its data. Data is nil for
// not_supported refund notifications.
type WebhookResult struct {
	Action Action       `json:"action"`
	Data   *WebhookData `json:"data,omitempty"`

	// Envelope and Notification are kept for auditing; they are not part
	// of the action contract.
	Envelope     *NotificationEnvelope `json:"-"`
	Notification *TradeNotification    `json:"-"`
}

// GetWebhookAction authenticates and decrypts a notification and maps it to
// a lifecycle action. It keeps no state: the same envelope always yields the
// same result.
func (p *Provider) GetWebhookAction(ctx context.Context, payload WebhookPayload) (*WebhookResult, error) {
	if p.opts.VerifySignature {
		if p.verifier == nil {
			return nil, fmt.Errorf("%w: no verifier configured", ErrInvalidSignature)
		}
		if err := p.verifier.VerifyNotification(ctx, payload.RawData, payload.Headers); err != nil {
			return nil, err
		}
	}

	var envelope NotificationEnvelope
	if err := json.Unmarshal(payload.RawData, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", ErrDecryption, err)
	}

	plaintext, err := DecryptResource(p.opts.APIKeyV3, envelope.Resource)
	if err != nil {
		p.logger.Warn("notification decryption failed",
			zap.String("event_id", envelope.ID),
			zap.Error(err),
		)
		return nil, err
	}

	var n TradeNotification
	if err := json.Unmarshal(plaintext, &n); err != nil {
		return nil, fmt.Errorf("%w: decode resource: %v", ErrDecryption, err)
	}

	result := &WebhookResult{Envelope: &envelope, Notification: &n}

	if n.RefundID != "" {
		result.Action = ActionNotSupported
		p.metrics.RecordWebhookEvent(p.variant.Identifier, string(result.Action))
		return result, nil
	}
	if n.OutTradeNo == "" {
		return nil, ErrNoTradeID
	}

	sessionID, err := p.sessionID(n.OutTradeNo)
	if err != nil {
		return nil, err
	}

	result.Action = MapTradeStateToAction(n.TradeState)
	result.Data = &WebhookData{
		SessionID:     sessionID,
		OutTradeNo:    n.OutTradeNo,
		TransactionID: n.TransactionID,
		Amount:        FromMinorUnits(n.Amount.Total),
	}
	p.metrics.RecordWebhookEvent(p.variant.Identifier, string(result.Action))
	return result, nil
}

// gcmNonceSize is the nonce length WeChat Pay uses for AEAD_AES_256_GCM.
const gcmNonceSize = 12

// DecryptResource opens an AEAD_AES_256_GCM resource with the merchant's
// APIv3 key. Any failure is ErrDecryption.
func DecryptResource(apiKeyV3 string, r NotificationResource) ([]byte, error) {
	if len(apiKeyV3) != 32 {
		return nil, fmt.Errorf("%w: api v3 key must be 32 bytes", ErrDecryption)
	}
	// gopay ignores base64 errors and the GCM open panics on a short nonce.
	if _, err := base64.StdEncoding.DecodeString(r.Ciphertext); err != nil {
		return nil, fmt.Errorf("%w: decode ciphertext: %v", ErrDecryption, err)
	}
	if len(r.Nonce) != gcmNonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrDecryption, gcmNonceSize)
	}

	plaintext, err := wechat.V3DecryptNotifyCipherTextToBytes(r.Ciphertext, r.Nonce, r.AssociatedData, apiKeyV3)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}
