package payment

import "time"

// CreateSessionRequest represents a request to start a payment session.
type CreateSessionRequest struct {
	Amount       float64 `json:"amount" binding:"gte=0"`
	CurrencyCode string  `json:"currency_code" binding:"required,len=3"`
	Description  string  `json:"description,omitempty"`
	OpenID       string  `json:"openid,omitempty"` // Required for weapp-mini
}

// RefundSessionRequest represents a refund request in major units.
type RefundSessionRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// SessionResponse represents a payment session for the client.
type SessionResponse struct {
	ID           string         `json:"id"`
	ProviderID   string         `json:"provider_id"`
	Amount       float64        `json:"amount"`
	CurrencyCode string         `json:"currency_code"`
	Status       PaymentStatus  `json:"status"`
	Data         map[string]any `json:"data"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ToResponse converts a session to its response form.
func (s *PaymentSession) ToResponse() *SessionResponse {
	return &SessionResponse{
		ID:           s.ID,
		ProviderID:   s.ProviderID,
		Amount:       s.Amount,
		CurrencyCode: s.CurrencyCode,
		Status:       s.Status,
		Data:         s.Data.Clone(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	ID     string        `json:"id"`
	Status PaymentStatus `json:"status"`
}

// NotifyResponse is the acknowledgement body WeChat Pay expects.
type NotifyResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
