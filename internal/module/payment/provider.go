package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/weappkit/server/internal/shared/metrics"
	"go.uber.org/zap"
)

const defaultDescription = "weapp_payment"

// ProviderOptions configures a Provider.
type ProviderOptions struct {
	Domain             string
	DefaultDescription string
	APIKeyV3           string
	StrictCodec        bool
	VerifySignature    bool
}

// Provider adapts the WeChat Pay transaction lifecycle to host payment
// sessions for one Variant.
type Provider struct {
	variant  Variant
	gateway  Gateway
	verifier SignatureVerifier
	opts     ProviderOptions
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewProvider creates a payment provider. verifier may be nil when
// signature verification is disabled.
func NewProvider(
	variant Variant,
	gateway Gateway,
	verifier SignatureVerifier,
	opts ProviderOptions,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Provider {
	return &Provider{
		variant:  variant,
		gateway:  gateway,
		verifier: verifier,
		opts:     opts,
		logger:   logger.With(zap.String("provider", variant.Identifier)),
		metrics:  m,
	}
}

// Identifier returns the provider identifier.
func (p *Provider) Identifier() string {
	return p.variant.Identifier
}

// Variant returns the provider's payment method descriptor.
func (p *Provider) Variant() Variant {
	return p.variant
}

// NotifyURL returns the notification callback URL registered with WeChat Pay.
func (p *Provider) NotifyURL() string {
	return fmt.Sprintf("%s/hooks/payment/%s_%s", strings.TrimSuffix(p.opts.Domain, "/"), p.variant.Identifier, hookSuffix)
}

func (p *Provider) tradeID(sessionID string) (string, error) {
	if p.opts.StrictCodec {
		return p.variant.CheckedTradeID(sessionID)
	}
	return p.variant.ToTradeID(sessionID), nil
}

func (p *Provider) sessionID(tradeID string) (string, error) {
	if p.opts.StrictCodec {
		return p.variant.CheckedSessionID(tradeID)
	}
	return p.variant.ToSessionID(tradeID), nil
}

func (p *Provider) observe(operation string, start time.Time, err error) {
	p.metrics.RecordPaymentOperation(p.variant.Identifier, operation, err, time.Since(start))
}

// InitiateInput starts a payment.
type InitiateInput struct {
	SessionID    string  `json:"session_id" validate:"required"`
	Amount       float64 `json:"amount" validate:"gte=0"`
	CurrencyCode string  `json:"currency_code" validate:"required,alpha,len=3"`
	Description  string  `json:"description"`
	// OpenID is the payer's openid, required by the mini variant.
	OpenID string      `json:"openid"`
	Data   SessionData `json:"data"`
}

// InitiateOutput is the result of Initiate.
type InitiateOutput struct {
	ID   string
	Data SessionData
}

// Initiate creates the remote transaction.
func (p *Provider) Initiate(ctx context.Context, in InitiateInput) (out *InitiateOutput, err error) {
	defer func(start time.Time) { p.observe("initiate", start, err) }(time.Now())

	if err := validateInput(in); err != nil {
		return nil, err
	}
	if p.variant.PayerRequired && in.OpenID == "" {
		return nil, validationError("openid is required for %s", p.variant.Identifier)
	}

	outTradeNo, err := p.tradeID(in.SessionID)
	if err != nil {
		return nil, err
	}

	description := in.Description
	if description == "" {
		description = p.opts.DefaultDescription
	}
	if description == "" {
		description = defaultDescription
	}

	amount := Amount{
		Total:    ToMinorUnits(in.Amount),
		Currency: strings.ToUpper(in.CurrencyCode),
	}
	req := CreateRequest{
		Description: description,
		OutTradeNo:  outTradeNo,
		NotifyURL:   p.NotifyURL(),
		Amount:      amount,
		Attach:      in.SessionID,
	}
	if p.variant.PayerRequired {
		req.PayerOpenID = in.OpenID
	}

	resp, err := p.variant.Create(ctx, p.gateway, req)
	if err != nil {
		return nil, err
	}

	patch := map[string]any{
		KeySessionID:  in.SessionID,
		KeyOutTradeNo: outTradeNo,
		KeyAmount:     amount.toMap(),
	}
	if resp.PrepayID != "" {
		patch[KeyPrepayID] = resp.PrepayID
	}
	if resp.CodeURL != "" {
		patch[KeyCodeURL] = resp.CodeURL
	}
	if resp.PayParams != nil {
		patch[KeyPayParams] = resp.PayParams.toMap()
	}

	p.logger.Info("payment initiated",
		zap.String("session_id", in.SessionID),
		zap.String("out_trade_no", outTradeNo),
		zap.Int64("total", amount.Total),
	)

	return &InitiateOutput{
		ID:   outTradeNo,
		Data: in.Data.Merge(patch),
	}, nil
}

// SessionInput carries the stored session data into an operation.
type SessionInput struct {
	Data SessionData
}

// SessionOutput is the updated session data.
type SessionOutput struct {
	Data SessionData
}

// AuthorizeOutput is the result of Authorize.
type AuthorizeOutput struct {
	Status PaymentStatus
	Data   SessionData
}

// CancelOutput is the result of Cancel and Delete.
// Reason is set when nothing was sent to the provider.
type CancelOutput struct {
	Data   SessionData
	Reason string
}

// Capture is a pass-through; WeChat Pay captures on success.
func (p *Provider) Capture(_ context.Context, in SessionInput) (*SessionOutput, error) {
	return &SessionOutput{Data: in.Data.Clone()}, nil
}

// Authorize confirms the transaction and folds the provider's transaction
// id and success time into the session. The status is always captured.
func (p *Provider) Authorize(ctx context.Context, in SessionInput) (*AuthorizeOutput, error) {
	if in.Data.String(KeyOutTradeNo) == "" {
		return nil, ErrNoTradeID
	}

	raw, err := p.Retrieve(ctx, in)
	if err != nil {
		return nil, err
	}

	patch := make(map[string]any, 2)
	for _, key := range []string{KeyTransactionID, KeySuccessTime} {
		if v, ok := raw[key]; ok && v != nil {
			patch[key] = v
		}
	}

	return &AuthorizeOutput{
		Status: StatusCaptured,
		Data:   in.Data.Merge(patch),
	}, nil
}

// Cancel closes the remote transaction. Sessions without a trade id are
// returned with a reason and no remote call is made.
func (p *Provider) Cancel(ctx context.Context, in SessionInput) (out *CancelOutput, err error) {
	outTradeNo := in.Data.String(KeyOutTradeNo)
	if outTradeNo == "" {
		return &CancelOutput{Data: in.Data.Clone(), Reason: "no out_trade_no"}, nil
	}

	defer func(start time.Time) { p.observe("close", start, err) }(time.Now())

	if err := p.gateway.Close(ctx, outTradeNo); err != nil {
		return nil, err
	}

	p.logger.Info("payment closed", zap.String("out_trade_no", outTradeNo))
	return &CancelOutput{Data: in.Data.Clone()}, nil
}

// Delete is Cancel.
func (p *Provider) Delete(ctx context.Context, in SessionInput) (*CancelOutput, error) {
	return p.Cancel(ctx, in)
}

// GetStatus queries the provider and maps the trade state. A provider-level
// failure maps to StatusError; transport errors propagate.
func (p *Provider) GetStatus(ctx context.Context, in SessionInput) (status PaymentStatus, err error) {
	outTradeNo := in.Data.String(KeyOutTradeNo)
	if outTradeNo == "" {
		return "", ErrNoTradeID
	}

	defer func(start time.Time) { p.observe("query", start, err) }(time.Now())

	result, err := p.gateway.QueryByOutTradeNo(ctx, outTradeNo)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			p.logger.Warn("status query failed",
				zap.String("out_trade_no", outTradeNo),
				zap.Int("http_status", pe.HTTPStatus),
				zap.String("code", pe.Code),
			)
			return StatusError, nil
		}
		return "", err
	}
	return MapTradeState(result.TradeState), nil
}

// RefundInput requests a refund of Amount major units.
type RefundInput struct {
	Amount float64     `json:"amount" validate:"gt=0"`
	Data   SessionData `json:"data"`
}

// Refund refunds against the stored trade. The trade id doubles as the
// refund number, so a trade can be refunded once.
func (p *Provider) Refund(ctx context.Context, in RefundInput) (out *SessionOutput, err error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	outTradeNo := in.Data.String(KeyOutTradeNo)
	if outTradeNo == "" {
		return nil, ErrNoTradeID
	}
	amount, ok := in.Data.Amount()
	if !ok {
		return nil, validationError("no amount in session data")
	}

	defer func(start time.Time) { p.observe("refund", start, err) }(time.Now())

	result, err := p.gateway.Refund(ctx, RefundRequest{
		OutTradeNo:  outTradeNo,
		OutRefundNo: outTradeNo,
		Refund:      ToMinorUnits(in.Amount),
		Total:       amount.Total,
		Currency:    amount.Currency,
		NotifyURL:   p.NotifyURL(),
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("payment refunded",
		zap.String("out_trade_no", outTradeNo),
		zap.String("refund_id", result.RefundID),
		zap.String("status", result.Status),
	)

	patch := map[string]any{
		KeyOutRefundNo: result.OutRefundNo,
		KeyRefundID:    result.RefundID,
	}
	if result.Amount != nil {
		patch[KeyAmount] = result.Amount
	}
	return &SessionOutput{Data: in.Data.Merge(patch)}, nil
}

// Retrieve returns the provider's transaction payload. Sessions without a
// trade id are returned unchanged.
func (p *Provider) Retrieve(ctx context.Context, in SessionInput) (data SessionData, err error) {
	outTradeNo := in.Data.String(KeyOutTradeNo)
	if outTradeNo == "" {
		return in.Data.Clone(), nil
	}

	defer func(start time.Time) { p.observe("query", start, err) }(time.Now())

	result, err := p.gateway.QueryByOutTradeNo(ctx, outTradeNo)
	if err != nil {
		return nil, err
	}
	if result.Raw != nil {
		return SessionData(result.Raw), nil
	}
	return SessionData{
		KeyOutTradeNo:    result.OutTradeNo,
		KeyTransactionID: result.TransactionID,
		KeySuccessTime:   result.SuccessTime,
		"trade_state":    result.TradeState,
	}, nil
}

// UpdateInput carries host-side changes to a session.
// Changes are not synchronized to the provider.
type UpdateInput struct {
	Amount       float64
	CurrencyCode string
	Data         SessionData
}

// Update is a pass-through copy.
func (p *Provider) Update(_ context.Context, in UpdateInput) (*SessionOutput, error) {
	return &SessionOutput{Data: in.Data.Clone()}, nil
}
