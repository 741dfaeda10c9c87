package payment

import (
	"context"
	"strings"
)

// SessionPrefix is the host's payment-session id prefix.
const SessionPrefix = "payses_"

// CreateFunc dispatches a create-transaction request to the variant's endpoint.
type CreateFunc func(ctx context.Context, gw Gateway, req CreateRequest) (*CreateResponse, error)

// Variant describes one wallet payment method: its identifier, its
// trade-id prefix and the remote call that creates a transaction.
type Variant struct {
	Identifier    string
	SessionPrefix string
	TradePrefix   string
	// PayerRequired marks variants that must send payer.openid.
	PayerRequired bool
	Create        CreateFunc
}

// MiniVariant pays inside the mini program through JSAPI.
var MiniVariant = Variant{
	Identifier:    IdentifierMini,
	SessionPrefix: SessionPrefix,
	TradePrefix:   "m_",
	PayerRequired: true,
	Create: func(ctx context.Context, gw Gateway, req CreateRequest) (*CreateResponse, error) {
		return gw.CreateJSAPI(ctx, req)
	},
}

// NativeVariant pays by scanning a QR code.
var NativeVariant = Variant{
	Identifier:    IdentifierNative,
	SessionPrefix: SessionPrefix,
	TradePrefix:   "p_",
	Create: func(ctx context.Context, gw Gateway, req CreateRequest) (*CreateResponse, error) {
		return gw.CreateNative(ctx, req)
	},
}

// ToTradeID replaces the session prefix with the trade prefix.
// Input without the prefix passes through unchanged.
func (v Variant) ToTradeID(sessionID string) string {
	return strings.ReplaceAll(sessionID, v.SessionPrefix, v.TradePrefix)
}

// ToSessionID replaces the trade prefix with the session prefix.
func (v Variant) ToSessionID(tradeID string) string {
	return strings.ReplaceAll(tradeID, v.TradePrefix, v.SessionPrefix)
}

// CheckedTradeID is ToTradeID for ids that are guaranteed to round-trip:
// exactly one leading session prefix and no trade prefix in the remainder.
func (v Variant) CheckedTradeID(sessionID string) (string, error) {
	if !roundTrips(sessionID, v.SessionPrefix, v.TradePrefix) {
		return "", validationError("session id %q does not carry prefix %q", sessionID, v.SessionPrefix)
	}
	return v.ToTradeID(sessionID), nil
}

// CheckedSessionID is the inverse of CheckedTradeID.
func (v Variant) CheckedSessionID(tradeID string) (string, error) {
	if !roundTrips(tradeID, v.TradePrefix, v.SessionPrefix) {
		return "", validationError("trade id %q does not carry prefix %q", tradeID, v.TradePrefix)
	}
	return v.ToSessionID(tradeID), nil
}

func roundTrips(id, from, to string) bool {
	rest, ok := strings.CutPrefix(id, from)
	if !ok {
		return false
	}
	return !strings.Contains(rest, from) && !strings.Contains(rest, to)
}
