package payment

import (
	"encoding/json"
	"math"
	"strconv"
)

// Provider identifiers.
const (
	IdentifierMini   = "weapp-mini"
	IdentifierNative = "weapp-native"

	// hookSuffix is appended to the identifier in the notify URL path.
	hookSuffix = "weapp-payment"
)

// Session data keys written by the adapter.
const (
	KeySessionID     = "session_id"
	KeyOutTradeNo    = "out_trade_no"
	KeyAmount        = "amount"
	KeyTransactionID = "transaction_id"
	KeySuccessTime   = "success_time"
	KeyOutRefundNo   = "out_refund_no"
	KeyRefundID      = "refund_id"
	KeyPrepayID      = "prepay_id"
	KeyCodeURL       = "code_url"
	KeyPayParams     = "pay_params"
	KeyDescription   = "description"
	KeyOpenID        = "openid"
)

// PaymentStatus is the host payment-session status.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusCaptured PaymentStatus = "captured"
	StatusCanceled PaymentStatus = "canceled"
	StatusError    PaymentStatus = "error"
)

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusCaptured || s == StatusCanceled || s == StatusError
}

// Action is the lifecycle action produced from a notification.
type Action string

const (
	ActionAuthorized   Action = "authorized"
	ActionCanceled     Action = "canceled"
	ActionPending      Action = "pending"
	ActionFailed       Action = "failed"
	ActionNotSupported Action = "not_supported"
)

// SessionData is the provider-owned attribute bag attached to a payment session.
// Stages only add or overwrite keys; nothing is removed.
type SessionData map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (d SessionData) Clone() SessionData {
	out := make(SessionData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge returns a copy of d with patch applied on top.
func (d SessionData) Merge(patch map[string]any) SessionData {
	out := d.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// String returns the string value stored under key, or "".
func (d SessionData) String(key string) string {
	if d == nil {
		return ""
	}
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// Amount returns the stored amount object.
func (d SessionData) Amount() (Amount, bool) {
	if d == nil {
		return Amount{}, false
	}
	switch v := d[KeyAmount].(type) {
	case Amount:
		return v, true
	case *Amount:
		if v == nil {
			return Amount{}, false
		}
		return *v, true
	case map[string]any:
		total, ok := toInt64(v["total"])
		if !ok {
			return Amount{}, false
		}
		currency, _ := v["currency"].(string)
		return Amount{Total: total, Currency: currency}, true
	}
	return Amount{}, false
}

// Amount is an integer minor-unit amount.
type Amount struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// toMap renders the amount in the shape stored in session data.
func (a Amount) toMap() map[string]any {
	return map[string]any{"total": a.Total, "currency": a.Currency}
}

// ToMinorUnits converts a major-unit amount to integer minor units.
// The value is multiplied by 100 and truncated; float noise such as
// 19.99*100 = 1998.9999999999998 is absorbed before truncation.
func ToMinorUnits(amount float64) int64 {
	v := amount * 100
	if r := math.Round(v); math.Abs(v-r) < 1e-6 {
		return int64(r)
	}
	return int64(math.Trunc(v))
}

// FromMinorUnits converts integer minor units back to a major-unit amount.
func FromMinorUnits(total int64) float64 {
	return float64(total) / 100
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
