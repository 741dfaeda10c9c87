package payment

import (
	"context"
	"net/http"
)

// CreateRequest is a create-transaction request.
type CreateRequest struct {
	Description string
	OutTradeNo  string
	NotifyURL   string
	Amount      Amount
	Attach      string
	// PayerOpenID is sent as payer.openid when set.
	PayerOpenID string
}

// JSAPIPayParams are the parameters wx.requestPayment needs in the mini program.
type JSAPIPayParams struct {
	AppID     string `json:"appId"`
	TimeStamp string `json:"timeStamp"`
	NonceStr  string `json:"nonceStr"`
	Package   string `json:"package"`
	SignType  string `json:"signType"`
	PaySign   string `json:"paySign"`
}

func (p *JSAPIPayParams) toMap() map[string]any {
	return map[string]any{
		"appId":     p.AppID,
		"timeStamp": p.TimeStamp,
		"nonceStr":  p.NonceStr,
		"package":   p.Package,
		"signType":  p.SignType,
		"paySign":   p.PaySign,
	}
}

// CreateResponse is the provider's answer to a create-transaction request.
type CreateResponse struct {
	PrepayID  string
	CodeURL   string
	PayParams *JSAPIPayParams
}

// TradeQueryResult is a queried transaction.
type TradeQueryResult struct {
	TradeState    string
	TransactionID string
	OutTradeNo    string
	SuccessTime   string
	// Raw is the provider payload as decoded JSON.
	Raw map[string]any
}

// RefundRequest is a refund request.
type RefundRequest struct {
	OutTradeNo  string
	OutRefundNo string
	Refund      int64
	Total       int64
	Currency    string
	NotifyURL   string
}

// RefundResult is the provider's answer to a refund request.
type RefundResult struct {
	RefundID    string
	OutRefundNo string
	Status      string
	SuccessTime string
	// Amount is the provider's amount object (refund, total, currency, ...).
	Amount map[string]any
}

// Gateway is the remote WeChat Pay surface the adapter calls.
// Business failures come back as *ProviderError; transport failures as
// any other error.
type Gateway interface {
	CreateJSAPI(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	CreateNative(ctx context.Context, req CreateRequest) (*CreateResponse, error)
	QueryByOutTradeNo(ctx context.Context, outTradeNo string) (*TradeQueryResult, error)
	Close(ctx context.Context, outTradeNo string) error
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

// SignatureVerifier checks the Wechatpay-* headers of a notification.
type SignatureVerifier interface {
	VerifyNotification(ctx context.Context, body []byte, header http.Header) error
}
