package payment

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-pay/gopay"
	"github.com/go-pay/gopay/wechat/v3"
)

// GatewayConfig holds the merchant credentials for WeChat Pay v3.
type GatewayConfig struct {
	AppID                   string
	MchID                   string
	SerialNo                string // Merchant certificate serial number
	PrivateKey              string // Merchant private key (PEM)
	APIKeyV3                string
	PlatformPublicKey       string // Platform public key or certificate (PEM)
	PlatformPublicKeySerial string
	IsProd                  bool
}

// GopayGateway implements Gateway and SignatureVerifier with go-pay/gopay.
type GopayGateway struct {
	client   *wechat.ClientV3
	appID    string
	mchID    string
	platform *rsa.PublicKey
}

// NewGopayGateway creates a WeChat Pay v3 client.
func NewGopayGateway(cfg *GatewayConfig) (*GopayGateway, error) {
	client, err := wechat.NewClientV3(cfg.MchID, cfg.SerialNo, cfg.APIKeyV3, cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("create wechat client: %w", err)
	}

	g := &GopayGateway{
		client: client,
		appID:  cfg.AppID,
		mchID:  cfg.MchID,
	}

	// Request and response bodies are logged outside production.
	if !cfg.IsProd {
		client.DebugSwitch = gopay.DebugOn
	}

	if cfg.PlatformPublicKey != "" {
		pk, err := parseRSAPublicKey(cfg.PlatformPublicKey)
		if err != nil {
			return nil, fmt.Errorf("parse platform public key: %w", err)
		}
		g.platform = pk
		if err := client.SetPlatformCert([]byte(strings.TrimSpace(cfg.PlatformPublicKey)), cfg.PlatformPublicKeySerial); err != nil {
			return nil, fmt.Errorf("set platform cert: %w", err)
		}
	}

	return g, nil
}

func (g *GopayGateway) createBody(req CreateRequest) gopay.BodyMap {
	bm := make(gopay.BodyMap)
	bm.Set("appid", g.appID)
	bm.Set("mchid", g.mchID)
	bm.Set("description", req.Description)
	bm.Set("out_trade_no", req.OutTradeNo)
	bm.Set("notify_url", req.NotifyURL)
	bm.Set("attach", req.Attach)
	bm.SetBodyMap("amount", func(am gopay.BodyMap) {
		am.Set("total", req.Amount.Total)
		am.Set("currency", req.Amount.Currency)
	})
	if req.PayerOpenID != "" {
		bm.SetBodyMap("payer", func(pm gopay.BodyMap) {
			pm.Set("openid", req.PayerOpenID)
		})
	}
	return bm
}

// CreateJSAPI creates a mini program (JSAPI) transaction and signs the
// parameters the client needs to start payment.
func (g *GopayGateway) CreateJSAPI(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	resp, err := g.client.V3TransactionJsapi(ctx, g.createBody(req))
	if err != nil {
		return nil, fmt.Errorf("create jsapi transaction: %w", err)
	}
	if resp.Code != wechat.Success {
		return nil, parseProviderError(resp.Code, resp.Error)
	}

	params, err := g.client.PaySignOfJSAPI(g.appID, resp.Response.PrepayId)
	if err != nil {
		return nil, fmt.Errorf("sign jsapi payment: %w", err)
	}

	return &CreateResponse{
		PrepayID: resp.Response.PrepayId,
		PayParams: &JSAPIPayParams{
			AppID:     g.appID,
			TimeStamp: params.TimeStamp,
			NonceStr:  params.NonceStr,
			Package:   params.Package,
			SignType:  params.SignType,
			PaySign:   params.PaySign,
		},
	}, nil
}

// CreateNative creates a QR code (native) transaction.
func (g *GopayGateway) CreateNative(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	resp, err := g.client.V3TransactionNative(ctx, g.createBody(req))
	if err != nil {
		return nil, fmt.Errorf("create native transaction: %w", err)
	}
	if resp.Code != wechat.Success {
		return nil, parseProviderError(resp.Code, resp.Error)
	}
	return &CreateResponse{CodeURL: resp.Response.CodeUrl}, nil
}

// QueryByOutTradeNo queries a transaction by merchant trade number.
func (g *GopayGateway) QueryByOutTradeNo(ctx context.Context, outTradeNo string) (*TradeQueryResult, error) {
	resp, err := g.client.V3TransactionQueryOrder(ctx, wechat.OutTradeNo, outTradeNo)
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	if resp.Code != wechat.Success {
		return nil, parseProviderError(resp.Code, resp.Error)
	}

	raw, err := toRawMap(resp.Response)
	if err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	return &TradeQueryResult{
		TradeState:    resp.Response.TradeState,
		TransactionID: resp.Response.TransactionId,
		OutTradeNo:    resp.Response.OutTradeNo,
		SuccessTime:   resp.Response.SuccessTime,
		Raw:           raw,
	}, nil
}

// Close closes an unpaid transaction.
func (g *GopayGateway) Close(ctx context.Context, outTradeNo string) error {
	resp, err := g.client.V3TransactionCloseOrder(ctx, outTradeNo)
	if err != nil {
		return fmt.Errorf("close transaction: %w", err)
	}
	if resp.Code != wechat.Success {
		return parseProviderError(resp.Code, resp.Error)
	}
	return nil
}

// Refund requests a refund against a transaction.
func (g *GopayGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	bm := make(gopay.BodyMap)
	bm.Set("out_trade_no", req.OutTradeNo)
	bm.Set("out_refund_no", req.OutRefundNo)
	if req.NotifyURL != "" {
		bm.Set("notify_url", req.NotifyURL)
	}
	bm.SetBodyMap("amount", func(am gopay.BodyMap) {
		am.Set("refund", req.Refund)
		am.Set("total", req.Total)
		am.Set("currency", req.Currency)
	})

	resp, err := g.client.V3Refund(ctx, bm)
	if err != nil {
		return nil, fmt.Errorf("refund transaction: %w", err)
	}
	if resp.Code != wechat.Success {
		return nil, parseProviderError(resp.Code, resp.Error)
	}

	raw, err := toRawMap(resp.Response)
	if err != nil {
		return nil, fmt.Errorf("decode refund response: %w", err)
	}
	amount, _ := raw["amount"].(map[string]any)

	return &RefundResult{
		RefundID:    resp.Response.RefundId,
		OutRefundNo: resp.Response.OutRefundNo,
		Status:      resp.Response.Status,
		SuccessTime: resp.Response.SuccessTime,
		Amount:      amount,
	}, nil
}

// VerifyNotification checks the Wechatpay-Signature header against the
// platform public key.
func (g *GopayGateway) VerifyNotification(ctx context.Context, body []byte, header http.Header) error {
	if g.platform == nil {
		return fmt.Errorf("%w: platform public key not configured", ErrInvalidSignature)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, h := range []string{"Wechatpay-Timestamp", "Wechatpay-Nonce", "Wechatpay-Signature", "Wechatpay-Serial"} {
		req.Header.Set(h, header.Get(h))
	}

	notifyReq, err := wechat.V3ParseNotify(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := notifyReq.VerifySignByPK(g.platform); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

func toRawMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// parseRSAPublicKey parses a PEM encoded RSA public key or certificate.
func parseRSAPublicKey(pemKey string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemKey)))
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		cert, certErr := x509.ParseCertificate(block.Bytes)
		if certErr != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		rsaKey, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("certificate does not contain RSA public key")
		}
		return rsaKey, nil
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaKey, nil
}

var (
	_ Gateway           = (*GopayGateway)(nil)
	_ SignatureVerifier = (*GopayGateway)(nil)
)
