package payment

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-pay/gopay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGopayGateway_CreateBody(t *testing.T) {
	g := &GopayGateway{appID: "wxapp", mchID: "1900000001"}

	bm := g.createBody(CreateRequest{
		Description: "Coffee",
		OutTradeNo:  "m_1",
		NotifyURL:   testDomain + "/hooks/payment/weapp-mini_weapp-payment",
		Amount:      Amount{Total: 1000, Currency: "CNY"},
		Attach:      "payses_1",
		PayerOpenID: "o-openid",
	})

	assert.Equal(t, "wxapp", bm.GetString("appid"))
	assert.Equal(t, "1900000001", bm.GetString("mchid"))
	assert.Equal(t, "m_1", bm.GetString("out_trade_no"))

	amount, ok := bm["amount"].(gopay.BodyMap)
	require.True(t, ok)
	assert.Equal(t, int64(1000), amount["total"])
	assert.Equal(t, "CNY", amount["currency"])

	payer, ok := bm["payer"].(gopay.BodyMap)
	require.True(t, ok)
	assert.Equal(t, "o-openid", payer["openid"])

	native := g.createBody(CreateRequest{OutTradeNo: "p_1"})
	assert.NotContains(t, native, "payer")
}

func TestParseRSAPublicKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	pub, err := parseRSAPublicKey("\n" + pemKey)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey.N, pub.N)

	_, err = parseRSAPublicKey("not a key")
	assert.Error(t, err)
}

func TestToRawMap(t *testing.T) {
	raw, err := toRawMap(struct {
		TradeState string `json:"trade_state"`
		Amount     struct {
			Total int `json:"total"`
		} `json:"amount"`
	}{TradeState: "SUCCESS"})
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", raw["trade_state"])
	assert.Contains(t, raw, "amount")
}

func TestGopayGateway_VerifyNotificationWithoutKey(t *testing.T) {
	g := &GopayGateway{}
	err := g.VerifyNotification(context.Background(), []byte("{}"), http.Header{})
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestNewGopayGateway_PlatformKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	platformKey := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	for _, isProd := range []bool{false, true} {
		cfg := testGatewayConfig(t)
		cfg.PlatformPublicKey = platformKey
		cfg.PlatformPublicKeySerial = "PUB_KEY_ID_0001"
		cfg.IsProd = isProd

		g, err := NewGopayGateway(cfg)
		require.NoError(t, err)
		require.NotNil(t, g.client.WxPublicKey())
		assert.Equal(t, key.PublicKey.N, g.client.WxPublicKey().N)
		assert.Equal(t, "PUB_KEY_ID_0001", g.client.WxSerialNo)
	}

	cfg := testGatewayConfig(t)
	cfg.PlatformPublicKey = "not a key"
	_, err = NewGopayGateway(cfg)
	assert.Error(t, err)
}

func testGatewayConfig(t *testing.T) *GatewayConfig {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privateKey := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return &GatewayConfig{
		AppID:      "wxapp",
		MchID:      "1900000001",
		SerialNo:   "MERCHANT_SERIAL",
		PrivateKey: string(privateKey),
		APIKeyV3:   testAPIKeyV3,
		IsProd:     true,
	}
}

// newServedGateway points a real gopay client at handler.
func newServedGateway(t *testing.T, handler http.HandlerFunc) *GopayGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGopayGateway(testGatewayConfig(t))
	require.NoError(t, err)
	g.client.SetProxyHost(srv.URL)
	return g
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGopayGateway_CreateJSAPI(t *testing.T) {
	g := newServedGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/pay/transactions/jsapi", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "wxapp", body["appid"])
		assert.Equal(t, "m_1", body["out_trade_no"])
		assert.Equal(t, map[string]any{"openid": "o-openid"}, body["payer"])

		writeJSON(w, http.StatusOK, `{"prepay_id":"wx201410272009395522657a690389285100"}`)
	})

	resp, err := g.CreateJSAPI(context.Background(), CreateRequest{
		Description: "Coffee",
		OutTradeNo:  "m_1",
		NotifyURL:   testDomain + "/hooks/payment/weapp-mini_weapp-payment",
		Amount:      Amount{Total: 1000, Currency: "CNY"},
		Attach:      "payses_1",
		PayerOpenID: "o-openid",
	})
	require.NoError(t, err)
	assert.Equal(t, "wx201410272009395522657a690389285100", resp.PrepayID)
	require.NotNil(t, resp.PayParams)
	assert.Equal(t, "wxapp", resp.PayParams.AppID)
	assert.Equal(t, "prepay_id=wx201410272009395522657a690389285100", resp.PayParams.Package)
	assert.Equal(t, "RSA", resp.PayParams.SignType)
	assert.NotEmpty(t, resp.PayParams.PaySign)
	assert.NotEmpty(t, resp.PayParams.NonceStr)
}

func TestGopayGateway_CreateNative(t *testing.T) {
	t.Run("returns code url", func(t *testing.T) {
		g := newServedGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v3/pay/transactions/native", r.URL.Path)
			writeJSON(w, http.StatusOK, `{"code_url":"weixin://wxpay/bizpayurl?pr=p4lpSuKzz"}`)
		})

		resp, err := g.CreateNative(context.Background(), CreateRequest{OutTradeNo: "p_1", Amount: Amount{Total: 1, Currency: "CNY"}})
		require.NoError(t, err)
		assert.Equal(t, "weixin://wxpay/bizpayurl?pr=p4lpSuKzz", resp.CodeURL)
		assert.Nil(t, resp.PayParams)
	})

	t.Run("rejected request", func(t *testing.T) {
		g := newServedGateway(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"code":"PARAM_ERROR","message":"out_trade_no is invalid"}`)
		})

		_, err := g.CreateNative(context.Background(), CreateRequest{OutTradeNo: "p_1"})
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusBadRequest, pe.HTTPStatus)
		assert.Equal(t, "PARAM_ERROR", pe.Code)
		assert.Equal(t, "out_trade_no is invalid", pe.Message)
	})
}

func TestGopayGateway_QueryByOutTradeNo(t *testing.T) {
	t.Run("paid trade", func(t *testing.T) {
		g := newServedGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/v3/pay/transactions/out-trade-no/m_1", r.URL.Path)
			assert.Equal(t, "1900000001", r.URL.Query().Get("mchid"))
			writeJSON(w, http.StatusOK, `{"trade_state":"SUCCESS","transaction_id":"4200000001","out_trade_no":"m_1","success_time":"2024-05-01T10:00:00+08:00","amount":{"total":1000,"currency":"CNY"}}`)
		})

		result, err := g.QueryByOutTradeNo(context.Background(), "m_1")
		require.NoError(t, err)
		assert.Equal(t, "SUCCESS", result.TradeState)
		assert.Equal(t, "4200000001", result.TransactionID)
		assert.Equal(t, "m_1", result.OutTradeNo)
		amount, ok := result.Raw["amount"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(1000), amount["total"])
	})

	t.Run("unknown trade", func(t *testing.T) {
		g := newServedGateway(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"code":"ORDER_NOT_EXIST","message":"order does not exist"}`)
		})

		_, err := g.QueryByOutTradeNo(context.Background(), "m_404")
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, http.StatusNotFound, pe.HTTPStatus)
		assert.Equal(t, "ORDER_NOT_EXIST", pe.Code)

		p := newTestProvider(MiniVariant, g, ProviderOptions{})
		status, err := p.GetStatus(context.Background(), SessionInput{Data: SessionData{KeyOutTradeNo: "m_404"}})
		require.NoError(t, err)
		assert.Equal(t, StatusError, status)
	})
}

func TestGopayGateway_Close(t *testing.T) {
	t.Run("no content", func(t *testing.T) {
		g := newServedGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v3/pay/transactions/out-trade-no/m_1/close", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		})
		assert.NoError(t, g.Close(context.Background(), "m_1"))
	})

	t.Run("already paid", func(t *testing.T) {
		g := newServedGateway(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, `{"code":"ORDERPAID","message":"order paid"}`)
		})
		err := g.Close(context.Background(), "m_1")
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "ORDERPAID", pe.Code)
	})
}

func TestGopayGateway_Refund(t *testing.T) {
	g := newServedGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/refund/domestic/refunds", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m_1", body["out_trade_no"])
		assert.Equal(t, "m_1", body["out_refund_no"])
		assert.Equal(t, map[string]any{"refund": float64(500), "total": float64(1000), "currency": "CNY"}, body["amount"])

		writeJSON(w, http.StatusOK, `{"refund_id":"50000000382019052709732678859","out_refund_no":"m_1","out_trade_no":"m_1","status":"PROCESSING","amount":{"refund":500,"total":1000,"currency":"CNY"}}`)
	})

	p := newTestProvider(MiniVariant, g, ProviderOptions{})
	out, err := p.Refund(context.Background(), RefundInput{
		Amount: 5,
		Data: SessionData{
			KeyOutTradeNo: "m_1",
			KeyAmount:     map[string]any{"total": float64(1000), "currency": "CNY"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "50000000382019052709732678859", out.Data[KeyRefundID])
	assert.Equal(t, "m_1", out.Data[KeyOutRefundNo])

	amount, ok := out.Data[KeyAmount].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(500), amount["refund"])
	assert.Equal(t, float64(1000), amount["total"])
	assert.Equal(t, "CNY", amount["currency"])
}
