package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newOpenAPITestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("appid") != "wxapp" || q.Get("secret") != "secret" || q.Get("grant_type") != "client_credential" {
			_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 40013, "errmsg": "invalid appid"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "ACCESS_TOKEN", "expires_in": 7200})
	})

	mux.HandleFunc(phoneNumberPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "ACCESS_TOKEN", r.URL.Query().Get("access_token"))

		var body struct {
			Code string `json:"code"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Code != "phone-code" {
			_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 40029, "errmsg": "invalid code"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errcode": 0,
			"errmsg":  "ok",
			"phone_info": map[string]any{
				"phoneNumber":     "+8613800000000",
				"purePhoneNumber": "13800000000",
				"countryCode":     "86",
			},
		})
	})

	mux.HandleFunc(code2SessionPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		if q.Get("js_code") != "login-code" || q.Get("grant_type") != "authorization_code" {
			_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 40163, "errmsg": "code been used"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"openid": "o-openid", "unionid": "u-unionid", "session_key": "key"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOpenAPIClient(baseURL string) *OpenAPIClient {
	return NewOpenAPIClient(&OpenAPIConfig{
		BaseURL:   baseURL,
		AppID:     "wxapp",
		AppSecret: "secret",
	}, nil, zap.NewNop(), nil)
}

func TestOpenAPIClient(t *testing.T) {
	ctx := context.Background()
	srv := newOpenAPITestServer(t)
	client := newTestOpenAPIClient(srv.URL)

	t.Run("access token", func(t *testing.T) {
		tok, err := client.FetchAccessToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ACCESS_TOKEN", tok.Value)
		assert.Equal(t, 2*time.Hour, tok.ExpiresIn)
	})

	t.Run("phone number", func(t *testing.T) {
		phone, err := client.GetPhoneNumber(ctx, "ACCESS_TOKEN", "phone-code")
		require.NoError(t, err)
		assert.Equal(t, "+8613800000000", phone.PhoneNumber)
		assert.Equal(t, "13800000000", phone.PurePhoneNumber)
		assert.Equal(t, "86", phone.CountryCode)
	})

	t.Run("phone number errcode", func(t *testing.T) {
		_, err := client.GetPhoneNumber(ctx, "ACCESS_TOKEN", "bad")
		require.ErrorIs(t, err, ErrOpenAPI)
		assert.EqualError(t, err, "invalid code")

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 40029, apiErr.ErrCode)
	})

	t.Run("code2session", func(t *testing.T) {
		session, err := client.Code2Session(ctx, "login-code")
		require.NoError(t, err)
		assert.Equal(t, "o-openid", session.OpenID)
		assert.Equal(t, "u-unionid", session.UnionID)
	})

	t.Run("code2session errcode", func(t *testing.T) {
		_, err := client.Code2Session(ctx, "used")
		assert.EqualError(t, err, "code been used")
	})

	t.Run("token errcode", func(t *testing.T) {
		bad := NewOpenAPIClient(&OpenAPIConfig{BaseURL: srv.URL, AppID: "other", AppSecret: "x"}, nil, zap.NewNop(), nil)
		_, err := bad.FetchAccessToken(ctx)
		assert.ErrorIs(t, err, ErrOpenAPI)
	})
}

func TestOpenAPIClient_Breaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewOpenAPIClient(&OpenAPIConfig{
		BaseURL:          srv.URL,
		AppID:            "wxapp",
		AppSecret:        "secret",
		FailureThreshold: 2,
		Timeout:          time.Minute,
	}, srv.Client(), zap.NewNop(), nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := client.FetchAccessToken(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrOpenAPIUnavailable)
	}

	_, err := client.FetchAccessToken(ctx)
	assert.ErrorIs(t, err, ErrOpenAPIUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAPIClient_BusinessErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"errcode": 40029, "errmsg": "invalid code"})
	}))
	defer srv.Close()

	client := NewOpenAPIClient(&OpenAPIConfig{BaseURL: srv.URL, FailureThreshold: 1}, nil, zap.NewNop(), nil)
	for i := 0; i < 3; i++ {
		_, err := client.Code2Session(context.Background(), "x")
		assert.ErrorIs(t, err, ErrOpenAPI)
	}
}
