package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/weappkit/server/internal/shared/metrics"
	"go.uber.org/zap"
)

const (
	defaultOpenAPIBaseURL = "https://api.weixin.qq.com"

	tokenPath        = "/cgi-bin/token"
	code2SessionPath = "/sns/jscode2session"
	phoneNumberPath  = "/wxa/business/getuserphonenumber"

	breakerName = "wechat_open_api"
)

// AccessToken is an access token issued by the WeChat open API.
type AccessToken struct {
	Value     string
	ExpiresIn time.Duration
}

// PhoneInfo is the verified phone number returned for a phone code.
type PhoneInfo struct {
	PhoneNumber     string `json:"phoneNumber"`
	PurePhoneNumber string `json:"purePhoneNumber"`
	CountryCode     string `json:"countryCode"`
}

// SessionInfo is the result of exchanging a login code.
type SessionInfo struct {
	OpenID     string `json:"openid"`
	UnionID    string `json:"unionid"`
	SessionKey string `json:"session_key"`
}

// WechatClient is the subset of the WeChat open API used for login.
type WechatClient interface {
	FetchAccessToken(ctx context.Context) (*AccessToken, error)
	GetPhoneNumber(ctx context.Context, accessToken, phoneCode string) (*PhoneInfo, error)
	Code2Session(ctx context.Context, loginCode string) (*SessionInfo, error)
}

// OpenAPIConfig configures the WeChat open API client.
type OpenAPIConfig struct {
	BaseURL   string
	AppID     string
	AppSecret string

	FailureThreshold    uint32
	Timeout             time.Duration
	MaxHalfOpenRequests uint32
}

// OpenAPIClient calls the WeChat open API over HTTP. Transport failures and
// 5xx responses count against a circuit breaker; errcode failures do not.
type OpenAPIClient struct {
	baseURL    string
	appID      string
	appSecret  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *zap.Logger
}

// NewOpenAPIClient creates a new WeChat open API client.
func NewOpenAPIClient(cfg *OpenAPIConfig, httpClient *http.Client, logger *zap.Logger, m *metrics.Metrics) *OpenAPIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAPIBaseURL
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			m.SetBreakerOpen(name, to == gobreaker.StateOpen)
		},
	}

	return &OpenAPIClient{
		baseURL:    baseURL,
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		httpClient: httpClient,
		breaker:    gobreaker.NewCircuitBreaker[[]byte](settings),
		logger:     logger,
	}
}

// apiStatus is the error envelope shared by all open API responses.
type apiStatus struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (s apiStatus) err(endpoint string) error {
	if s.ErrCode == 0 {
		return nil
	}
	return &APIError{Endpoint: endpoint, ErrCode: s.ErrCode, ErrMsg: s.ErrMsg}
}

// FetchAccessToken requests a client_credential access token.
func (c *OpenAPIClient) FetchAccessToken(ctx context.Context) (*AccessToken, error) {
	q := url.Values{}
	q.Set("appid", c.appID)
	q.Set("secret", c.appSecret)
	q.Set("grant_type", "client_credential")

	var resp struct {
		apiStatus
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.do(ctx, http.MethodGet, tokenPath, q, nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(tokenPath); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access_token", ErrOpenAPI)
	}

	return &AccessToken{
		Value:     resp.AccessToken,
		ExpiresIn: time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

// GetPhoneNumber exchanges a phone authorization code for the user's phone number.
func (c *OpenAPIClient) GetPhoneNumber(ctx context.Context, accessToken, phoneCode string) (*PhoneInfo, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)

	var resp struct {
		apiStatus
		PhoneInfo PhoneInfo `json:"phone_info"`
	}
	if err := c.do(ctx, http.MethodPost, phoneNumberPath, q, map[string]string{"code": phoneCode}, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(phoneNumberPath); err != nil {
		return nil, err
	}
	return &resp.PhoneInfo, nil
}

// Code2Session exchanges a login code for the user's openid and unionid.
func (c *OpenAPIClient) Code2Session(ctx context.Context, loginCode string) (*SessionInfo, error) {
	q := url.Values{}
	q.Set("appid", c.appID)
	q.Set("secret", c.appSecret)
	q.Set("js_code", loginCode)
	q.Set("grant_type", "authorization_code")

	var resp struct {
		apiStatus
		SessionInfo
	}
	if err := c.do(ctx, http.MethodGet, code2SessionPath, q, nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.err(code2SessionPath); err != nil {
		return nil, err
	}
	return &resp.SessionInfo, nil
}

// do performs a request through the breaker and decodes the JSON body into out.
func (c *OpenAPIClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		payload = b
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrOpenAPIUnavailable, err)
		}
		return fmt.Errorf("call %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

var _ WechatClient = (*OpenAPIClient)(nil)
