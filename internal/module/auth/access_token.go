package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/weappkit/server/internal/port/outbound"
	"github.com/weappkit/server/internal/shared/metrics"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// AccessTokenCacheKey is the single global cache key for the app's access token.
const AccessTokenCacheKey = "wechat-auth-token-cache-key"

const tokenCacheName = "wechat_access_token"

// openAPITokenSource adapts WechatClient.FetchAccessToken to oauth2.TokenSource.
type openAPITokenSource struct {
	ctx    context.Context
	client WechatClient
	now    func() time.Time
}

// Token fetches a fresh access token.
func (s *openAPITokenSource) Token() (*oauth2.Token, error) {
	at, err := s.client.FetchAccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{AccessToken: at.Value, TokenType: "Bearer"}
	if at.ExpiresIn > 0 {
		tok.Expiry = s.now().Add(at.ExpiresIn)
	}
	return tok, nil
}

// AccessTokenCache returns the app access token, fetching it on a cache miss.
// Concurrent misses each fetch and the last write wins.
type AccessTokenCache struct {
	cache   outbound.CachePort
	client  WechatClient
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAccessTokenCache creates a new access token cache.
func NewAccessTokenCache(cache outbound.CachePort, client WechatClient, logger *zap.Logger, m *metrics.Metrics) *AccessTokenCache {
	return &AccessTokenCache{
		cache:   cache,
		client:  client,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Token returns the cached access token or fetches a new one. Entries are
// stored as oauth2 tokens; one that is expired or about to expire is
// refetched even if the cache still holds it.
func (c *AccessTokenCache) Token(ctx context.Context) (string, error) {
	cached, err := c.cache.Get(ctx, AccessTokenCacheKey)
	switch {
	case err == nil && cached != "":
		if tok := decodeCachedToken(cached); tok.Valid() {
			c.metrics.RecordCacheHit(tokenCacheName)
			return tok.AccessToken, nil
		}
		c.logger.Debug("cached access token near expiry")
	case err != nil && !errors.Is(err, outbound.ErrCacheMiss):
		c.logger.Warn("access token cache read failed", zap.Error(err))
	}
	c.metrics.RecordCacheMiss(tokenCacheName)

	src := &openAPITokenSource{ctx: ctx, client: c.client, now: c.now}
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("fetch access token: %w", err)
	}

	var ttl time.Duration
	if !tok.Expiry.IsZero() {
		ttl = tok.Expiry.Sub(c.now())
	}
	encoded, err := json.Marshal(tok)
	if err != nil {
		return "", fmt.Errorf("encode access token: %w", err)
	}
	if err := c.cache.Set(ctx, AccessTokenCacheKey, string(encoded), ttl); err != nil {
		c.logger.Warn("access token cache write failed", zap.Error(err))
	}
	return tok.AccessToken, nil
}

// decodeCachedToken reads a cache entry. Bare strings written by other
// processes sharing the key are taken as tokens without a known expiry.
func decodeCachedToken(v string) *oauth2.Token {
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(v), &tok); err == nil && tok.AccessToken != "" {
		return &tok
	}
	return &oauth2.Token{AccessToken: v}
}
