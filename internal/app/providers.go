package app

import (
	"net/http"

	"github.com/google/wire"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/weappkit/server/internal/adapter/inbound/lambda"
	"github.com/weappkit/server/internal/adapter/outbound/memory"
	redisadapter "github.com/weappkit/server/internal/adapter/outbound/redis"
	"github.com/weappkit/server/internal/adapter/outbound/s3"
	"github.com/weappkit/server/internal/module/auth"
	"github.com/weappkit/server/internal/module/payment"
	"github.com/weappkit/server/internal/port/outbound"
	sharedcache "github.com/weappkit/server/internal/shared/cache"
	"github.com/weappkit/server/internal/shared/config"
	"github.com/weappkit/server/internal/shared/database"
	"github.com/weappkit/server/internal/shared/httpclient"
	"github.com/weappkit/server/internal/shared/logger"
	"github.com/weappkit/server/internal/shared/metrics"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideDatabase,
	ProvideCache,
	ProvideHTTPClient,
	ProvideArchive,
)

// ProvideLogger creates the zap logger.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, nil, err
	}
	return log, func() { _ = log.Sync() }, nil
}

// ProvideMetrics creates a metrics instance.
func ProvideMetrics() *metrics.Metrics {
	return metrics.New("weappkit")
}

// ProvideDatabase opens the database and migrates the module models.
func ProvideDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	err = database.Migrate(&cfg.Database, db,
		&payment.PaymentSession{},
		&payment.PaymentWebhookEvent{},
		&auth.AuthIdentity{},
		&auth.Customer{},
	)
	if err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}
	return db, cleanup, nil
}

// ProvideCache returns the Redis cache, or an in-process cache when Redis
// is not configured or unreachable.
func ProvideCache(cfg *config.Config, log *zap.Logger) (outbound.CachePort, func()) {
	client, err := sharedcache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("Redis connection failed, continuing with in-memory cache", zap.Error(err))
		return memory.NewCache(), func() {}
	}
	if client == nil {
		return memory.NewCache(), func() {}
	}
	return redisadapter.NewCache(client), func() { _ = sharedcache.Close(client) }
}

// ProvideHTTPClient creates a shared HTTP client with connection pooling.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(&cfg.HTTPClient)
}

// ProvideArchive returns the notification archive, or nil when no bucket
// is configured.
func ProvideArchive(cfg *config.Config) (outbound.ObjectStoragePort, error) {
	store, err := s3.NewObjectStorage(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, nil
	}
	return store, nil
}

// ===== Payment Providers =====

// PaymentSet provides the payment module.
var PaymentSet = wire.NewSet(
	ProvideGateway,
	ProvidePaymentRegistry,
	payment.NewRepository,
	payment.NewService,
	payment.NewHandler,
	payment.NewWebhookHandler,
)

// ProvideGateway creates the WeChat Pay v3 gateway.
func ProvideGateway(cfg *config.Config) (*payment.GopayGateway, error) {
	w := cfg.Wechat
	return payment.NewGopayGateway(&payment.GatewayConfig{
		AppID:                   w.AppID,
		MchID:                   w.MchID,
		SerialNo:                w.SerialNo,
		PrivateKey:              w.PrivateKey,
		APIKeyV3:                w.APIKeyV3,
		PlatformPublicKey:       w.PlatformPublicKey,
		PlatformPublicKeySerial: w.PlatformPublicKeySerial,
		IsProd:                  w.IsProd,
	})
}

// ProvidePaymentRegistry registers the mini program and native variants.
func ProvidePaymentRegistry(cfg *config.Config, gw *payment.GopayGateway, log *zap.Logger, m *metrics.Metrics) *payment.ProviderRegistry {
	opts := payment.ProviderOptions{
		Domain:             cfg.Wechat.Domain,
		DefaultDescription: cfg.Wechat.DefaultDescription,
		APIKeyV3:           cfg.Wechat.APIKeyV3,
		StrictCodec:        cfg.Wechat.StrictCodec,
		VerifySignature:    cfg.Wechat.VerifySignature,
	}
	return payment.NewProviderRegistry(
		payment.NewProvider(payment.MiniVariant, gw, gw, opts, log, m),
		payment.NewProvider(payment.NativeVariant, gw, gw, opts, log, m),
	)
}

// ===== Auth Providers =====

// AuthSet provides the auth module.
var AuthSet = wire.NewSet(
	ProvideOpenAPIClient,
	auth.NewAccessTokenCache,
	auth.NewProvider,
	wire.Bind(new(auth.Authenticator), new(*auth.Provider)),
	auth.NewIdentityRepository,
	auth.NewCustomerRepository,
	ProvideJWTSigner,
	wire.Bind(new(auth.TokenSigner), new(*auth.JWTSigner)),
	ProvideExchange,
	auth.NewHandler,
)

// ProvideOpenAPIClient creates the WeChat open API client.
func ProvideOpenAPIClient(cfg *config.Config, client *http.Client, log *zap.Logger, m *metrics.Metrics) auth.WechatClient {
	return auth.NewOpenAPIClient(&auth.OpenAPIConfig{
		BaseURL:             cfg.Wechat.OpenAPIBaseURL,
		AppID:               cfg.Wechat.AppID,
		AppSecret:           cfg.Wechat.AppSecret,
		FailureThreshold:    cfg.Breaker.FailureThreshold,
		Timeout:             cfg.Breaker.Timeout,
		MaxHalfOpenRequests: cfg.Breaker.MaxHalfOpenRequests,
	}, client, log, m)
}

// ProvideJWTSigner creates the session token signer.
func ProvideJWTSigner(cfg *config.Config) *auth.JWTSigner {
	jwtCfg := auth.DefaultJWTConfig()
	jwtCfg.Secret = cfg.Auth.JWTSecret
	if cfg.Auth.JWTExpiresIn > 0 {
		jwtCfg.ExpiresIn = cfg.Auth.JWTExpiresIn
	}
	if cfg.Auth.Issuer != "" {
		jwtCfg.Issuer = cfg.Auth.Issuer
	}
	return auth.NewJWTSigner(jwtCfg)
}

// ProvideExchange creates the login exchange.
func ProvideExchange(
	cfg *config.Config,
	provider auth.Authenticator,
	identities auth.IdentityStore,
	customers auth.CustomerStore,
	signer auth.TokenSigner,
	log *zap.Logger,
	m *metrics.Metrics,
) *auth.Exchange {
	return auth.NewExchange(provider, identities, customers, signer, auth.LinkMode(cfg.Auth.CustomerLinkMode), log, m)
}

// ===== Lambda Providers =====

// ProvideNotifyHandler creates the Lambda notification handler.
func ProvideNotifyHandler(service *payment.Service, log *zap.Logger) *lambda.NotifyHandler {
	return lambda.NewNotifyHandler(service, log)
}
