package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Wechat     WechatConfig     `mapstructure:"wechat"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
// An empty address selects the in-process cache.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`
	KeepAlive           time.Duration `mapstructure:"keep_alive"`
}

// BreakerConfig holds circuit breaker settings for the WeChat open API.
type BreakerConfig struct {
	FailureThreshold    uint32        `mapstructure:"failure_threshold"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxHalfOpenRequests uint32        `mapstructure:"max_half_open_requests"`
}

// AuthConfig holds session token configuration.
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	JWTExpiresIn time.Duration `mapstructure:"jwt_expires_in"`
	Issuer       string        `mapstructure:"issuer"`
	// CustomerLinkMode is "strict" or "best_effort".
	CustomerLinkMode string `mapstructure:"customer_link_mode"`
}

// WechatConfig holds WeChat mini program and WeChat Pay configuration.
type WechatConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`

	MchID                   string `mapstructure:"mch_id"`
	SerialNo                string `mapstructure:"serial_no"`   // Merchant certificate serial number
	PrivateKey              string `mapstructure:"private_key"` // Merchant private key (PEM)
	APIKeyV3                string `mapstructure:"api_key_v3"`
	PlatformPublicKey       string `mapstructure:"platform_public_key"` // Platform public key (PEM)
	PlatformPublicKeySerial string `mapstructure:"platform_public_key_serial"`
	IsProd                  bool   `mapstructure:"is_prod"`

	Domain             string `mapstructure:"domain"` // Public base URL used for notify_url
	DefaultDescription string `mapstructure:"default_description"`
	VerifySignature    bool   `mapstructure:"verify_signature"`
	StrictCodec        bool   `mapstructure:"strict_codec"`

	OpenAPIBaseURL string `mapstructure:"open_api_base_url"`
}

// StorageConfig holds object storage configuration for the notification archive.
// An empty bucket disables archiving.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the provider options that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Wechat.AppID == "" || c.Wechat.AppSecret == "" {
		return fmt.Errorf("%w: appId and appSecret are required in the provider's options", ErrInvalidConfig)
	}
	w := c.Wechat
	if w.MchID == "" || w.SerialNo == "" || w.PrivateKey == "" || w.APIKeyV3 == "" || w.Domain == "" {
		return fmt.Errorf("%w: appid, mchid, serial_no, private_key, domain and api_key_v3 are required in the provider's options", ErrInvalidConfig)
	}
	if len(w.APIKeyV3) != 32 {
		return fmt.Errorf("%w: api_key_v3 must be 32 bytes", ErrInvalidConfig)
	}
	if w.VerifySignature && w.PlatformPublicKey == "" {
		return fmt.Errorf("%w: platform_public_key is required when verify_signature is enabled", ErrInvalidConfig)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is required", ErrInvalidConfig)
	}
	switch c.Auth.CustomerLinkMode {
	case "strict", "best_effort":
	default:
		return fmt.Errorf("%w: unknown auth.customer_link_mode %q", ErrInvalidConfig, c.Auth.CustomerLinkMode)
	}
	return nil
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/weappkit")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("WEAPP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Secrets are read from the environment so they stay out of config files.
	if secret := os.Getenv("WEAPP_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if password := os.Getenv("WEAPP_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("WEAPP_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv("WEAPP_STORAGE_SECRET_KEY"); key != "" {
		cfg.Storage.SecretAccessKey = key
	}
	if appID := os.Getenv("WEAPP_WECHAT_APP_ID"); appID != "" {
		cfg.Wechat.AppID = appID
	}
	if appSecret := os.Getenv("WEAPP_WECHAT_APP_SECRET"); appSecret != "" {
		cfg.Wechat.AppSecret = appSecret
	}
	if mchID := os.Getenv("WEAPP_WECHAT_MCH_ID"); mchID != "" {
		cfg.Wechat.MchID = mchID
	}
	if apiKey := os.Getenv("WEAPP_WECHAT_API_KEY_V3"); apiKey != "" {
		cfg.Wechat.APIKeyV3 = apiKey
	}
	if privateKey := os.Getenv("WEAPP_WECHAT_PRIVATE_KEY"); privateKey != "" {
		cfg.Wechat.PrivateKey = privateKey
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "weappkit")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 10*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 30*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.timeout", 60*time.Second)
	v.SetDefault("breaker.max_half_open_requests", 1)

	v.SetDefault("auth.jwt_expires_in", 24*time.Hour)
	v.SetDefault("auth.issuer", "weappkit")
	v.SetDefault("auth.customer_link_mode", "strict")

	v.SetDefault("wechat.default_description", "weapp_payment")
	v.SetDefault("wechat.verify_signature", false)
	v.SetDefault("wechat.strict_codec", false)
	v.SetDefault("wechat.open_api_base_url", "https://api.weixin.qq.com")

	v.SetDefault("storage.prefix", "wechat-notifications/")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
