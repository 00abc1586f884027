package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	FeatureFlags  FeatureFlagsConfig
	Webhook       WebhookConfig
	Square        SquareConfig
	Fulfillment   FulfillmentConfig
	Notifications NotificationsConfig
	Tracking      TrackingConfig
	Cron          CronConfig
	Metrics       MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Webhook.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HARVEST_APP_ENV" required:"true"`
	Port         string `envconfig:"HARVEST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HARVEST_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"HARVEST_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"HARVEST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"HARVEST_DB_DSN"`
	Driver string `envconfig:"HARVEST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HARVEST_DB_HOST"`
	LegacyPort     int    `envconfig:"HARVEST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HARVEST_DB_USER"`
	LegacyPassword string `envconfig:"HARVEST_DB_PASSWORD"`
	LegacyName     string `envconfig:"HARVEST_DB_NAME"`
	LegacySSLMode  string `envconfig:"HARVEST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HARVEST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HARVEST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HARVEST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HARVEST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"HARVEST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HARVEST_REDIS_ADDR"`
	Password     string        `envconfig:"HARVEST_REDIS_PASSWORD"`
	DB           int           `envconfig:"HARVEST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HARVEST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HARVEST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HARVEST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HARVEST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HARVEST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HARVEST_AUTO_MIGRATE" default:"false"`
	// ReconcileDeliveryStatus forward-maps driver status changes onto the order.
	ReconcileDeliveryStatus bool `envconfig:"HARVEST_RECONCILE_DELIVERY_STATUS" default:"true"`
}

type WebhookConfig struct {
	SigningSecret      string        `envconfig:"HARVEST_WEBHOOK_SIGNING_SECRET"`
	SignatureHeader    string        `envconfig:"HARVEST_WEBHOOK_SIGNATURE_HEADER" default:"X-Payment-Signature"`
	IdempotencyBackend string        `envconfig:"HARVEST_IDEMPOTENCY_BACKEND" default:"redis"`
	IdempotencyTTL     time.Duration `envconfig:"HARVEST_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	MaxBodyBytes       int64         `envconfig:"HARVEST_WEBHOOK_MAX_BODY_BYTES" default:"1048576"`
}

// UsesDatabaseIdempotency reports whether processed markers live in Postgres.
func (w WebhookConfig) UsesDatabaseIdempotency() bool {
	return strings.EqualFold(strings.TrimSpace(w.IdempotencyBackend), IdempotencyBackendDB)
}

func (w WebhookConfig) validate() error {
	backend := strings.ToLower(strings.TrimSpace(w.IdempotencyBackend))
	switch backend {
	case IdempotencyBackendRedis, IdempotencyBackendDB:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvIdempotencyBackend, IdempotencyBackendRedis, IdempotencyBackendDB)
	}
	if w.IdempotencyTTL < 0 {
		return fmt.Errorf("%s must be non-negative", EnvWebhookIdempotencyTTL)
	}
	return nil
}

type SquareConfig struct {
	AccessToken   string `envconfig:"HARVEST_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"HARVEST_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"HARVEST_SQUARE_LOCATION_ID"`
	RedirectURL   string `envconfig:"HARVEST_SQUARE_REDIRECT_URL"`
	WebhookSecret string `envconfig:"HARVEST_SQUARE_WEBHOOK_SECRET"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// Enabled reports whether enough credentials exist to call Square.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != "" && strings.TrimSpace(s.LocationID) != ""
}

type FulfillmentConfig struct {
	Currency string `envconfig:"HARVEST_DEFAULT_CURRENCY" default:"USD"`
}

type NotificationsConfig struct {
	Timeout       time.Duration `envconfig:"HARVEST_NOTIFICATION_TIMEOUT" default:"2s"`
	SellerLink    string        `envconfig:"HARVEST_NOTIFICATION_SELLER_LINK" default:"/seller/orders"`
	BuyerLink     string        `envconfig:"HARVEST_NOTIFICATION_BUYER_LINK" default:"/orders"`
	RetentionDays int           `envconfig:"HARVEST_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type TrackingConfig struct {
	OrderCacheTTL time.Duration `envconfig:"HARVEST_ORDER_CACHE_TTL" default:"5s"`
	HistoryLimit  int           `envconfig:"HARVEST_LOCATION_HISTORY_LIMIT" default:"500"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"HARVEST_CRON_INTERVAL" default:"1h"`
	LockKey  string        `envconfig:"HARVEST_CRON_LOCK_KEY" default:"hv:cron:lock"`
	LockTTL  time.Duration `envconfig:"HARVEST_CRON_LOCK_TTL" default:"55m"`

	JobTimeout time.Duration `envconfig:"HARVEST_CRON_JOB_TIMEOUT" default:"10m"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"HARVEST_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"HARVEST_METRICS_PATH" default:"/metrics"`
}

// PaymentSigningSecret returns the secret used to verify inbound payment events.
func (c *Config) PaymentSigningSecret() string {
	if c == nil {
		return ""
	}
	if secret := strings.TrimSpace(c.Webhook.SigningSecret); secret != "" {
		return secret
	}
	return strings.TrimSpace(c.Square.WebhookSecret)
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:harvest.db?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
