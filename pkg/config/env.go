package config

const (
	// EnvPrefix is passed to envconfig; every tag carries the full name.
	EnvPrefix = "HARVEST"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	IdempotencyBackendRedis = "redis"
	IdempotencyBackendDB    = "db"
)

const (
	EnvAppEnv   = "HARVEST_APP_ENV"
	EnvPort     = "HARVEST_APP_PORT"
	EnvLogLevel = "HARVEST_LOG_LEVEL"

	EnvDBDSN    = "HARVEST_DB_DSN"
	EnvDBDriver = "HARVEST_DB_DRIVER"
	EnvDBHost   = "HARVEST_DB_HOST"
	EnvDBUser   = "HARVEST_DB_USER"
	EnvDBName   = "HARVEST_DB_NAME"

	EnvRedisURL = "HARVEST_REDIS_URL"

	EnvWebhookSigningSecret  = "HARVEST_WEBHOOK_SIGNING_SECRET"
	EnvIdempotencyBackend    = "HARVEST_IDEMPOTENCY_BACKEND"
	EnvWebhookIdempotencyTTL = "HARVEST_WEBHOOK_IDEMPOTENCY_TTL"

	EnvSquareAccessToken   = "HARVEST_SQUARE_ACCESS_TOKEN"
	EnvSquareLocationID    = "HARVEST_SQUARE_LOCATION_ID"
	EnvSquareWebhookSecret = "HARVEST_SQUARE_WEBHOOK_SECRET"

	EnvOrderCacheTTL = "HARVEST_ORDER_CACHE_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
