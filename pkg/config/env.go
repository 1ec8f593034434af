package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:storefront.db?cache=shared&_foreign_keys=on"
)

const (
	EnvAppEnv                 = "STOREFRONT_APP_ENV"
	EnvPort                   = "STOREFRONT_APP_PORT"
	EnvDBDSN                  = "STOREFRONT_DB_DSN"
	EnvDBDriver               = "STOREFRONT_DB_DRIVER"
	EnvDBHost                 = "STOREFRONT_DB_HOST"
	EnvDBUser                 = "STOREFRONT_DB_USER"
	EnvDBName                 = "STOREFRONT_DB_NAME"
	EnvRedisURL               = "STOREFRONT_REDIS_URL"
	EnvJWTSecret              = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer              = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins             = "STOREFRONT_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "STOREFRONT_REFRESH_TOKEN_TTL_MINUTES"
	EnvUseSQLite              = "STOREFRONT_USE_SQLITE"
	EnvCartGuestTTL           = "STOREFRONT_CART_GUEST_TTL"
	EnvCartUserRetention      = "STOREFRONT_CART_USER_RETENTION"
	EnvCartGuestCookie        = "STOREFRONT_CART_GUEST_COOKIE"
	EnvGCSBucket              = "STOREFRONT_GCS_BUCKET_NAME"
	EnvGCSDownloadExpiry      = "STOREFRONT_GCS_DOWNLOAD_URL_EXPIRY"
	EnvPubSubCartTopic        = "STOREFRONT_PUBSUB_CART_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
