package config

const (
	EnvPrefix = "CHOPMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	AdminFeeModeCartWide  = "cart_wide"
	AdminFeeModePerVendor = "per_vendor"
)

const (
	EnvAppEnv             = "CHOPMART_APP_ENV"
	EnvPort               = "CHOPMART_APP_PORT"
	EnvDBDSN              = "CHOPMART_DB_DSN"
	EnvDBHost             = "CHOPMART_DB_HOST"
	EnvDBUser             = "CHOPMART_DB_USER"
	EnvDBName             = "CHOPMART_DB_NAME"
	EnvDBPassword         = "CHOPMART_DB_PASSWORD"
	EnvUseSQLite          = "CHOPMART_USE_SQLITE"
	EnvRedisURL           = "CHOPMART_REDIS_URL"
	EnvRedisAddr          = "CHOPMART_REDIS_ADDR"
	EnvLogFormat          = "CHOPMART_LOG_FORMAT"
	EnvCronInterval       = "CHOPMART_CRON_INTERVAL"
	EnvCronLockTTL        = "CHOPMART_CRON_LOCK_TTL"
	EnvAdminFeePercent    = "CHOPMART_ADMIN_FEE_PERCENT"
	EnvAdminFeeMode       = "CHOPMART_ADMIN_FEE_MODE"
	EnvQuoteTTL           = "CHOPMART_QUOTE_TTL"
	EnvPlatformCutPercent = "CHOPMART_PLATFORM_CUT_PERCENT"
	EnvPaystackSecretKey  = "CHOPMART_PAYSTACK_SECRET_KEY"
	EnvGCPProjectID       = "CHOPMART_GCP_PROJECT_ID"
)
