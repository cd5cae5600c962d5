package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Delivery     DeliveryConfig
	Paystack     PaystackConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Cron         CronConfig
}

// Load reads CHOPMART_* variables and reports every invalid setting at
// once rather than stopping at the first.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.App.validate(),
		cfg.DB.resolveDSN(cfg.FeatureFlags.UseSQLite),
		cfg.Redis.validate(),
		cfg.Pricing.validate(),
		cfg.Delivery.validate(),
		cfg.Cron.validate(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHOPMART_APP_ENV" required:"true"`
	Port         string `envconfig:"CHOPMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHOPMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHOPMART_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"CHOPMART_LOG_FORMAT" default:"json"`
	// Comma separated; "*" allows any origin.
	CORSOrigins []string `envconfig:"CHOPMART_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) validate() error {
	switch strings.ToLower(a.LogFormat) {
	case "json", "console":
		return nil
	}
	return fmt.Errorf("%s must be json or console", EnvLogFormat)
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CHOPMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"CHOPMART_DB_DSN"`
	// Queries slower than this are logged at warn. Zero disables the log.
	SlowQueryThreshold time.Duration `envconfig:"CHOPMART_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`

	// Used to build DSN when it is not set directly.
	Host     string `envconfig:"CHOPMART_DB_HOST"`
	Port     int    `envconfig:"CHOPMART_DB_PORT" default:"5432"`
	User     string `envconfig:"CHOPMART_DB_USER"`
	Password string `envconfig:"CHOPMART_DB_PASSWORD"`
	Name     string `envconfig:"CHOPMART_DB_NAME"`
	SSLMode  string `envconfig:"CHOPMART_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"CHOPMART_SQLITE_PATH" default:"chopmart.db"`

	MaxOpenConns    int           `envconfig:"CHOPMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CHOPMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CHOPMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHOPMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHOPMART_REDIS_URL"`
	Address      string        `envconfig:"CHOPMART_REDIS_ADDR"`
	Password     string        `envconfig:"CHOPMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHOPMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHOPMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHOPMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHOPMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHOPMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHOPMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) validate() error {
	if r.URL == "" && r.Address == "" {
		return fmt.Errorf("one of %s or %s is required", EnvRedisURL, EnvRedisAddr)
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CHOPMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CHOPMART_AUTO_MIGRATE" default:"false"`
}

// PricingConfig drives the checkout composer and fee table cache.
type PricingConfig struct {
	StandardAdminFeePercent  decimal.Decimal `envconfig:"CHOPMART_ADMIN_FEE_PERCENT" default:"7"`
	TopVendorAdminFeePercent decimal.Decimal `envconfig:"CHOPMART_TOP_VENDOR_ADMIN_FEE_PERCENT" default:"5"`
	AdminFeeMode             string          `envconfig:"CHOPMART_ADMIN_FEE_MODE" default:"cart_wide"`
	ImplicitSingleVendor     bool            `envconfig:"CHOPMART_IMPLICIT_SINGLE_VENDOR" default:"true"`
	DefaultZone              string          `envconfig:"CHOPMART_DEFAULT_ZONE" default:"Eziobodo"`
	FeeTableCacheTTL         time.Duration   `envconfig:"CHOPMART_FEE_TABLE_CACHE_TTL" default:"10m"`
	Currency                 string          `envconfig:"CHOPMART_CURRENCY" default:"NGN"`
}

func (p PricingConfig) validate() error {
	if p.StandardAdminFeePercent.IsNegative() || p.TopVendorAdminFeePercent.IsNegative() {
		return fmt.Errorf("admin fee percentages must not be negative")
	}
	switch p.AdminFeeMode {
	case AdminFeeModeCartWide, AdminFeeModePerVendor:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvAdminFeeMode, AdminFeeModeCartWide, AdminFeeModePerVendor)
	}
	return nil
}

// DeliveryConfig configures rider-brokered delivery jobs.
type DeliveryConfig struct {
	QuoteTTL         time.Duration   `envconfig:"CHOPMART_QUOTE_TTL" default:"15m"`
	RiderCutPercent  decimal.Decimal `envconfig:"CHOPMART_PLATFORM_CUT_PERCENT" default:"5"`
	OpenJobsPageSize int             `envconfig:"CHOPMART_OPEN_JOBS_PAGE_SIZE" default:"25"`
}

func (d DeliveryConfig) validate() error {
	if d.QuoteTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvQuoteTTL)
	}
	if d.RiderCutPercent.IsNegative() || d.RiderCutPercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be between 0 and 100", EnvPlatformCutPercent)
	}
	return nil
}

type PaystackConfig struct {
	SecretKey   string        `envconfig:"CHOPMART_PAYSTACK_SECRET_KEY"`
	BaseURL     string        `envconfig:"CHOPMART_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	CallbackURL string        `envconfig:"CHOPMART_PAYSTACK_CALLBACK_URL"`
	Timeout     time.Duration `envconfig:"CHOPMART_PAYSTACK_TIMEOUT" default:"15s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CHOPMART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"CHOPMART_PUBSUB_NOTIFICATION_TOPIC" default:"chopmart-delivery-notifications"`
	// OrderedDelivery keys messages by delivery job so subscribers see a
	// job's events in order.
	OrderedDelivery  bool          `envconfig:"CHOPMART_PUBSUB_ORDERED_DELIVERY" default:"true"`
	CreateTopic      bool          `envconfig:"CHOPMART_PUBSUB_CREATE_TOPIC" default:"false"`
	PublishDelay     time.Duration `envconfig:"CHOPMART_PUBSUB_PUBLISH_DELAY" default:"10ms"`
	PublishBatchSize int           `envconfig:"CHOPMART_PUBSUB_PUBLISH_BATCH_SIZE" default:"100"`
}

// Enabled reports whether Pub/Sub notification fan-out is configured.
func (p PubSubConfig) Enabled(gcp GCPConfig) bool {
	return strings.TrimSpace(gcp.ProjectID) != "" && strings.TrimSpace(p.NotificationTopic) != ""
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"CHOPMART_CRON_INTERVAL" default:"1m"`
	LockTTL           time.Duration `envconfig:"CHOPMART_CRON_LOCK_TTL" default:"5m"`
	ExpiryBatchSize   int           `envconfig:"CHOPMART_CRON_EXPIRY_BATCH_SIZE" default:"200"`
	PendingPaymentTTL time.Duration `envconfig:"CHOPMART_PENDING_PAYMENT_TTL" default:"2h"`
}

// The lease has to outlive a sweep or a second worker can start mid-run.
func (c CronConfig) validate() error {
	if c.Interval <= 0 || c.LockTTL < c.Interval {
		return fmt.Errorf("%s must be positive and %s at least as long", EnvCronInterval, EnvCronLockTTL)
	}
	return nil
}

// resolveDSN assembles a postgres URL from the CHOPMART_DB_* parts when no
// DSN was given. SQLite mode needs neither.
func (db *DBConfig) resolveDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}
	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%s is unset and so are %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   "/" + db.Name,
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
