package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Dispatch     DispatchConfig
	Rates        RatesConfig
	Payout       PayoutConfig
	RoutePayout  RoutePayoutConfig
	Cron         CronConfig
	Links        LinksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.RoutePayout.applyDefaults()
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOWAWAY_APP_ENV" required:"true"`
	Port         string `envconfig:"STOWAWAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOWAWAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOWAWAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOWAWAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOWAWAY_DB_DSN"`
	Driver string `envconfig:"STOWAWAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOWAWAY_DB_HOST"`
	LegacyPort     int    `envconfig:"STOWAWAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOWAWAY_DB_USER"`
	LegacyPassword string `envconfig:"STOWAWAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOWAWAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOWAWAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOWAWAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOWAWAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOWAWAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOWAWAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STOWAWAY_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOWAWAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOWAWAY_REDIS_ADDR"`
	Password     string        `envconfig:"STOWAWAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOWAWAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOWAWAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOWAWAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOWAWAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOWAWAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOWAWAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOWAWAY_AUTO_MIGRATE" default:"false"`

	// LogNotifications swaps the Pub/Sub notification gateway for a log sink.
	LogNotifications bool `envconfig:"STOWAWAY_LOG_NOTIFICATIONS" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOWAWAY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOWAWAY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOWAWAY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string        `envconfig:"STOWAWAY_PUBSUB_NOTIFICATION_TOPIC" default:"stowaway-notifications"`
	PublishTimeout    time.Duration `envconfig:"STOWAWAY_PUBSUB_PUBLISH_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"STOWAWAY_STRIPE_API_KEY"`
	Env    string `envconfig:"STOWAWAY_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken string `envconfig:"STOWAWAY_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"STOWAWAY_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"STOWAWAY_SQUARE_ENV" default:"sandbox"`
	Currency    string `envconfig:"STOWAWAY_SQUARE_CURRENCY" default:"USD"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type DispatchConfig struct {
	WebhookSecret  string        `envconfig:"STOWAWAY_DISPATCH_WEBHOOK_SECRET"`
	IdempotencyTTL time.Duration `envconfig:"STOWAWAY_DISPATCH_IDEMPOTENCY_TTL" default:"6h"`
	MaxBodyBytes   int64         `envconfig:"STOWAWAY_DISPATCH_MAX_BODY_BYTES" default:"1048576"`
}

// RatesConfig holds worker compensation rates in dollars.
type RatesConfig struct {
	FixedFee            decimal.Decimal `envconfig:"STOWAWAY_RATES_FIXED_FEE" default:"10.00"`
	Mileage             decimal.Decimal `envconfig:"STOWAWAY_RATES_MILEAGE" default:"0.67"`
	DrivePerHour        decimal.Decimal `envconfig:"STOWAWAY_RATES_DRIVE_PER_HOUR" default:"18.00"`
	ServicePerHour      decimal.Decimal `envconfig:"STOWAWAY_RATES_SERVICE_PER_HOUR" default:"18.00"`
	PartnerPerHour      decimal.Decimal `envconfig:"STOWAWAY_RATES_PARTNER_PER_HOUR" default:"50.00"`
	PartnerMinimumHours decimal.Decimal `envconfig:"STOWAWAY_RATES_PARTNER_MINIMUM_HOURS" default:"1"`
}

type PayoutConfig struct {
	PlatformFeePercent decimal.Decimal `envconfig:"STOWAWAY_PAYOUT_PLATFORM_FEE_PERCENT" default:"3"`
	PlatformFeeFloor   decimal.Decimal `envconfig:"STOWAWAY_PAYOUT_PLATFORM_FEE_FLOOR" default:"0.30"`
	Currency           string          `envconfig:"STOWAWAY_PAYOUT_CURRENCY" default:"usd"`
	MaxRetries         int             `envconfig:"STOWAWAY_PAYOUT_MAX_RETRIES" default:"3"`
	StaleProcessing    time.Duration   `envconfig:"STOWAWAY_PAYOUT_STALE_PROCESSING" default:"30m"`
	ReconcileGrace     time.Duration   `envconfig:"STOWAWAY_PAYOUT_RECONCILE_GRACE" default:"15m"`
	SweepBatchSize     int             `envconfig:"STOWAWAY_PAYOUT_SWEEP_BATCH_SIZE" default:"50"`
	SweepConcurrency   int             `envconfig:"STOWAWAY_PAYOUT_SWEEP_CONCURRENCY" default:"4"`
}

func (p PayoutConfig) validate() error {
	if p.PlatformFeePercent.IsNegative() || p.PlatformFeePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s must be between 0 and 100", EnvPayoutPlatformFeePercent)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("%s must be non-negative", EnvPayoutMaxRetries)
	}
	return nil
}

// RoutePayoutConfig holds the multi-stop route payout formula constants.
// Unset values take the Default* constants.
type RoutePayoutConfig struct {
	BaseRate    decimal.Decimal `envconfig:"STOWAWAY_ROUTE_PAYOUT_BASE"`
	StopFee     decimal.Decimal `envconfig:"STOWAWAY_ROUTE_PAYOUT_STOP_FEE"`
	MileageRate decimal.Decimal `envconfig:"STOWAWAY_ROUTE_PAYOUT_MILEAGE"`
	TimeRate    decimal.Decimal `envconfig:"STOWAWAY_ROUTE_PAYOUT_HOURLY"`
}

func (r *RoutePayoutConfig) applyDefaults() {
	defaults := []struct {
		key   string
		field *decimal.Decimal
		value string
	}{
		{EnvRoutePayoutBase, &r.BaseRate, DefaultRouteBaseRate},
		{EnvRoutePayoutStopFee, &r.StopFee, DefaultRouteStopFee},
		{EnvRoutePayoutMileage, &r.MileageRate, DefaultRouteMileageRate},
		{EnvRoutePayoutHourly, &r.TimeRate, DefaultRouteTimeRate},
	}
	for _, d := range defaults {
		if _, ok := os.LookupEnv(d.key); !ok {
			*d.field = decimal.RequireFromString(d.value)
		}
	}
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STOWAWAY_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"STOWAWAY_CRON_LOCK_TTL" default:"14m"`
}

type LinksConfig struct {
	TrackingBaseURL string `envconfig:"STOWAWAY_TRACKING_BASE_URL" default:"https://app.stowaway.local/tracking"`
	FeedbackBaseURL string `envconfig:"STOWAWAY_FEEDBACK_BASE_URL" default:"https://app.stowaway.local/feedback"`
	SupportPhone    string `envconfig:"STOWAWAY_SUPPORT_PHONE" default:"(415) 555-0134"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
