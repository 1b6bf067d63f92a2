package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Ledger       LedgerConfig
	Deposits     DepositsConfig
	RateLimit    RateLimitConfig
	GoogleMaps   GoogleMapsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	} else if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAREHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"CAREHUB_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CAREHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CAREHUB_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"CAREHUB_CORS_ORIGINS"`

	// MetricsAddr is where background workers serve /metrics. Empty disables it.
	MetricsAddr string `envconfig:"CAREHUB_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CAREHUB_DB_DSN"`
	Driver string `envconfig:"CAREHUB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CAREHUB_DB_HOST"`
	Port     int    `envconfig:"CAREHUB_DB_PORT" default:"5432"`
	User     string `envconfig:"CAREHUB_DB_USER"`
	Password string `envconfig:"CAREHUB_DB_PASSWORD"`
	Name     string `envconfig:"CAREHUB_DB_NAME"`
	SSLMode  string `envconfig:"CAREHUB_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"CAREHUB_SQLITE_PATH" default:"carehub.db"`

	MaxOpenConns    int           `envconfig:"CAREHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAREHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAREHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAREHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAREHUB_REDIS_URL" required:"true"`
	Password     string        `envconfig:"CAREHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAREHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAREHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAREHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAREHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAREHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAREHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the identity service.
type JWTConfig struct {
	Secret            string `envconfig:"CAREHUB_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CAREHUB_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CAREHUB_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CAREHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CAREHUB_AUTO_MIGRATE" default:"false"`
}

// LedgerConfig carries the monetary policy. Amounts are minor units.
type LedgerConfig struct {
	DefaultLoanEligibility int64   `envconfig:"CAREHUB_LEDGER_DEFAULT_LOAN_ELIGIBILITY" default:"20000"`
	LoanInterestRate       float64 `envconfig:"CAREHUB_LEDGER_LOAN_INTEREST_RATE" default:"0.03"`
	LoanTermDays           int     `envconfig:"CAREHUB_LEDGER_LOAN_TERM_DAYS" default:"30"`
	ReferralBonus          int64   `envconfig:"CAREHUB_LEDGER_REFERRAL_BONUS" default:"1000"`
	EmergencyServiceCost   int64   `envconfig:"CAREHUB_LEDGER_EMERGENCY_SERVICE_COST" default:"500"`
	EmergencyPercentage    int     `envconfig:"CAREHUB_LEDGER_EMERGENCY_PERCENTAGE" default:"50"`
}

// LoanTerm returns the configured repayment window.
func (l LedgerConfig) LoanTerm() time.Duration {
	return time.Duration(l.LoanTermDays) * 24 * time.Hour
}

func (l LedgerConfig) validate() error {
	switch {
	case l.DefaultLoanEligibility < 0:
		return fmt.Errorf("%s must be non-negative", EnvLedgerDefaultEligibility)
	case l.LoanInterestRate < 0 || l.LoanInterestRate >= 1:
		return fmt.Errorf("%s must be within [0, 1)", EnvLedgerInterestRate)
	case l.LoanTermDays <= 0:
		return fmt.Errorf("%s must be positive", EnvLedgerLoanTermDays)
	case l.ReferralBonus < 0 || l.EmergencyServiceCost < 0:
		return fmt.Errorf("ledger amounts must be non-negative")
	}
	return nil
}

type DepositsConfig struct {
	WebhookSecret  string        `envconfig:"CAREHUB_DEPOSITS_WEBHOOK_SECRET"`
	IdempotencyTTL time.Duration `envconfig:"CAREHUB_DEPOSITS_IDEMPOTENCY_TTL" default:"720h"`
}

type RateLimitConfig struct {
	WebhookRequestsPerMinute int           `envconfig:"CAREHUB_RATE_LIMIT_WEBHOOK_RPM" default:"120"`
	APIRequestsPerMinute     int           `envconfig:"CAREHUB_RATE_LIMIT_API_RPM" default:"600"`
	IdempotencyTTL           time.Duration `envconfig:"CAREHUB_IDEMPOTENCY_TTL" default:"24h"`
}

type GoogleMapsConfig struct {
	APIKey  string `envconfig:"CAREHUB_GOOGLE_MAPS_API_KEY"`
	BaseURL string `envconfig:"CAREHUB_GOOGLE_MAPS_BASE_URL"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CAREHUB_GCP_PROJECT_ID"`
	CredentialsFile string `envconfig:"CAREHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	LedgerTopic string `envconfig:"CAREHUB_PUBSUB_LEDGER_TOPIC" default:"carehub-ledger-events"`
	AlertsTopic string `envconfig:"CAREHUB_PUBSUB_ALERTS_TOPIC" default:"carehub-emergency-alerts"`
	NotifyTopic string `envconfig:"CAREHUB_PUBSUB_NOTIFY_TOPIC" default:"carehub-notifications"`

	LedgerSubscription string `envconfig:"CAREHUB_PUBSUB_LEDGER_SUBSCRIPTION" default:"carehub-ledger-events-notifications"`
	AlertsSubscription string `envconfig:"CAREHUB_PUBSUB_ALERTS_SUBSCRIPTION" default:"carehub-emergency-alerts-notifications"`
	NotifySubscription string `envconfig:"CAREHUB_PUBSUB_NOTIFY_SUBSCRIPTION" default:"carehub-notifications-inbox"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CAREHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CAREHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CAREHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CAREHUB_OUTBOX_RETENTION" default:"720h"`
	DLQRetention   time.Duration `envconfig:"CAREHUB_OUTBOX_DLQ_RETENTION" default:"2160h"`

	ConsumerIdempotencyTTL time.Duration `envconfig:"CAREHUB_OUTBOX_CONSUMER_IDEMPOTENCY_TTL" default:"168h"`
}

type CronConfig struct {
	Tick                 time.Duration `envconfig:"CAREHUB_CRON_TICK" default:"1m"`
	LockTTL              time.Duration `envconfig:"CAREHUB_CRON_LOCK_TTL" default:"4m"`
	LoanReminderWindow   time.Duration `envconfig:"CAREHUB_CRON_LOAN_REMINDER_WINDOW" default:"72h"`
	LoanReminderEvery    time.Duration `envconfig:"CAREHUB_CRON_LOAN_REMINDER_EVERY" default:"1h"`
	OutboxRetentionEvery time.Duration `envconfig:"CAREHUB_CRON_OUTBOX_RETENTION_EVERY" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for env, value := range map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
