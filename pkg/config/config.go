package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "DETAILFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "DETAILFLOW_DB_DSN"
	EnvDBHost = "DETAILFLOW_DB_HOST"
	EnvDBUser = "DETAILFLOW_DB_USER"
	EnvDBName = "DETAILFLOW_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Stripe    StripeConfig
	Sendgrid  SendgridConfig
	Checkout  CheckoutConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DETAILFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"DETAILFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DETAILFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DETAILFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DETAILFLOW_DB_DSN"`
	Driver string `envconfig:"DETAILFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DETAILFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"DETAILFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DETAILFLOW_DB_USER"`
	LegacyPassword string `envconfig:"DETAILFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"DETAILFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"DETAILFLOW_DB_SSLMODE" default:"disable"`

	AutoMigrate bool `envconfig:"DETAILFLOW_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"DETAILFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DETAILFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DETAILFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DETAILFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the local sqlite driver was selected. The sqlite
// path exists for local development without a Postgres instance.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"DETAILFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DETAILFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"DETAILFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"DETAILFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DETAILFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DETAILFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DETAILFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DETAILFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DETAILFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"DETAILFLOW_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"DETAILFLOW_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"DETAILFLOW_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Configured reports whether a live Stripe integration can be built. When
// false the checkout falls back to placeholder sessions and verification.
func (s StripeConfig) Configured() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// ConfigProblem names an environment key an operator must fix.
type ConfigProblem struct {
	Key   string `json:"key"`
	Issue string `json:"issue"`
}

// Diagnose reports which Stripe keys are missing, placeholder, or malformed.
// The result is surfaced in 503 responses so operators can fix environment
// configuration without reading logs.
func (s StripeConfig) Diagnose() []ConfigProblem {
	var problems []ConfigProblem

	key := strings.TrimSpace(s.APIKey)
	switch {
	case key == "":
		problems = append(problems, ConfigProblem{Key: "DETAILFLOW_STRIPE_API_KEY", Issue: "missing"})
	case strings.Contains(strings.ToLower(key), "placeholder") || strings.HasPrefix(key, "sk_xxx"):
		problems = append(problems, ConfigProblem{Key: "DETAILFLOW_STRIPE_API_KEY", Issue: "placeholder value"})
	case !strings.HasPrefix(key, "sk_") && !strings.HasPrefix(key, "rk_"):
		problems = append(problems, ConfigProblem{Key: "DETAILFLOW_STRIPE_API_KEY", Issue: "malformed (expected sk_/rk_ prefix)"})
	}

	secret := strings.TrimSpace(s.WebhookSecret)
	switch {
	case secret == "":
		problems = append(problems, ConfigProblem{Key: "DETAILFLOW_STRIPE_WEBHOOK_SECRET", Issue: "missing"})
	case !strings.HasPrefix(secret, "whsec_"):
		problems = append(problems, ConfigProblem{Key: "DETAILFLOW_STRIPE_WEBHOOK_SECRET", Issue: "malformed (expected whsec_ prefix)"})
	}

	return problems
}

type SendgridConfig struct {
	APIKey        string `envconfig:"DETAILFLOW_SENDGRID_API_KEY"`
	FromEmail     string `envconfig:"DETAILFLOW_SENDGRID_FROM_EMAIL" default:"studio@wardstudio.co"`
	FromName      string `envconfig:"DETAILFLOW_SENDGRID_FROM_NAME" default:"Ward Studio"`
	FallbackFrom  string `envconfig:"DETAILFLOW_SENDGRID_FALLBACK_FROM" default:"onboarding@wardstudio.co"`
	InternalInbox string `envconfig:"DETAILFLOW_SENDGRID_INTERNAL_INBOX" default:"orders@wardstudio.co"`
}

// Diagnose reports which Sendgrid keys are missing or malformed.
func (s SendgridConfig) Diagnose() []ConfigProblem {
	var problems []ConfigProblem
	key := strings.TrimSpace(s.APIKey)
	switch {
	case key == "":
		problems = append(problems, ConfigProblem{Key: "DETAILFLOW_SENDGRID_API_KEY", Issue: "missing"})
	case !strings.HasPrefix(key, "SG."):
		problems = append(problems, ConfigProblem{Key: "DETAILFLOW_SENDGRID_API_KEY", Issue: "malformed (expected SG. prefix)"})
	}
	if strings.TrimSpace(s.InternalInbox) == "" {
		problems = append(problems, ConfigProblem{Key: "DETAILFLOW_SENDGRID_INTERNAL_INBOX", Issue: "missing"})
	}
	return problems
}

type CheckoutConfig struct {
	SuccessURL      string        `envconfig:"DETAILFLOW_CHECKOUT_SUCCESS_URL" default:"https://wardstudio.co/detailflow/success"`
	CancelURL       string        `envconfig:"DETAILFLOW_CHECKOUT_CANCEL_URL" default:"https://wardstudio.co/detailflow"`
	ReturnURL       string        `envconfig:"DETAILFLOW_CHECKOUT_RETURN_URL" default:"https://wardstudio.co/detailflow/return"`
	ProviderTimeout time.Duration `envconfig:"DETAILFLOW_CHECKOUT_PROVIDER_TIMEOUT" default:"10s"`
}

type RateLimitConfig struct {
	Window          time.Duration `envconfig:"DETAILFLOW_RATE_LIMIT_WINDOW" default:"1m"`
	OrdersLimit     int           `envconfig:"DETAILFLOW_RATE_LIMIT_ORDERS" default:"10"`
	CheckoutLimit   int           `envconfig:"DETAILFLOW_RATE_LIMIT_CHECKOUT" default:"10"`
	OnboardingLimit int           `envconfig:"DETAILFLOW_RATE_LIMIT_ONBOARDING" default:"6"`
}

type EmailConfig struct {
	DedupTTL time.Duration `envconfig:"DETAILFLOW_EMAIL_DEDUP_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "detailflow.db"
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
