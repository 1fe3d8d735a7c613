package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Auth         AuthConfig
	Stripe       StripeConfig
	Fulfillment  FulfillmentConfig
	Sendgrid     SendgridConfig
	Catalog      CatalogConfig
	Webhooks     WebhooksConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DatabaseOnly is the subset of settings cmd/migrate needs. It never requires
// provider credentials.
type DatabaseOnly struct {
	App AppConfig
	DB  DBConfig
}

func LoadDatabaseOnly() (*DatabaseOnly, error) {
	var cfg DatabaseOnly
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every cross-field problem at once.
func (c *Config) Validate() error {
	var err error
	if _, envErr := normalizeStripeEnv(c.Stripe.Env); envErr != nil {
		err = multierr.Append(err, envErr)
	}
	if !hasNonBlank(c.Stripe.ShippingCountries) {
		err = multierr.Append(err, fmt.Errorf("%s must list at least one country", EnvStripeShipCountries))
	}
	if c.Fulfillment.RequireSignature && strings.TrimSpace(c.Fulfillment.WebhookSecret) == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required when %s is enabled", EnvFulfillmentWebhookSecret, EnvFulfillmentRequireSignature))
	}
	if _, mapErr := c.Fulfillment.SKUOverrides(); mapErr != nil {
		err = multierr.Append(err, mapErr)
	}
	if c.Fulfillment.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s must be positive", EnvFulfillmentTimeout))
	}
	return err
}

func hasNonBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

type AppConfig struct {
	Env          string `envconfig:"POSTERLOFT_APP_ENV" required:"true"`
	Port         string `envconfig:"POSTERLOFT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"POSTERLOFT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"POSTERLOFT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"POSTERLOFT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"POSTERLOFT_DB_DSN"`
	Driver string `envconfig:"POSTERLOFT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POSTERLOFT_DB_HOST"`
	LegacyPort     int    `envconfig:"POSTERLOFT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POSTERLOFT_DB_USER"`
	LegacyPassword string `envconfig:"POSTERLOFT_DB_PASSWORD"`
	LegacyName     string `envconfig:"POSTERLOFT_DB_NAME"`
	LegacySSLMode  string `envconfig:"POSTERLOFT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POSTERLOFT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"POSTERLOFT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"POSTERLOFT_DB_CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `envconfig:"POSTERLOFT_DB_CONN_MAX_IDLE_TIME" default:"5m"`
}

// RedisConfig is optional; an empty URL and address disables the webhook event guard.
type RedisConfig struct {
	URL          string        `envconfig:"POSTERLOFT_REDIS_URL"`
	Address      string        `envconfig:"POSTERLOFT_REDIS_ADDR"`
	Password     string        `envconfig:"POSTERLOFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"POSTERLOFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POSTERLOFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POSTERLOFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POSTERLOFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POSTERLOFT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"POSTERLOFT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// AuthConfig describes the identity provider's token signing contract.
type AuthConfig struct {
	JWTSecret string `envconfig:"POSTERLOFT_AUTH_JWT_SECRET" required:"true"`
	Issuer    string `envconfig:"POSTERLOFT_AUTH_ISSUER"`
	Audience  string `envconfig:"POSTERLOFT_AUTH_AUDIENCE" default:"authenticated"`
	AdminRole string `envconfig:"POSTERLOFT_AUTH_ADMIN_ROLE" default:"admin"`
}

type StripeConfig struct {
	APIKey            string   `envconfig:"POSTERLOFT_STRIPE_API_KEY" required:"true"`
	WebhookSecret     string   `envconfig:"POSTERLOFT_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env               string   `envconfig:"POSTERLOFT_STRIPE_ENV" default:"test"`
	SuccessURL        string   `envconfig:"POSTERLOFT_STRIPE_SUCCESS_URL" default:"http://localhost:3000/checkout/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL         string   `envconfig:"POSTERLOFT_STRIPE_CANCEL_URL" default:"http://localhost:3000/checkout/cancel"`
	ShippingCountries []string `envconfig:"POSTERLOFT_STRIPE_SHIPPING_COUNTRIES" default:"US,CA,GB"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env, err := normalizeStripeEnv(s.Env)
	if err != nil {
		return strings.TrimSpace(strings.ToLower(s.Env))
	}
	return env
}

func normalizeStripeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		return "test", nil
	}
	switch env {
	case "test", "live":
		return env, nil
	default:
		return "", fmt.Errorf("%s must be %q or %q", EnvStripeEnv, "test", "live")
	}
}

type FulfillmentConfig struct {
	APIKey            string        `envconfig:"POSTERLOFT_PRODIGI_API_KEY" required:"true"`
	BaseURL           string        `envconfig:"POSTERLOFT_PRODIGI_BASE_URL" default:"https://api.sandbox.prodigi.com/v4.0"`
	ShippingMethod    string        `envconfig:"POSTERLOFT_PRODIGI_SHIPPING_METHOD" default:"Standard"`
	Timeout           time.Duration `envconfig:"POSTERLOFT_PRODIGI_TIMEOUT" default:"15s"`
	WebhookSecret     string        `envconfig:"POSTERLOFT_FULFILLMENT_WEBHOOK_SECRET"`
	RequireSignature  bool          `envconfig:"POSTERLOFT_FULFILLMENT_REQUIRE_SIGNATURE" default:"false"`
	SKUMap            string        `envconfig:"POSTERLOFT_PRODIGI_SKU_MAP"`
	MerchantRefPrefix string        `envconfig:"POSTERLOFT_MERCHANT_REFERENCE_PREFIX" default:"stripe-"`
}

// SKUOverrides parses the "paper:size=SKU,..." override list.
func (f FulfillmentConfig) SKUOverrides() (map[string]string, error) {
	out := map[string]string{}
	raw := strings.TrimSpace(f.SKUMap)
	if raw == "" {
		return out, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, sku, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(key) == "" || strings.TrimSpace(sku) == "" {
			return nil, fmt.Errorf("%s: malformed entry %q (want paper:size=SKU)", EnvFulfillmentSKUMap, entry)
		}
		if !strings.Contains(key, ":") {
			return nil, fmt.Errorf("%s: key %q must be paper:size", EnvFulfillmentSKUMap, key)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(sku)
	}
	return out, nil
}

type SendgridConfig struct {
	APIKey      string `envconfig:"POSTERLOFT_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"POSTERLOFT_SENDGRID_FROM_EMAIL" default:"orders@posterloft.shop"`
	FromName    string `envconfig:"POSTERLOFT_SENDGRID_FROM_NAME" default:"Posterloft"`
}

func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type CatalogConfig struct {
	Path string `envconfig:"POSTERLOFT_CATALOG_PATH"`
}

type WebhooksConfig struct {
	EventGuardTTL time.Duration `envconfig:"POSTERLOFT_WEBHOOK_EVENT_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"POSTERLOFT_AUTO_MIGRATE" default:"false"`
	Metrics     bool `envconfig:"POSTERLOFT_METRICS_ENABLED" default:"true"`
}

var errLegacyDSN = errors.New("database connection settings are incomplete")

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
		return fmt.Errorf("%w: either %s or %s are required", errLegacyDSN, EnvDBDSN, strings.Join(missing, ", "))
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
