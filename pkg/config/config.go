package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "GALLERY_DB_DSN"
	EnvDBHost = "GALLERY_DB_HOST"
	EnvDBUser = "GALLERY_DB_USER"
	EnvDBName = "GALLERY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Site         SiteConfig
	DB           DBConfig
	Redis        RedisConfig
	PayPal       PayPalConfig
	Zoho         ZohoConfig
	Operator     OperatorConfig
	Checkout     CheckoutConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GALLERY_APP_ENV" required:"true"`
	Port         string `envconfig:"GALLERY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GALLERY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GALLERY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// SiteConfig carries the public-facing host used for approval redirects and
// the links embedded in transactional mail.
type SiteConfig struct {
	BaseURL   string `envconfig:"GALLERY_SITE_BASE_URL" default:"https://www.thelostandunfounds.com"`
	BrandName string `envconfig:"GALLERY_SITE_BRAND_NAME" default:"THE LOST+UNFOUNDS"`
}

type DBConfig struct {
	DSN    string `envconfig:"GALLERY_DB_DSN"`
	Driver string `envconfig:"GALLERY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GALLERY_DB_HOST"`
	LegacyPort     int    `envconfig:"GALLERY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GALLERY_DB_USER"`
	LegacyPassword string `envconfig:"GALLERY_DB_PASSWORD"`
	LegacyName     string `envconfig:"GALLERY_DB_NAME"`
	LegacySSLMode  string `envconfig:"GALLERY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GALLERY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GALLERY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GALLERY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GALLERY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GALLERY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GALLERY_REDIS_ADDR"`
	Password     string        `envconfig:"GALLERY_REDIS_PASSWORD"`
	DB           int           `envconfig:"GALLERY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GALLERY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GALLERY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GALLERY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GALLERY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GALLERY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PayPalConfig struct {
	Env          string `envconfig:"GALLERY_PAYPAL_ENVIRONMENT" default:"sandbox"`
	ClientID     string `envconfig:"GALLERY_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"GALLERY_PAYPAL_CLIENT_SECRET"`
	// BaseURL overrides the environment-derived API host; tests only.
	BaseURL string `envconfig:"GALLERY_PAYPAL_BASE_URL"`
}

// Configured reports whether the gateway credentials are usable. Checkout
// degrades to a per-request config error when they are not.
func (p PayPalConfig) Configured() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type ZohoConfig struct {
	ClientID     string `envconfig:"GALLERY_ZOHO_CLIENT_ID"`
	ClientSecret string `envconfig:"GALLERY_ZOHO_CLIENT_SECRET"`
	RefreshToken string `envconfig:"GALLERY_ZOHO_REFRESH_TOKEN"`
	FromEmail    string `envconfig:"GALLERY_ZOHO_FROM_EMAIL"`
	AccountID    string `envconfig:"GALLERY_ZOHO_ACCOUNT_ID"`
	// Base URL overrides; tests only.
	AccountsBaseURL string `envconfig:"GALLERY_ZOHO_ACCOUNTS_BASE_URL"`
	MailBaseURL     string `envconfig:"GALLERY_ZOHO_MAIL_BASE_URL"`
}

// Configured reports whether the mail credentials are usable. Notification is
// best-effort, so a blank config degrades sends instead of failing boot.
func (z ZohoConfig) Configured() bool {
	return z.ClientID != "" && z.ClientSecret != "" && z.RefreshToken != "" && z.FromEmail != ""
}

type OperatorConfig struct {
	JWTSecret string `envconfig:"GALLERY_OPERATOR_JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"GALLERY_OPERATOR_JWT_ISSUER" default:"gallery-backend"`
}

type CheckoutConfig struct {
	ReferenceTTL        time.Duration `envconfig:"GALLERY_CHECKOUT_REFERENCE_TTL" default:"1h"`
	EntitlementExpiry   time.Duration `envconfig:"GALLERY_CHECKOUT_ENTITLEMENT_EXPIRY" default:"48h"`
	SingleFallbackCents int           `envconfig:"GALLERY_CHECKOUT_SINGLE_FALLBACK_CENTS" default:"500"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GALLERY_AUTO_MIGRATE" default:"false"`
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
