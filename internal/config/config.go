// Package config loads runtime settings from the environment.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	devJWTSecret      = "dev-session-secret-change-me"
	devEncryptionKey  = "6465762d656e6372797074696f6e2d6b65792d33322d62797465732d21212121"
	defaultGraphURL   = "https://graph.facebook.com"
	defaultRCServer   = "https://platform.ringcentral.com"
	defaultConfidoURL = "https://api.confidolegal.com/graphql"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Meta        MetaConfig
	RingCentral RingCentralConfig
	Confido     ConfidoConfig
	Relay       RelayConfig
	Redis       RedisConfig
	RabbitMQ    RabbitMQConfig
	Automation  AutomationConfig
	RateLimit   RateLimitConfig
	Intake      IntakeConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	PublicURL string
	LogLevel  string
	WebDir    string
}

// IsProduction reports whether APP_ENV is production
func (s ServerConfig) IsProduction() bool {
	return s.Env == "production"
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type AuthConfig struct {
	JWTSecret          string
	SessionTTL         time.Duration
	CookieSecure       bool
	VerificationTTL    time.Duration
	TokenEncryptionKey string
}

type MetaConfig struct {
	AppID        string
	AppSecret    string
	VerifyToken  string
	RedirectURL  string
	GraphVersion string
	GraphURL     string
}

// Enabled reports whether the Meta app credentials are present
func (m MetaConfig) Enabled() bool {
	return m.AppID != "" && m.AppSecret != ""
}

type RingCentralConfig struct {
	ServerURL         string
	ClientID          string
	ClientSecret      string
	JWT               string
	FromNumber        string
	VerificationToken string
	CallLogSchedule   string
}

// Enabled reports whether RingCentral credentials are present
func (r RingCentralConfig) Enabled() bool {
	return r.ClientID != "" && r.ClientSecret != "" && r.JWT != ""
}

type ConfidoConfig struct {
	APIURL        string
	APIKey        string
	WebhookSecret string
}

type RelayConfig struct {
	WebhookURL string
	Secret     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type AutomationConfig struct {
	DidNotHireGrace time.Duration
	SweepSchedule   string
}

type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

type IntakeConfig struct {
	SharedSecret string
}

// Load reads .env (optional) and the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using process environment")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnv("PORT", "3001"),
			Env:       getEnv("APP_ENV", "development"),
			PublicURL: strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:3001"), "/"),
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			WebDir:    getEnv("WEB_DIR", "./web"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "4000"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "lawcrm"),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", ""),
			SessionTTL:         getEnvDuration("SESSION_TTL", 7*24*time.Hour),
			CookieSecure:       getEnvBool("COOKIE_SECURE", false),
			VerificationTTL:    getEnvDuration("VERIFICATION_TTL", 24*time.Hour),
			TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),
		},
		Meta: MetaConfig{
			AppID:        getEnv("META_APP_ID", ""),
			AppSecret:    getEnv("META_APP_SECRET", ""),
			VerifyToken:  getEnv("META_VERIFY_TOKEN", ""),
			RedirectURL:  getEnv("META_REDIRECT_URL", ""),
			GraphVersion: getEnv("META_GRAPH_VERSION", "v21.0"),
			GraphURL:     strings.TrimRight(getEnv("META_GRAPH_URL", defaultGraphURL), "/"),
		},
		RingCentral: RingCentralConfig{
			ServerURL:         strings.TrimRight(getEnv("RC_SERVER_URL", defaultRCServer), "/"),
			ClientID:          getEnv("RC_CLIENT_ID", ""),
			ClientSecret:      getEnv("RC_CLIENT_SECRET", ""),
			JWT:               getEnv("RC_JWT", ""),
			FromNumber:        getEnv("RC_FROM_NUMBER", ""),
			VerificationToken: getEnv("RC_VERIFICATION_TOKEN", ""),
			CallLogSchedule:   getEnv("RC_CALL_LOG_SCHEDULE", "*/15 * * * *"),
		},
		Confido: ConfidoConfig{
			APIURL:        getEnv("CONFIDO_API_URL", defaultConfidoURL),
			APIKey:        getEnv("CONFIDO_API_KEY", ""),
			WebhookSecret: getEnv("CONFIDO_WEBHOOK_SECRET", ""),
		},
		Relay: RelayConfig{
			WebhookURL: getEnv("AUTOMATION_WEBHOOK_URL", ""),
			Secret:     getEnv("AUTOMATION_WEBHOOK_SECRET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "crm.events"),
		},
		Automation: AutomationConfig{
			DidNotHireGrace: getEnvDuration("DID_NOT_HIRE_GRACE", 24*time.Hour),
			SweepSchedule:   getEnv("AUTOMATION_SWEEP_SCHEDULE", "*/1 * * * *"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			Capacity:       getEnvInt("RATE_LIMIT_CAPACITY", 10),
			RefillTokens:   getEnvInt("RATE_LIMIT_REFILL_TOKENS", 1),
			RefillInterval: getEnvDuration("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
			TTL:            getEnvDuration("RATE_LIMIT_TTL", 10*time.Minute),
			Prefix:         getEnv("RATE_LIMIT_PREFIX", "rl"),
		},
		Intake: IntakeConfig{
			SharedSecret: getEnv("INTAKE_SHARED_SECRET", ""),
		},
	}

	if cfg.Meta.RedirectURL == "" {
		cfg.Meta.RedirectURL = cfg.Server.PublicURL + "/api/auth/meta/callback"
	}

	if err := cfg.applySecretDefaults(); err != nil {
		return nil, err
	}
	cfg.normalizeRateLimit()

	return cfg, nil
}

func (c *Config) applySecretDefaults() error {
	if c.Auth.JWTSecret == "" {
		if c.Server.IsProduction() {
			return fmt.Errorf("JWT_SECRET environment variable is required in production")
		}
		log.Warn().Msg("⚠️  JWT_SECRET not set, using development secret")
		c.Auth.JWTSecret = devJWTSecret
	}
	if c.Auth.TokenEncryptionKey == "" {
		if c.Server.IsProduction() {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY environment variable is required in production")
		}
		c.Auth.TokenEncryptionKey = devEncryptionKey
	}
	if key, err := hex.DecodeString(c.Auth.TokenEncryptionKey); err != nil || len(key) != 32 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be 64 hex characters")
	}
	// unsigned payment webhooks would let anyone mark invoices paid
	if c.Confido.APIKey != "" && c.Confido.WebhookSecret == "" {
		if c.Server.IsProduction() {
			return fmt.Errorf("CONFIDO_WEBHOOK_SECRET environment variable is required when CONFIDO_API_KEY is set in production")
		}
		log.Warn().Msg("⚠️  CONFIDO_WEBHOOK_SECRET not set, Confido webhooks are not verified")
	}
	return nil
}

func (c *Config) normalizeRateLimit() {
	rl := &c.RateLimit
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	if rl.RefillInterval <= 0 {
		rl.RefillInterval = time.Second
	}
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
}

// DSN returns the go-sql-driver/mysql data source name
func (d DatabaseConfig) DSN(tlsName string) string {
	tlsParam := ""
	if tlsName != "" {
		tlsParam = "&tls=" + tlsName
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC%s",
		d.User, d.Password, d.Host, d.Port, d.Name, tlsParam)
}

// IsLocal reports whether the database host is the local machine
func (d DatabaseConfig) IsLocal() bool {
	return d.Host == "" || d.Host == "127.0.0.1" || d.Host == "localhost"
}

// String renders the configuration with secrets masked
func (c *Config) String() string {
	return fmt.Sprintf(
		"env=%s port=%s public_url=%s db=%s@%s:%s/%s jwt_secret=%s meta_app=%s meta_secret=%s rc_client=%s rc_secret=%s confido_key=%s redis=%s rabbitmq=%s",
		c.Server.Env, c.Server.Port, c.Server.PublicURL,
		c.Database.User, c.Database.Host, c.Database.Port, c.Database.Name,
		mask(c.Auth.JWTSecret), c.Meta.AppID, mask(c.Meta.AppSecret),
		c.RingCentral.ClientID, mask(c.RingCentral.ClientSecret), mask(c.Confido.APIKey),
		c.Redis.Addr, maskURL(c.RabbitMQ.URL),
	)
}

func mask(s string) string {
	if s == "" {
		return "<unset>"
	}
	return "****"
}

func maskURL(u string) string {
	if u == "" {
		return "<unset>"
	}
	at := strings.LastIndex(u, "@")
	scheme := strings.Index(u, "://")
	if at < 0 || scheme < 0 {
		return u
	}
	return u[:scheme+3] + "****" + u[at:]
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultVal
}
