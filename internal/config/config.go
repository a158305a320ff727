package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	//App
	Env string // dev / staging / prod
	//HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Primary store. Empty in dev means in-memory.
	DatabaseURL   string
	DBDebug       bool
	DBAutoMigrate bool

	// Cache / rate limiting. Empty RedisAddr means in-process LRU and no
	// rate limiting.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Signing keys
	JWTSecret       string
	JWTKeyID        string
	JWTPreviousKeys string // kid=secret[@RFC3339],...
	JWTKeyGrace     time.Duration
	JWTKeysFile     string
	JWTIssuer       string
	TokenLeeway     time.Duration

	// Token lifetimes
	AccessTokenTTL  time.Duration
	ConfirmTokenTTL time.Duration
	ResetTokenTTL   time.Duration

	IdentityCacheTTL  time.Duration
	IdentityCacheSize int
	BcryptCost        int

	// Links mailed to users; the token is appended.
	ConfirmBaseURL string
	ResetBaseURL   string

	// Mail
	MailGateway    string // log | smtp | rabbitmq
	MailFrom       string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	RabbitURL      string
	MailWorkers    int
	MailQueueSize  int
	MailMaxRetries int

	JanitorSchedule string

	SeedAdminEmail    string
	SeedAdminPassword string
}

const (
	MailGatewayLog    = "log"
	MailGatewaySMTP   = "smtp"
	MailGatewayRabbit = "rabbitmq"
)

func (c *Config) IsDev() bool { return c.Env == "dev" }

// Load reads the environment (and .env when present). Outside dev every
// backing service must be configured explicitly.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("APP_ENV", "dev"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTKeyID:        getEnv("JWT_KEY_ID", "k1"),
		JWTPreviousKeys: os.Getenv("JWT_PREVIOUS_KEYS"),
		JWTKeysFile:     os.Getenv("JWT_KEYS_FILE"),
		JWTIssuer:       getEnv("JWT_ISSUER", "contacts-api"),

		MailGateway:  strings.ToLower(getEnv("MAIL_GATEWAY", MailGatewayLog)),
		MailFrom:     os.Getenv("MAIL_FROM"),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		RabbitURL:    os.Getenv("RABBIT_URL"),

		JanitorSchedule: getEnv("JANITOR_SCHEDULE", "@every 10m"),

		SeedAdminEmail:    strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL")),
		SeedAdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
		def time.Duration
	}{
		{"HTTP_READ_TIMEOUT", &cfg.HTTPReadTimeout, 10 * time.Second},
		{"HTTP_WRITE_TIMEOUT", &cfg.HTTPWriteTimeout, 30 * time.Second},
		{"HTTP_IDLE_TIMEOUT", &cfg.HTTPIdleTimeout, time.Minute},
		{"JWT_KEY_GRACE", &cfg.JWTKeyGrace, 24 * time.Hour},
		{"TOKEN_LEEWAY", &cfg.TokenLeeway, 5 * time.Second},
		{"ACCESS_TOKEN_TTL", &cfg.AccessTokenTTL, 15 * time.Minute},
		{"CONFIRM_TOKEN_TTL", &cfg.ConfirmTokenTTL, 7 * 24 * time.Hour},
		{"RESET_TOKEN_TTL", &cfg.ResetTokenTTL, 30 * time.Minute},
		{"IDENTITY_CACHE_TTL", &cfg.IdentityCacheTTL, 5 * time.Minute},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key string
		dst *int
		def int
	}{
		{"REDIS_DB", &cfg.RedisDB, 0},
		{"IDENTITY_CACHE_SIZE", &cfg.IdentityCacheSize, 10000},
		{"BCRYPT_COST", &cfg.BcryptCost, 12},
		{"SMTP_PORT", &cfg.SMTPPort, 587},
		{"MAIL_WORKERS", &cfg.MailWorkers, 2},
		{"MAIL_QUEUE_SIZE", &cfg.MailQueueSize, 100},
		{"MAIL_MAX_RETRIES", &cfg.MailMaxRetries, 5},
	}
	for _, i := range ints {
		if *i.dst, err = getInt(i.key, i.def); err != nil {
			return nil, err
		}
	}

	if cfg.DBDebug, err = getBool("DB_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate, err = getBool("DB_AUTO_MIGRATE", true); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvDefaults fills local-only defaults in dev and fails fast on the
// values production must set explicitly.
func (c *Config) applyEnvDefaults() error {
	if c.IsDev() {
		if c.ConfirmBaseURL = os.Getenv("CONFIRM_BASE_URL"); c.ConfirmBaseURL == "" {
			c.ConfirmBaseURL = "http://localhost" + c.HTTPAddr + "/auth/confirm/"
		}
		if c.ResetBaseURL = os.Getenv("RESET_BASE_URL"); c.ResetBaseURL == "" {
			c.ResetBaseURL = "http://localhost" + c.HTTPAddr + "/auth/reseted_password/"
		}
		return nil
	}

	var err error
	if c.ConfirmBaseURL, err = mustEnv("CONFIRM_BASE_URL"); err != nil {
		return err
	}
	if c.ResetBaseURL, err = mustEnv("RESET_BASE_URL"); err != nil {
		return err
	}
	if c.DatabaseURL, err = mustEnv("DATABASE_URL"); err != nil {
		return err
	}
	if c.RedisAddr, err = mustEnv("REDIS_ADDR"); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" && c.JWTKeysFile == "" {
		return fmt.Errorf("missing required env var: JWT_SECRET (or JWT_KEYS_FILE)")
	}
	if c.DatabaseURL != "" {
		if err := validatePostgresDSN(c.DatabaseURL); err != nil {
			return err
		}
	}
	for key, u := range map[string]string{"CONFIRM_BASE_URL": c.ConfirmBaseURL, "RESET_BASE_URL": c.ResetBaseURL} {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("invalid %s: %q", key, u)
		}
	}

	switch c.MailGateway {
	case MailGatewayLog:
	case MailGatewaySMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("missing required env var: SMTP_HOST")
		}
		if c.MailFrom == "" {
			return fmt.Errorf("missing required env var: MAIL_FROM")
		}
	case MailGatewayRabbit:
		if c.RabbitURL == "" {
			return fmt.Errorf("missing required env var: RABBIT_URL")
		}
	default:
		return fmt.Errorf("invalid MAIL_GATEWAY %q (want log, smtp or rabbitmq)", c.MailGateway)
	}

	if c.MailWorkers < 1 {
		return fmt.Errorf("MAIL_WORKERS must be >= 1")
	}
	if c.SeedAdminEmail != "" && c.SeedAdminPassword == "" {
		return fmt.Errorf("missing required env var: SEED_ADMIN_PASSWORD")
	}
	return nil
}

// validatePostgresDSN accepts postgres:// URLs naming a database, or
// key=value DSNs with dbname.
func validatePostgresDSN(dsn string) error {
	if !strings.Contains(dsn, "://") {
		if strings.Contains(dsn, "dbname=") {
			return nil
		}
		return fmt.Errorf("invalid DATABASE_URL: missing dbname")
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("invalid DATABASE_URL scheme %q", u.Scheme)
	}
	if strings.Trim(u.Path, "/") == "" {
		return fmt.Errorf("invalid DATABASE_URL: missing database name")
	}
	return nil
}

func mustEnv(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return v, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}
