package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
)

const (
	DefaultDailyLimit   = 10
	DefaultHistoryLimit = 50
	DefaultAddr         = "0.0.0.0:8080"
)

type Config struct {
	Logs   LogConfig
	DB     DBConfig
	Stripe StripeConfig
	Auth   AuthConfig
	Usage  UsageConfig
	HTTP   HTTPConfig
}

type LogConfig struct {
	Style string
	Level string
}

// DBConfig selects the database driver. Driver is "postgres" (default) or
// "sqlite"; for sqlite, Name is the file path (":memory:" works for tests).
type DBConfig struct {
	Driver   string
	Username string
	Password string
	URL      string
	Port     string
	Name     string
	SSLMode  string
}

type StripeConfig struct {
	SecretKey                string
	WebhookSecret            string
	FrontendURL              string
	PriceIDProMonthly        string
	PriceIDProYearly         string
	PriceIDEnterpriseMonthly string
	PriceIDEnterpriseYearly  string
}

type AuthConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// JWTSecret switches verification to HS256 with a shared secret.
	JWTSecret string
}

type UsageConfig struct {
	DailyLimit      int
	OperationLimits map[string]int
	Location        *time.Location
	HistoryLimit    int
	// RefreshInterval and SubscriptionTTL bound how long cached usage and
	// tiers are trusted; zero keeps the package defaults.
	RefreshInterval time.Duration
	SubscriptionTTL time.Duration
}

type HTTPConfig struct {
	Addr string
}

func LoadConfig() (*Config, error) {
	dailyLimit, err := intFromEnv("USAGE_DAILY_LIMIT", DefaultDailyLimit)
	if err != nil {
		return nil, err
	}

	historyLimit, err := intFromEnv("HISTORY_LIMIT", DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	opLimits, err := parseOperationLimits(os.Getenv("USAGE_OPERATION_LIMITS"))
	if err != nil {
		return nil, err
	}

	refresh, err := durationFromEnv("USAGE_REFRESH_INTERVAL")
	if err != nil {
		return nil, err
	}

	subTTL, err := durationFromEnv("SUBSCRIPTION_CACHE_TTL")
	if err != nil {
		return nil, err
	}

	loc := time.Local
	if tz := strings.TrimSpace(os.Getenv("USAGE_TIMEZONE")); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("USAGE_TIMEZONE: %w", err)
		}
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = DefaultAddr
	}

	cfg := &Config{
		Logs: LogConfig{
			Style: os.Getenv("LOG_STYLE"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		DB: DBConfig{
			Driver:   os.Getenv("DB_DRIVER"),
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     os.Getenv("POSTGRES_PORT"),
			Name:     os.Getenv("POSTGRES_DB"),
			SSLMode:  os.Getenv("POSTGRES_SSLMODE"),
		},
		Stripe: StripeConfig{
			SecretKey:                os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:            os.Getenv("STRIPE_WEBHOOK_SECRET"),
			FrontendURL:              os.Getenv("FRONTEND_URL"),
			PriceIDProMonthly:        os.Getenv("STRIPE_PRICE_ID_PRO_MONTHLY"),
			PriceIDProYearly:         os.Getenv("STRIPE_PRICE_ID_PRO_YEARLY"),
			PriceIDEnterpriseMonthly: os.Getenv("STRIPE_PRICE_ID_ENTERPRISE_MONTHLY"),
			PriceIDEnterpriseYearly:  os.Getenv("STRIPE_PRICE_ID_ENTERPRISE_YEARLY"),
		},
		Auth: AuthConfig{
			Issuer:    strings.TrimSpace(os.Getenv("AUTH_ISSUER")),
			Audience:  strings.TrimSpace(os.Getenv("AUTH_AUDIENCE")),
			JWKSURL:   strings.TrimSpace(os.Getenv("AUTH_JWKS_URL")),
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		},
		Usage: UsageConfig{
			DailyLimit:      dailyLimit,
			OperationLimits: opLimits,
			Location:        loc,
			HistoryLimit:    historyLimit,
			RefreshInterval: refresh,
			SubscriptionTTL: subTTL,
		},
		HTTP: HTTPConfig{
			Addr: addr,
		},
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "postgres"
	}

	return cfg, nil
}

// DSN builds the driver-specific data source name.
func (c DBConfig) DSN() string {
	if c.Driver == "sqlite" {
		if c.Name == "" {
			return "writeassist.db"
		}
		return c.Name
	}
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		c.Username,
		c.Password,
		c.URL,
		c.Port,
		c.Name,
	)
	if c.SSLMode != "" {
		dsn += "?sslmode=" + c.SSLMode
	}
	return dsn
}

func intFromEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("error converting string to int: %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return n, nil
}

func durationFromEnv(key string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// parseOperationLimits reads "paraphrase=10,ocr=5" style overrides.
func parseOperationLimits(raw string) (map[string]int, error) {
	out := map[string]int{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("USAGE_OPERATION_LIMITS: malformed entry %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("USAGE_OPERATION_LIMITS: bad limit for %q", name)
		}
		f, err := plans.ParseFeature(name)
		if err != nil {
			return nil, fmt.Errorf("USAGE_OPERATION_LIMITS: %w", err)
		}
		out[f.String()] = n
	}
	return out, nil
}
