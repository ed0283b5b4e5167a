package config

import (
	"errors"
	"os"
	"time"

	"github.com/qs-lzh/seat-booking/internal/util"
)

const (
	defaultAddr            = ":4000"
	defaultDatabaseDSN     = "booking.db"
	defaultHoldTTL         = 5 * time.Minute
	defaultPaymentDeadline = 15 * time.Minute
	defaultSweepInterval   = 30 * time.Second
)

type Config struct {
	Env         string
	DatabaseDSN string
	Addr        string
	CacheURL    string
	MQURL       string

	HoldTTL         time.Duration
	PaymentDeadline time.Duration
	SweepInterval   time.Duration

	Gateway GatewayConfig
}

// GatewayConfig holds the payment gateway endpoint and the secret shared
// with it for signing requests and verifying callbacks.
type GatewayConfig struct {
	BaseURL   string
	Secret    string
	ReturnURL string
	CancelURL string
}

func LoadConfig() (*Config, error) {
	if err := util.LoadEnv(); err != nil {
		return nil, err
	}
	return &Config{
		Env:             envOr("APP_ENV", "dev"),
		DatabaseDSN:     envOr("DATABASE_DSN", defaultDatabaseDSN),
		Addr:            envOr("ADDR", defaultAddr),
		CacheURL:        os.Getenv("CACHE_URL"),
		MQURL:           os.Getenv("RABBIT_MQ_URL"),
		HoldTTL:         envDuration("HOLD_TTL", defaultHoldTTL),
		PaymentDeadline: envDuration("PAYMENT_DEADLINE", defaultPaymentDeadline),
		SweepInterval:   envDuration("SWEEP_INTERVAL", defaultSweepInterval),
		Gateway: GatewayConfig{
			BaseURL:   os.Getenv("GATEWAY_URL"),
			Secret:    os.Getenv("GATEWAY_SECRET"),
			ReturnURL: os.Getenv("GATEWAY_RETURN_URL"),
			CancelURL: os.Getenv("GATEWAY_CANCEL_URL"),
		},
	}, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// Validate rejects configs that cannot take real payments. Outside dev the
// gateway secret and URL are required; dev falls back to the mock gateway.
func (c *Config) Validate() error {
	if c.IsDev() {
		return nil
	}
	if c.Gateway.Secret == "" {
		return errors.New("GATEWAY_SECRET is required outside dev")
	}
	if c.Gateway.BaseURL == "" {
		return errors.New("GATEWAY_URL is required outside dev")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
