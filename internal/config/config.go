package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "SHOPFRONT"

type Config struct {
	Host     string `envconfig:"HOST" default:"0.0.0.0"`
	Port     string `envconfig:"PORT" default:"5000"`
	DBDSN    string `envconfig:"DB_DSN" default:"shopping-site-data.db"`
	LogFile  string `envconfig:"LOG_FILE" default:"./shopfront.log"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// json | console
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:5000"`
	SuccessPath string `envconfig:"SUCCESS_PATH" default:"/success"`
	CancelPath  string `envconfig:"CANCEL_PATH" default:"/cancel"`
	AdminID     int64  `envconfig:"ADMIN_ID" default:"1"`
	Metrics     bool   `envconfig:"METRICS" default:"true"`

	Stripe    StripeConfig
	Redis     RedisConfig
	Publisher PublisherConfig
}

type StripeConfig struct {
	APIKey      string        `envconfig:"KEY"`
	Env         string        `envconfig:"ENV" default:"test"`
	CallTimeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	// Empty means in-process locks.
	URL     string        `envconfig:"URL"`
	LockTTL time.Duration `envconfig:"LOCK_TTL" default:"30s"`
}

type PublisherConfig struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	BatchSize    int           `envconfig:"BATCH_SIZE" default:"20"`
	MaxAttempts  int           `envconfig:"MAX_ATTEMPTS" default:"8"`
	MaxBackoff   time.Duration `envconfig:"MAX_BACKOFF" default:"5m"`
}

// Load reads an optional .env file and then the SHOPFRONT_* environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("%s_BASE_URL: %w", EnvPrefix, err)
	}
	if c.AdminID <= 0 {
		return fmt.Errorf("%s_ADMIN_ID must be positive", EnvPrefix)
	}
	if c.Stripe.CallTimeout <= 0 {
		return fmt.Errorf("%s_STRIPE_TIMEOUT must be positive", EnvPrefix)
	}
	return nil
}

func (c Config) Addr() string { return c.Host + ":" + c.Port }

func (c Config) SuccessURL() string {
	// {CHECKOUT_SESSION_ID} is expanded by the processor.
	return strings.TrimRight(c.BaseURL, "/") + c.SuccessPath + "?session_id={CHECKOUT_SESSION_ID}"
}

func (c Config) CancelURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.CancelPath
}
