package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port              string    `yaml:"port" env:"PORT" env-default:"8080"`
	Database          Database  `yaml:"database"`
	AutoMigrate       bool      `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
	StrictTransitions bool      `yaml:"strict_transitions" env:"STRICT_TRANSITIONS"`
	TicketPrice       float64   `yaml:"ticket_price" env:"TICKET_PRICE" env-default:"10.00"`
	Timezone          string    `yaml:"timezone" env:"TIMEZONE" env-default:"UTC"`
	RateLimit         RateLimit `yaml:"rate_limit"`
	Redis             Redis     `yaml:"redis"`
	Log               Log       `yaml:"log"`
	Telemetry         Telemetry `yaml:"telemetry"`
}

type Database struct {
	DSN      string `yaml:"dsn" env:"DB_DSN"`
	User     string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"DB_PASS" env-default:"0000"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"ticketsdb"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
}

type RateLimit struct {
	PerMinute int `yaml:"per_minute" env:"RATE_LIMIT_PER_MIN" env-default:"120"`
	Burst     int `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"30"`
}

type Redis struct {
	// Addr enables Idempotency-Key support when set.
	Addr                  string `yaml:"addr" env:"REDIS_ADDR"`
	Password              string `yaml:"password" env:"REDIS_PASSWORD"`
	DB                    int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	IdempotencyTTLSeconds int    `yaml:"idempotency_ttl_seconds" env:"IDEMPOTENCY_TTL_SECONDS" env-default:"86400"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type Telemetry struct {
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure bool   `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads CONFIG_PATH (config.yaml by default) when it exists; environment variables always win.
func Load() (Config, error) {
	// Booleans defaulting to true are preset here: env-default would also replace a yaml false.
	cfg := Config{
		AutoMigrate:       true,
		StrictTransitions: true,
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read config from env: %w", err)
		}
	} else {
		return Config{}, fmt.Errorf("stat config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TicketPrice <= 0 {
		return fmt.Errorf("TICKET_PRICE must be greater than zero")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}
	return nil
}

// ConnString returns DB_DSN, or a URL assembled from the individual DB_* settings.
func (d Database) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Location is the timezone that decides the calendar day of ticket codes.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.Redis.IdempotencyTTLSeconds) * time.Second
}
