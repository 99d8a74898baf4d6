package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every setting the table cart server reads at startup.
// Values come from an optional YAML file and are overridden by env vars.
type Config struct {
	Env       string    `yaml:"env" env:"APP_ENV" env-default:"development"`
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Session   Session   `yaml:"session"`
	Approval  Approval  `yaml:"approval"`
	Auth      Auth      `yaml:"auth"`
	Events    Events    `yaml:"events"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Log       Log       `yaml:"log"`
}

type Server struct {
	Port           string   `yaml:"port" env:"PORT" env-default:"8080"`
	GinMode        string   `yaml:"gin_mode" env:"GIN_MODE" env-default:"debug"`
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES" env-separator:"," env-default:"127.0.0.1"`
	AllowedOrigin  string   `yaml:"allowed_origin" env:"CORS_ALLOWED_ORIGIN" env-default:"*"`
}

type Database struct {
	// Driver is one of mysql, postgres or sqlite.
	Driver     string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`
	DSN        string `yaml:"dsn" env:"DB_DSN" env-default:"tablecart.db"`
	Migrations bool   `yaml:"migrations" env:"DB_MIGRATIONS" env-default:"false"`
}

type Session struct {
	Secret string `yaml:"secret" env:"SESSION_SECRET" env-default:"tablecart-session-dev-secret"`
}

type Approval struct {
	TTL time.Duration `yaml:"ttl" env:"APPROVAL_TTL" env-default:"20s"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"tablecart-staff-dev-secret"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"JWT_TTL" env-default:"24h"`
}

type Events struct {
	// Driver is one of kafka, nats or none. The websocket hub is always fed.
	Driver  string   `yaml:"driver" env:"EVENTS_DRIVER" env-default:"none"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	NATSURL string   `yaml:"nats_url" env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`
	Topic   string   `yaml:"topic" env:"EVENTS_TOPIC" env-default:"table-orders"`
}

type RateLimit struct {
	Requests int           `yaml:"requests" env:"RATE_LIMIT_REQUESTS" env-default:"50"`
	Window   time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"1s"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// Load reads the file named by TABLECART_CONFIG_PATH when it is set and
// falls back to environment variables otherwise.
func Load() (*Config, error) {
	var cfg Config

	configPath := os.Getenv("TABLECART_CONFIG_PATH")
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env config: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for main: it exits on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
