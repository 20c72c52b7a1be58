package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	DatabaseURL        string        `env:"DATABASE_URL" envDefault:"file:telemetry.sqlite"`
	AppEnv             string        `env:"APP_ENV" envDefault:"local"`
	BaseURL            string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	CollectorURL       string        `env:"COLLECTOR_URL" envDefault:"http://localhost:8080"`
	AdminAPIToken      string        `env:"ADMIN_API_TOKEN"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/auth/google/callback"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"secret"`
	FrontendURL        string        `env:"FRONTEND_URL" envDefault:"http://localhost:8080/admin/insights"`
	AllowedEmails      []string      `env:"ALLOWED_EMAILS" envSeparator:","`
	AllowedOrigins     []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	IPHashSalt         string        `env:"IP_HASH_SALT" envDefault:"default-salt-change-in-production"`
	GDPRAnonymization  bool          `env:"ENABLE_GDPR_ANONYMIZATION" envDefault:"false"`
	HeartbeatInterval  time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"10s"`
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	cfg, err := Parse()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
