package config

import (
	"fmt"
	"os"
	"strings"
)

// Config carries everything the server needs from the environment.
type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	TokenSecret    string
	RedisURL       string
	AllowedOrigins []string
	StaticDir      string
	BaseURL        string
	LogLevel       string
	LogFormat      string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

// defaultOrigins is the allow-list of the companion frontend.
var defaultOrigins = []string{
	"http://localhost:3000",
	"https://kutter.onrender.com",
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		TokenSecret: getEnv("TOKEN_SECRET", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		StaticDir:   getEnv("STATIC_DIR", "web/static"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		SMTPHost:    getEnv("SMTP_HOST", ""),
		SMTPPort:    getEnv("SMTP_PORT", "587"),
		SMTPUser:    getEnv("SMTP_USER", ""),
		SMTPPass:    getEnv("SMTP_PASS", ""),
		SMTPFrom:    getEnv("SMTP_FROM", ""),
	}

	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	} else {
		cfg.AllowedOrigins = defaultOrigins
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}
	if len(cfg.TokenSecret) < 32 {
		return nil, fmt.Errorf("TOKEN_SECRET must be at least 32 characters")
	}

	// SMTP settings must be set together or not at all.
	if cfg.SMTPHost != "" || cfg.SMTPUser != "" || cfg.SMTPFrom != "" {
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("SMTP_HOST is required when SMTP is configured")
		}
		if cfg.SMTPFrom == "" {
			return nil, fmt.Errorf("SMTP_FROM is required when SMTP is configured")
		}
	}

	return cfg, nil
}

// IsProduction reports whether the app runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
