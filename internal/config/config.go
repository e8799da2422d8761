package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port string

	// Store selects the backend: "postgres" (default) or "memory".
	Store string

	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	JWTSecret   string
	TokenTTL    time.Duration
	BcryptCost  int
	FrontendURL string

	// MaxConns caps concurrent client connections on the listener.
	MaxConns int

	// Per-IP request limits over RateWindow. Zero disables a limit.
	RateLimit      int
	LoginRateLimit int
	RateWindow     time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		Store:       strings.ToLower(getEnv("STORE", StorePostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnvInt("DB_PORT", 5432),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      getEnv("DB_NAME", "shared_tasks"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TokenTTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),
		BcryptCost:  getEnvInt("BCRYPT_COST", 10),
		FrontendURL: getEnv("FRONTEND_URL", "*"),
		MaxConns:    getEnvInt("MAX_CONNS", 256),

		RateLimit:      getEnvInt("RATE_LIMIT", 100),
		LoginRateLimit: getEnvInt("LOGIN_RATE_LIMIT", 10),
		RateWindow:     getEnvDuration("RATE_WINDOW", 15*time.Minute),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST out of range: %d", cfg.BcryptCost)
	}
	if cfg.RateLimit < 0 || cfg.LoginRateLimit < 0 {
		return nil, fmt.Errorf("rate limits must not be negative: RATE_LIMIT=%d LOGIN_RATE_LIMIT=%d", cfg.RateLimit, cfg.LoginRateLimit)
	}
	if cfg.RateWindow <= 0 {
		return nil, fmt.Errorf("RATE_WINDOW must be positive, got %s", cfg.RateWindow)
	}
	return cfg, nil
}

func (c *Config) ConnString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Addr() string { return ":" + c.Port }

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}
