package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	// Optional durable ledger. Empty DSN disables it.
	PostgresDSN string

	JWTSecret string

	LogLevel  string
	LogFormat string
	LogFile   string

	// ServerSeed drives the provably-fair draws. When empty a random seed is
	// generated at startup and its hash published; set it explicitly to keep
	// draws verifiable across restarts.
	ServerSeed string

	SnowflakeNode int64

	BoardSize          int
	StartingBalance    float64
	EmptyCashoutRefund bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASSWORD", ""),
		RedisDB:   getEnvInt("REDIS_DB", 0),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogFile:   getEnv("LOG_FILE", ""),

		ServerSeed: getEnv("SERVER_SEED", ""),

		SnowflakeNode: int64(getEnvInt("SNOWFLAKE_NODE", 1)),

		BoardSize:          getEnvInt("MINEFIELD_BOARD_SIZE", 25),
		StartingBalance:    getEnvFloat("STARTING_BALANCE", 10000), // cents
		EmptyCashoutRefund: getEnvBool("EMPTY_CASHOUT_REFUND", true),
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret-do-not-use-in-production"
	}

	if cfg.BoardSize < 2 {
		return nil, fmt.Errorf("MINEFIELD_BOARD_SIZE must be at least 2, got %d", cfg.BoardSize)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
