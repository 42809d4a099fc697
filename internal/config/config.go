package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all runtime configuration, populated from the environment.
// Load .env with godotenv in main before calling Load.
type Config struct {
	Port     string
	LogLevel string
	LogFile  string

	// Database
	DatabaseURL string

	// Auth
	JWTSecret      []byte
	AccessTokenTTL time.Duration
	RefreshTTL     time.Duration

	// Redis (presence)
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Blob storage
	AWSRegion  string
	AWSBucket  string
	CDNBaseURL string
}

// Load reads configuration from environment variables.
// JWT_SECRET is the only required variable.
func Load() (*Config, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// Fallback to individual components
		host := getEnvOrDefault("DB_HOST", "localhost")
		port := getEnvOrDefault("DB_PORT", "5432")
		user := getEnvOrDefault("DB_USER", "postgres")
		password := getEnvOrDefault("DB_PASSWORD", "")
		dbname := getEnvOrDefault("DB_NAME", "openforum")
		sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	return &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:        getEnvOrDefault("LOG_FILE", "server.log"),
		DatabaseURL:    databaseURL,
		JWTSecret:      []byte(secret),
		AccessTokenTTL: getDurationOrDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:     getDurationOrDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		RedisHost:      getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:      getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		AWSRegion:      os.Getenv("AWS_REGION"),
		AWSBucket:      os.Getenv("AWS_BUCKET"),
		CDNBaseURL:     os.Getenv("CDN_BASE_URL"),
	}, nil
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
