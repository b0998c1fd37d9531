// Package config loads and validates the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds everything the posts service needs at startup.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Consul   ConsulConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

// DatabaseConfig holds Postgres connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	Username string
	Password string
	Schema   string
}

// RedisConfig holds cache connection parameters. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ConsulConfig holds service registration settings. An empty Addr disables registration.
type ConsulConfig struct {
	Addr  string
	Token string
}

// RequiredVars must be present before the service starts.
var RequiredVars = []string{
	"DB_HOST",
	"DB_DATABASE",
	"DB_USERNAME",
	"DB_PASSWORD",
}

// Load validates required variables and builds a Config with defaults applied.
func Load() (*Config, error) {
	if err := ValidateEnv(RequiredVars); err != nil {
		return nil, err
	}

	port, err := GetEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	redisDB, err := GetEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host:               GetEnvOrDefault("POSTS_SERVICE_HOST", "localhost"),
			Port:               port,
			ReadTimeout:        GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       GetEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:        GetEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			CORSAllowedOrigins: GetEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     GetEnvOrDefault("DB_PORT", "5432"),
			Name:     os.Getenv("DB_DATABASE"),
			Username: os.Getenv("DB_USERNAME"),
			Password: os.Getenv("DB_PASSWORD"),
			Schema:   GetEnvOrDefault("DB_SCHEMA", "public"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Consul: ConsulConfig{
			Addr:  os.Getenv("CONSUL_HTTP_ADDR"),
			Token: os.Getenv("CONSUL_HTTP_TOKEN"),
		},
	}, nil
}

// ValidateEnv validates that all required environment variables are set
func ValidateEnv(requiredVars []string) error {
	var missing []string

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missing = append(missing, varName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt parses an integer variable. A set but malformed value is an error.
func GetEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

// GetEnvDuration parses a time.Duration, falling back on empty or malformed values.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvList splits a comma separated variable, dropping blank entries.
func GetEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
