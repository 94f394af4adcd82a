// Package config loads the booking client configuration from the environment.
//
// A .env file in the working directory is read first when present; variables
// already set in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIURL is the hosted booking backend.
const DefaultAPIURL = "https://smart-booking-backend-production.up.railway.app"

// Config holds application configuration
type Config struct {
	APIURL         string
	Timeout        time.Duration
	TokenFile      string
	RedisURL       string
	LogLevel       string
	LogPretty      bool
	RateLimit      float64
	Tracing        bool
	ServiceID      string
	RevalidateSlot bool
}

// Load reads the given env files (default: .env), then the environment.
// Missing env files are not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() *Config {
	return &Config{
		APIURL:         strings.TrimRight(getEnv("BOOKING_API_URL", DefaultAPIURL), "/"),
		Timeout:        getEnvAsDuration("BOOKING_TIMEOUT", 10*time.Second),
		TokenFile:      getEnv("BOOKING_TOKEN_FILE", ""),
		RedisURL:       getEnv("BOOKING_REDIS_URL", ""),
		LogLevel:       getEnv("BOOKING_LOG_LEVEL", "warn"),
		LogPretty:      getEnvAsBool("BOOKING_LOG_PRETTY", true),
		RateLimit:      getEnvAsFloat("BOOKING_RATE_LIMIT", 10),
		Tracing:        getEnvAsBool("BOOKING_TRACING", false),
		ServiceID:      getEnv("BOOKING_SERVICE_ID", ""),
		RevalidateSlot: getEnvAsBool("BOOKING_REVALIDATE_SLOT", false),
	}
}

// Validate checks the values FromEnv cannot default.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BOOKING_API_URL must be an absolute URL (got %q)", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("BOOKING_TIMEOUT must be positive (got %s)", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("BOOKING_RATE_LIMIT must not be negative (got %g)", c.RateLimit)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
