package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process configuration read from the environment
type Config struct {
	Port    string
	GinMode string

	// Database
	DatabaseURL string
	DataPath    string

	// Secrets
	JWTSecret       string
	APIMasterSecret string
	LinkSecret      string

	// Links
	PublicBaseURL    string
	TrackingTokenTTL time.Duration

	// Admin bootstrap
	AdminUsername string
	AdminPassword string

	MaxSearchSteps int
	CORSOrigins    []string
}

// LoadDotEnv loads the first .env found in the working directory or its parents.
// A missing file is not an error.
func LoadDotEnv() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Load reads the configuration after probing for a .env file
func Load() (*Config, error) {
	LoadDotEnv()
	return FromEnv()
}

// FromEnv reads the configuration from the current environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:            getEnvDefault("PORT", "8000"),
		GinMode:         os.Getenv("GIN_MODE"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DataPath:        getEnvDefault("DATA_PATH", "santa.db"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		APIMasterSecret: os.Getenv("API_MASTER_SECRET"),
		LinkSecret:      os.Getenv("LINK_SECRET"),
		PublicBaseURL:   strings.TrimRight(getEnvDefault("PUBLIC_BASE_URL", "http://localhost:8000"), "/"),
		AdminUsername:   getEnvDefault("ADMIN_USERNAME", "admin"),
		AdminPassword:   getEnvDefault("ADMIN_PASSWORD", "admin123"),
	}

	steps, err := strconv.Atoi(getEnvDefault("MAX_SEARCH_STEPS", "200000"))
	if err != nil || steps <= 0 {
		return nil, fmt.Errorf("invalid MAX_SEARCH_STEPS")
	}
	cfg.MaxSearchSteps = steps

	ttl, err := time.ParseDuration(getEnvDefault("TRACKING_TOKEN_TTL", "2160h"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("invalid TRACKING_TOKEN_TTL")
	}
	cfg.TrackingTokenTTL = ttl

	for _, origin := range strings.Split(getEnvDefault("CORS_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	for _, required := range []struct{ key, value string }{
		{"LINK_SECRET", cfg.LinkSecret},
		{"JWT_SECRET", cfg.JWTSecret},
		{"API_MASTER_SECRET", cfg.APIMasterSecret},
	} {
		if required.value == "" {
			return nil, fmt.Errorf("%s is required", required.key)
		}
	}

	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
