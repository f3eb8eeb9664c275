package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultServerAddr      = ":8080"
	defaultBooksPerPage    = 10
	defaultAccessTokenTTL  = 24 * time.Hour
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Config holds all environment-driven settings for the service.
type Config struct {
	DatabaseURL     string
	ServerAddr      string
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BooksPerPage    int
	CORSOrigins     []string
	Debug           bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ServerAddr:      envOr("SERVER_ADDR", defaultServerAddr),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  envDurationOr("ACCESS_TOKEN_TTL", defaultAccessTokenTTL),
		RefreshTokenTTL: envDurationOr("REFRESH_TOKEN_TTL", defaultRefreshTokenTTL),
		BooksPerPage:    envIntOr("BOOKS_PER_PAGE", defaultBooksPerPage),
		Debug:           envBool("DEBUG"),
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		if !cfg.Debug {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required")
		}
		cfg.JWTSecret = "dev-key-please-change-in-production"
	}
	if cfg.BooksPerPage < 1 {
		cfg.BooksPerPage = defaultBooksPerPage
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "t", "true", "yes":
		return true
	}
	return false
}
