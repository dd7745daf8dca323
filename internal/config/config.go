package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds environment-driven configuration.
type Config struct {
	Port          string
	DatabaseURL   string
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool
	RedisURL      string
	JWTSecret     string
	StoreName     string
	StaticDir     string
	CORSOrigins   string
	LogLevel      slog.Level

	// Warnings are problems that do not stop startup, for the caller to log
	// once its logger is configured.
	Warnings []string
}

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is not set")

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return ":" + c.Port
}

// Load reads configuration from environment variables. Callers that want a
// .env file honoured load it first (godotenv.Load).
func Load() (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", "3000"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		CookieSecure: getEnv("COOKIE_SECURE", "false") == "true",
		RedisURL:     os.Getenv("REDIS_URL"),
		StoreName:    getEnv("STORE_NAME", "Tienda"),
		StaticDir:    getEnv("STATIC_DIR", "./public"),
		CORSOrigins:  getEnv("CORS_ORIGINS", "*"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, ErrMissingDatabaseURL
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return Config{}, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", "24h"))
	if err != nil || ttl <= 0 {
		return Config{}, fmt.Errorf("invalid SESSION_TTL %q", os.Getenv("SESSION_TTL"))
	}
	cfg.SessionTTL = ttl

	var generated bool
	cfg.SessionSecret, generated, err = sessionSecret(os.Getenv("SESSION_SECRET"))
	if err != nil {
		return Config{}, err
	}
	if generated {
		cfg.Warnings = append(cfg.Warnings, "SESSION_SECRET not set, generated a random key; sessions will be invalid after a restart")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.Warnings = append(cfg.Warnings, "JWT_SECRET not set, generated a random one; API tokens will not survive a restart")
		cfg.JWTSecret = base64.StdEncoding.EncodeToString(randomBytes(32))
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// sessionSecret validates a base64 encoded AES key as expected by the
// encryptcookie middleware, generating one when none is configured.
func sessionSecret(raw string) (secret string, generated bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return base64.StdEncoding.EncodeToString(randomBytes(32)), true, nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", false, fmt.Errorf("SESSION_SECRET must be base64: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return raw, false, nil
	default:
		return "", false, fmt.Errorf("SESSION_SECRET must decode to 16, 24 or 32 bytes, got %d", len(key))
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return b
}
