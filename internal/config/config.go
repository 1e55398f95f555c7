// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	RedisAddr  string

	// SecretKey is the 32-byte AES key protecting stored credentials, or nil
	// when unset. Credential operations fail cleanly without it; the rest of
	// the app runs.
	SecretKey []byte

	// ProviderService names the upstream service credentials are stored
	// under.
	ProviderService   string
	ProviderBaseURL   string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string

	// SyncInterval is the periodic sweep cadence; StalenessWindow bounds how
	// old a mirror may get before a read triggers a refresh; SnapshotTTL is
	// the cached view lifetime.
	SyncInterval    time.Duration
	StalenessWindow time.Duration
	SnapshotTTL     time.Duration
	SyncWorkers     int
	SyncQueueSize   int

	// DashboardRateLimit is the request budget for the dashboard read path
	// per DashboardRatePeriod.
	DashboardRateLimit  int
	DashboardRatePeriod time.Duration
}

// HasSecretKey reports whether credential encryption is configured.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) > 0
}

// Load reads configuration from environment variables and returns a validated
// Config. DAYBRIEF_SECRET_KEY (base64, 32 bytes decoded) and the OAuth
// variables are optional; without them the app serves mirrored data but
// cannot store or refresh credentials. Optional variables with defaults:
// DAYBRIEF_LISTEN_ADDR (127.0.0.1:8080), DAYBRIEF_DB_PATH (daybrief.db),
// DAYBRIEF_REDIS_ADDR (127.0.0.1:6379), DAYBRIEF_SYNC_INTERVAL (5m),
// DAYBRIEF_STALENESS_WINDOW (5m), DAYBRIEF_SNAPSHOT_TTL (5m),
// DAYBRIEF_SYNC_WORKERS (4), DAYBRIEF_RATE_LIMIT (60 per minute).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:          envOr("DAYBRIEF_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:              envOr("DAYBRIEF_DB_PATH", "daybrief.db"),
		RedisAddr:           envOr("DAYBRIEF_REDIS_ADDR", "127.0.0.1:6379"),
		ProviderService:     envOr("DAYBRIEF_PROVIDER_SERVICE", "workspace"),
		ProviderBaseURL:     envOr("DAYBRIEF_PROVIDER_BASE_URL", "https://api.workspace.example.com"),
		OAuthClientID:       os.Getenv("DAYBRIEF_OAUTH_CLIENT_ID"),
		OAuthClientSecret:   os.Getenv("DAYBRIEF_OAUTH_CLIENT_SECRET"),
		OAuthTokenURL:       os.Getenv("DAYBRIEF_OAUTH_TOKEN_URL"),
		DashboardRatePeriod: time.Minute,
	}

	if v, ok := os.LookupEnv("DAYBRIEF_SECRET_KEY"); ok && v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("DAYBRIEF_SECRET_KEY is not valid base64: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("DAYBRIEF_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.SecretKey = key
	}

	var err error
	if cfg.SyncInterval, err = durationOr("DAYBRIEF_SYNC_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StalenessWindow, err = durationOr("DAYBRIEF_STALENESS_WINDOW", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SnapshotTTL, err = durationOr("DAYBRIEF_SNAPSHOT_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SyncWorkers, err = intOr("DAYBRIEF_SYNC_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.SyncQueueSize, err = intOr("DAYBRIEF_SYNC_QUEUE_SIZE", 64); err != nil {
		return nil, err
	}
	if cfg.DashboardRateLimit, err = intOr("DAYBRIEF_RATE_LIMIT", 60); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}

func intOr(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return parsed, nil
}
