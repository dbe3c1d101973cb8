package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the jobsync agent.
type Config struct {
	Server     ServerConfig
	Backend    BackendConfig
	Snapshot   SnapshotConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Tracker    TrackerConfig
	Cloudinary CloudinaryConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type BackendConfig struct {
	BaseURL    string
	RefreshURL string
	Timeout    time.Duration
}

// SnapshotConfig selects where the session cache snapshot survives restarts.
type SnapshotConfig struct {
	Backend string
	TTL     time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type TrackerConfig struct {
	CacheMaxAge            time.Duration
	OptimisticDelay        time.Duration
	DeleteConfirmationHash string
	UploadConcurrency      int
}

type CloudinaryConfig struct {
	BaseURL      string
	CloudName    string
	UploadPreset string
	Timeout      time.Duration
}

const (
	SnapshotNone     = "none"
	SnapshotRedis    = "redis"
	SnapshotPostgres = "postgres"
)

var validSnapshotBackends = map[string]bool{
	SnapshotNone:     true,
	SnapshotRedis:    true,
	SnapshotPostgres: true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("JOBSYNC_PORT", 8080),
			Env:             envString("JOBSYNC_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 120),
		},
		Backend: BackendConfig{
			BaseURL:    strings.TrimRight(os.Getenv("BACKEND_BASE_URL"), "/"),
			RefreshURL: os.Getenv("REFRESH_URL"),
			Timeout:    envDuration("BACKEND_TIMEOUT", 15*time.Second),
		},
		Snapshot: SnapshotConfig{
			Backend: envString("SNAPSHOT_BACKEND", SnapshotNone),
			TTL:     envDuration("SNAPSHOT_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Tracker: TrackerConfig{
			CacheMaxAge:            envDuration("CACHE_MAX_AGE", 5*time.Minute),
			OptimisticDelay:        envDuration("CREATE_OPTIMISTIC_DELAY", 2500*time.Millisecond),
			DeleteConfirmationHash: os.Getenv("DELETE_CONFIRMATION_HASH"),
			UploadConcurrency:      envInt("UPLOAD_CONCURRENCY", 3),
		},
		Cloudinary: CloudinaryConfig{
			BaseURL:      envString("CLOUDINARY_BASE_URL", "https://api.cloudinary.com"),
			CloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
			UploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
			Timeout:      envDuration("CLOUDINARY_TIMEOUT", 60*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if !isHTTPURL(c.Backend.BaseURL) {
		return fmt.Errorf("BACKEND_BASE_URL must start with http:// or https://, got %q", c.Backend.BaseURL)
	}
	if c.Backend.RefreshURL == "" {
		c.Backend.RefreshURL = c.Backend.BaseURL + "/refresh"
	}
	if !isHTTPURL(c.Backend.RefreshURL) {
		return fmt.Errorf("REFRESH_URL must start with http:// or https://, got %q", c.Backend.RefreshURL)
	}

	if !validSnapshotBackends[c.Snapshot.Backend] {
		return fmt.Errorf("SNAPSHOT_BACKEND must be one of none, redis, postgres; got %q", c.Snapshot.Backend)
	}
	if c.Snapshot.Backend == SnapshotRedis && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when SNAPSHOT_BACKEND is redis")
	}
	if c.Snapshot.Backend == SnapshotPostgres && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required when SNAPSHOT_BACKEND is postgres")
	}

	if c.Tracker.CacheMaxAge <= 0 {
		return fmt.Errorf("CACHE_MAX_AGE must be positive, got %s", c.Tracker.CacheMaxAge)
	}
	if c.Tracker.OptimisticDelay <= 0 {
		return fmt.Errorf("CREATE_OPTIMISTIC_DELAY must be positive, got %s", c.Tracker.OptimisticDelay)
	}
	if c.Tracker.DeleteConfirmationHash == "" {
		return fmt.Errorf("DELETE_CONFIRMATION_HASH is required")
	}
	if c.Tracker.UploadConcurrency <= 0 {
		c.Tracker.UploadConcurrency = 1
	}

	return nil
}

// UploadsEnabled reports whether pasted images can be pushed to object storage.
func (c CloudinaryConfig) UploadsEnabled() bool {
	return c.CloudName != "" && c.UploadPreset != ""
}

func isHTTPURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
