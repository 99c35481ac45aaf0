package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the process reads at startup. Values come from
// the environment, with a .env file honored for local development.
type Config struct {
	ServiceName string
	Env         string
	Port        string

	RemoteBaseURL string
	RemoteTimeout time.Duration

	RedisURL    string
	SnapshotTTL time.Duration

	RefreshInterval time.Duration
	SnapshotMaxAge  time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServiceName:     getEnv("SERVICE_NAME", "cartsync"),
		Env:             getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		RemoteBaseURL:   getEnv("REMOTE_BASE_URL", "http://localhost:9090"),
		RemoteTimeout:   getDuration("REMOTE_TIMEOUT", 5*time.Second),
		RedisURL:        getEnv("REDIS_URL", ""),
		SnapshotTTL:     getDuration("SNAPSHOT_TTL", 15*time.Minute),
		RefreshInterval: getDuration("REFRESH_INTERVAL", time.Minute),
		SnapshotMaxAge:  getDuration("SNAPSHOT_MAX_AGE", 10*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
