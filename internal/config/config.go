package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"
)

// Config is the process-wide configuration, loaded once at startup. The
// signing secrets are injected into the token issuer at construction and
// never read from the environment again.
type Config struct {
	HTTPAddr      string
	PGDSN         string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RateBurst     int
	RatePerSec    int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid int for %s, using default: %v", key, err)
		return def
	}
	return i
}

func getDuration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid duration for %s, using default: %v", key, err)
		return def
	}
	return d
}

// Load reads configuration from the environment. It fails when either signing
// secret is missing; everything else has a default.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      getenv("SIDESA_HTTP_ADDR", ":8080"),
		PGDSN:         getenv("SIDESA_PG_DSN", ""),
		AccessSecret:  getenv("SIDESA_ACCESS_SECRET", ""),
		RefreshSecret: getenv("SIDESA_REFRESH_SECRET", ""),
		AccessTTL:     getDuration("SIDESA_ACCESS_TTL", 30*time.Minute),
		RefreshTTL:    getDuration("SIDESA_REFRESH_TTL", 7*24*time.Hour),
		RateBurst:     getInt("SIDESA_RATE_BURST", 20),
		RatePerSec:    getInt("SIDESA_RATE_PER_SEC", 10),
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return Config{}, errors.New("config: SIDESA_ACCESS_SECRET and SIDESA_REFRESH_SECRET are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return Config{}, errors.New("config: access and refresh secrets must differ")
	}
	return cfg, nil
}
