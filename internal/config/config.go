package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration from environment variables.
type Config struct {
	Port   int    `validate:"gte=1,lte=65535"`
	DBPath string `validate:"required"`

	// Schedule archive ingestion
	ArchiveBaseURL  string   `validate:"required,url"`
	Providers       []string // "name" or "name:subCategory" entries
	RefreshInterval time.Duration

	// External routing service. An empty key disables road-following
	// resolution entirely.
	DirectionsURL      string        `validate:"omitempty,url"`
	DirectionsKey      string
	DirectionsInterval time.Duration `validate:"gte=0"`

	// GTFS-RT vehicle positions feed. Empty disables polling.
	VehiclesURL      string        `validate:"omitempty,url"`
	VehiclesInterval time.Duration `validate:"gte=0"`
}

// Load reads configuration from the environment (and a .env file, if
// present) and validates it.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Port:               envInt("TRANSITMAP_PORT", 8080),
		DBPath:             envStr("TRANSITMAP_DB_PATH", "./transitmap.db"),
		ArchiveBaseURL:     envStr("TRANSITMAP_ARCHIVE_URL", "https://data.transitmap.example/gtfs"),
		Providers:          envList("TRANSITMAP_PROVIDERS"),
		RefreshInterval:    envDuration("TRANSITMAP_REFRESH_INTERVAL", 24*time.Hour),
		DirectionsURL:      envStr("TRANSITMAP_DIRECTIONS_URL", "https://maps.googleapis.com/maps/api/directions/json"),
		DirectionsKey:      envStr("TRANSITMAP_DIRECTIONS_KEY", ""),
		DirectionsInterval: envDuration("TRANSITMAP_DIRECTIONS_INTERVAL", 300*time.Millisecond),
		VehiclesURL:        envStr("TRANSITMAP_VEHICLES_URL", ""),
		VehiclesInterval:   envDuration("TRANSITMAP_VEHICLES_INTERVAL", 30*time.Second),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
