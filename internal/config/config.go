// Package config loads the engine's configuration from the environment
// once at startup, the teacher's godotenv + os.Getenv pattern (spec §5:
// "Configuration is read once at startup").
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// DBPath is the embedded analytical store file path (spec §6).
	DBPath string
	// SkipCacheRebuild suppresses the post-migration cache.Rebuild pass
	// (spec §6: "DOJO_SKIP_CACHE_REBUILD (boolean; suppresses rebuild after
	// migrations)").
	SkipCacheRebuild bool

	// Server
	Port        string
	CORSOrigins []string
	Env         string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:           getEnv("DOJO_DB_PATH", "data/ledger.duckdb"),
		SkipCacheRebuild: getEnv("DOJO_SKIP_CACHE_REBUILD", "false") == "true",
		Port:             getEnv("PORT", "8080"),
		CORSOrigins:      strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:              getEnv("ENV", "development"),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
