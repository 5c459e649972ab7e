package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DOJO_DB_PATH", "DOJO_SKIP_CACHE_REBUILD", "PORT", "CORS_ORIGINS", "ENV"} {
		old, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, old)
			}
		})
	}
}

func TestLoad_AppliesDefaultsWhenUnset(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "data/ledger.duckdb", cfg.DBPath)
	require.False(t, cfg.SkipCacheRebuild)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	require.Equal(t, "development", cfg.Env)
}

func TestLoad_ReadsOverridesFromEnvironment(t *testing.T) {
	clearEnv(t)
	os.Setenv("DOJO_DB_PATH", "/tmp/test.duckdb")
	os.Setenv("DOJO_SKIP_CACHE_REBUILD", "true")
	os.Setenv("PORT", "9090")
	os.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	os.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/test.duckdb", cfg.DBPath)
	require.True(t, cfg.SkipCacheRebuild)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.Equal(t, "production", cfg.Env)
}
