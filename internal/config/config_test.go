package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "MAX_WALK_SECONDS", "REFRESH_INTERVAL_SECONDS",
		"RAIL_WORKER_COUNT", "MAX_ROUNDS", "REGION_MIN_LAT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 1800, cfg.MaxWalkSeconds)
	require.Equal(t, 30*time.Second, cfg.RefreshInterval)
	require.Equal(t, 8, cfg.RailWorkerCount)
	require.Equal(t, 5, cfg.MaxRounds)
	require.Equal(t, 51.10, cfg.MinLat)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_ROUNDS", "7")
	t.Setenv("REFRESH_INTERVAL_SECONDS", "45")
	t.Setenv("REGION_MIN_LAT", "52.0")

	cfg := Load()
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 7, cfg.MaxRounds)
	require.Equal(t, 45*time.Second, cfg.RefreshInterval)
	require.Equal(t, 52.0, cfg.MinLat)
}

func TestGetEnvIntIgnoresMalformedValue(t *testing.T) {
	t.Setenv("MAX_ROUNDS", "not-a-number")
	cfg := Load()
	require.Equal(t, 5, cfg.MaxRounds)
}
