package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CLAIMB_STORE_DSN", filepath.Join(t.TempDir(), "test.db"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "na1", cfg.Region)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.CoachingTTL)
	assert.Equal(t, 100, cfg.MaxStoredMatches)
	assert.Equal(t, 100, cfg.TargetSampleSize)
	assert.Equal(t, 10, cfg.MinAnalysisMatches)
	assert.Equal(t, 365*24*time.Hour, cfg.MaxMatchAge)
	assert.Equal(t, 10*time.Minute, cfg.MinMatchDuration)
	assert.Equal(t, []int{420, 440, 400}, cfg.AllowedQueues)
}

func TestLoad_UnprefixedFallback(t *testing.T) {
	t.Setenv("CLAIMB_STORE_DSN", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("RIOT_API_KEY", `"RGAPI-abc"`)
	t.Setenv("CLAIMB_REGION", " EUW1 ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "RGAPI-abc", cfg.RiotAPIKey)
	assert.Equal(t, "euw1", cfg.Region)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("CLAIMB_STORE_DRIVER", "mysql")
	t.Setenv("CLAIMB_STORE_DSN", "whatever")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreDriver:        "pgx",
		StoreDSN:           "postgres://localhost/claimb",
		MaxStoredMatches:   100,
		TargetSampleSize:   100,
		MinAnalysisMatches: 10,
		CoachingTTL:        time.Hour,
		AllowedQueues:      []int{420},
	}
	require.NoError(t, base.Validate())

	noDSN := base
	noDSN.StoreDSN = ""
	assert.Error(t, noDSN.Validate())

	zeroCap := base
	zeroCap.MaxStoredMatches = 0
	assert.Error(t, zeroCap.Validate())

	zeroMin := base
	zeroMin.MinAnalysisMatches = 0
	err := zeroMin.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_ANALYSIS_MATCHES")

	negativeMin := base
	negativeMin.MinAnalysisMatches = -1
	assert.Error(t, negativeMin.Validate())

	noQueues := base
	noQueues.AllowedQueues = nil
	assert.Error(t, noQueues.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CLAIMB_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CLAIMB_TEST_DOTENV") })

	got := LoadDotEnv(filepath.Join(dir, "missing.env"), path)
	assert.Equal(t, path, got)
	assert.Equal(t, "loaded", os.Getenv("CLAIMB_TEST_DOTENV"))

	assert.Equal(t, "", LoadDotEnv(filepath.Join(dir, "nope")))
}
