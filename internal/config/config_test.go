package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_defaults verifies defaults and derived directories.
func TestLoad_defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIKEVAULT_DATA_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "files"), cfg.FilesDir)
	assert.Equal(t, filepath.Join(dir, "tmp"), cfg.TempDir)
	assert.Equal(t, filepath.Join(dir, "likevault.db"), cfg.DatabasePath())
	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, uint(3), cfg.Download.Retries)
	assert.Equal(t, 5*time.Minute, cfg.Download.Timeout)
	assert.Equal(t, 100, cfg.Twitter.PageSize)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Mirror.Enabled())
}

// TestLoad_envFile verifies .env values are applied and nested prefixes resolve.
func TestLoad_envFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "LIKEVAULT_DATA_DIR=" + dir + "\n" +
		"LIKEVAULT_DOWNLOAD_CONCURRENCY=8\n" +
		"LIKEVAULT_TWITTER_CLIENT_ID=client-abc\n" +
		"LIKEVAULT_LOG_LEVEL=debug\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	// godotenv does not override variables that are already set; make sure
	// these are unset and restored afterwards.
	for _, k := range []string{"LIKEVAULT_DATA_DIR", "LIKEVAULT_DOWNLOAD_CONCURRENCY", "LIKEVAULT_TWITTER_CLIENT_ID", "LIKEVAULT_LOG_LEVEL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Download.Concurrency)
	assert.Equal(t, "client-abc", cfg.Twitter.ClientID)
	assert.Equal(t, "debug", cfg.Log.Level)
}

// TestLoad_missingEnvFile verifies a missing .env is tolerated.
func TestLoad_missingEnvFile(t *testing.T) {
	t.Setenv("LIKEVAULT_DATA_DIR", t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.NoError(t, err)
}

// TestValidate verifies range checks.
func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DataDir:  "data",
			Download: DownloadConfig{Concurrency: 1},
			Twitter:  TwitterConfig{PageSize: 100, RequestsPer15: 75},
		}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.Download.Concurrency = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Twitter.PageSize = 500
	assert.Error(t, c.Validate())

	c = base()
	c.Mirror.Endpoint = "localhost:9000"
	assert.Error(t, c.Validate())

	c.Mirror.Bucket = "likes"
	assert.NoError(t, c.Validate())
	assert.True(t, c.Mirror.Enabled())
}
