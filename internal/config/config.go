// Package config loads likevault configuration from the environment.
//
// Values come from process environment variables prefixed with LIKEVAULT_,
// optionally seeded from a .env file. Directory settings left empty are
// derived from DataDir.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "LIKEVAULT_"

// Config is the full runtime configuration.
type Config struct {
	DataDir  string `env:"DATA_DIR" envDefault:"./data"`
	FilesDir string `env:"FILES_DIR"`
	TempDir  string `env:"TEMP_DIR"`

	// Secret seals stored credentials. Empty falls back to a machine key.
	Secret string `env:"SECRET"`

	Download DownloadConfig `envPrefix:"DOWNLOAD_"`
	Log      LogConfig      `envPrefix:"LOG_"`
	Twitter  TwitterConfig  `envPrefix:"TWITTER_"`
	Mirror   MirrorConfig   `envPrefix:"MIRROR_"`
}

// DownloadConfig bounds media downloads.
type DownloadConfig struct {
	Concurrency int           `env:"CONCURRENCY" envDefault:"4"`
	Retries     uint          `env:"RETRIES" envDefault:"3"`
	RetryDelay  time.Duration `env:"RETRY_DELAY" envDefault:"2s"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"5m"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Format     string `env:"FORMAT" envDefault:"json"`
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"30"`
}

// TwitterConfig configures the liked-posts data source.
type TwitterConfig struct {
	ClientID      string        `env:"CLIENT_ID"`
	ClientSecret  string        `env:"CLIENT_SECRET"`
	BaseURL       string        `env:"BASE_URL" envDefault:"https://api.twitter.com"`
	TokenURL      string        `env:"TOKEN_URL" envDefault:"https://api.twitter.com/2/oauth2/token"`
	PageSize      int           `env:"PAGE_SIZE" envDefault:"100"`
	RequestsPer15 int           `env:"REQUESTS_PER_15MIN" envDefault:"75"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// MirrorConfig configures the optional S3-compatible file mirror.
type MirrorConfig struct {
	Endpoint  string `env:"ENDPOINT"`
	Bucket    string `env:"BUCKET"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"true"`
	Region    string `env:"REGION" envDefault:"us-east-1"`

	Retries    uint          `env:"RETRIES" envDefault:"3"`
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"1s"`
}

// Enabled reports whether a mirror target is configured.
func (m MirrorConfig) Enabled() bool {
	return m.Endpoint != "" && m.Bucket != ""
}

// Load reads envFile (if present) and the environment into a Config.
// A missing envFile is not an error; an unreadable one is.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.FilesDir == "" {
		c.FilesDir = filepath.Join(c.DataDir, "files")
	}
	if c.TempDir == "" {
		// Same volume as FilesDir so the final move is a rename.
		c.TempDir = filepath.Join(c.DataDir, "tmp")
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.Download.Concurrency < 1 {
		return fmt.Errorf("download concurrency must be >= 1, got %d", c.Download.Concurrency)
	}
	if c.Twitter.PageSize < 5 || c.Twitter.PageSize > 100 {
		return fmt.Errorf("twitter page size must be within [5, 100], got %d", c.Twitter.PageSize)
	}
	if c.Twitter.RequestsPer15 < 1 {
		return fmt.Errorf("twitter request budget must be >= 1, got %d", c.Twitter.RequestsPer15)
	}
	if (c.Mirror.Endpoint == "") != (c.Mirror.Bucket == "") {
		return fmt.Errorf("mirror endpoint and bucket must be set together")
	}
	return nil
}

// DatabasePath is the sqlite file location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "likevault.db")
}
