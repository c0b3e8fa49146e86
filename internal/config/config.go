package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment prefix. Fields with an explicit envconfig tag also
// fall back to the unprefixed name (RIOT_API_KEY works as well as CLAIMB_RIOT_API_KEY).
const Prefix = "CLAIMB"

// Config holds runtime configuration for the sync engine and CLI.
type Config struct {
	RiotAPIKey string `envconfig:"RIOT_API_KEY"`
	Region     string `envconfig:"REGION" default:"na1"`

	// StoreDriver is sqlite, libsql or pgx. StoreDSN defaults to a file under
	// the user config dir for sqlite.
	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`
	StoreDSN    string `envconfig:"STORE_DSN"`

	// StoreAuthToken is appended to libsql:// DSNs
	StoreAuthToken string `envconfig:"STORE_AUTH_TOKEN"`

	CoachingURL    string        `envconfig:"COACHING_URL"`
	CoachingToken  string        `envconfig:"COACHING_TOKEN"`
	CoachingDevice string        `envconfig:"COACHING_DEVICE" default:"claimb-cli"`
	CoachingTTL    time.Duration `envconfig:"COACHING_TTL" default:"24h"`

	MaxStoredMatches   int           `envconfig:"MAX_STORED_MATCHES" default:"100"`
	TargetSampleSize   int           `envconfig:"TARGET_SAMPLE_SIZE" default:"100"`
	MinAnalysisMatches int           `envconfig:"MIN_ANALYSIS_MATCHES" default:"10"`
	MaxMatchAge        time.Duration `envconfig:"MAX_MATCH_AGE" default:"8760h"`
	MinMatchDuration   time.Duration `envconfig:"MIN_MATCH_DURATION" default:"10m"`
	AllowedQueues      []int         `envconfig:"ALLOWED_QUEUES" default:"420,440,400"`

	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	ListenAddr    string        `envconfig:"LISTEN_ADDR" default:":8090"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// EnvPaths are tried in order by LoadDotEnv; the first file found wins.
var EnvPaths = []string{".env", "../.env", "../../.env"}

// LoadDotEnv loads the first .env file found and returns its path ("" if none).
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = EnvPaths
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads configuration from the environment and applies derived defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	// Quotes survive some .env editors
	cfg.RiotAPIKey = strings.Trim(cfg.RiotAPIKey, "\"")
	cfg.StoreDSN = strings.Trim(cfg.StoreDSN, "\"")
	cfg.StoreAuthToken = strings.Trim(cfg.StoreAuthToken, "\"")
	cfg.Region = strings.ToLower(strings.TrimSpace(cfg.Region))

	if cfg.StoreDSN == "" && cfg.StoreDriver == "sqlite" {
		cfg.StoreDSN = DefaultSQLitePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. A missing API key is not an error here: the
// CLI then runs with an offline provider that serves stored data only.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "sqlite", "libsql", "pgx":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	if c.StoreDSN == "" {
		return fmt.Errorf("STORE_DSN is required for driver %s", c.StoreDriver)
	}
	if c.MaxStoredMatches <= 0 {
		return fmt.Errorf("MAX_STORED_MATCHES must be positive, got %d", c.MaxStoredMatches)
	}
	if c.TargetSampleSize <= 0 {
		return fmt.Errorf("TARGET_SAMPLE_SIZE must be positive, got %d", c.TargetSampleSize)
	}
	if c.MinAnalysisMatches <= 0 {
		return fmt.Errorf("MIN_ANALYSIS_MATCHES must be positive, got %d", c.MinAnalysisMatches)
	}
	if c.CoachingTTL <= 0 {
		return fmt.Errorf("COACHING_TTL must be positive, got %s", c.CoachingTTL)
	}
	if len(c.AllowedQueues) == 0 {
		return fmt.Errorf("ALLOWED_QUEUES must not be empty")
	}
	return nil
}

// DefaultSQLitePath returns <user config dir>/Claimb/claimb.db, creating the directory.
func DefaultSQLitePath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	dir := filepath.Join(configDir, "Claimb")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return filepath.Join(".", "claimb.db")
	}
	return filepath.Join(dir, "claimb.db")
}
