package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"PeerShare/internal/logger"
	"PeerShare/internal/transfer"
)

const (
	// FileName is the conventional configuration file name.
	FileName = "peershare.toml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "PEERSHARE_"
)

// Sources lists where configuration is read from.
type Sources struct {
	File      string                          // File is a TOML file; missing means defaults
	DotEnv    string                          // DotEnv is a .env file; missing is ignored
	LookupEnv func(key string) (string, bool) // LookupEnv reads the process environment
}

// Load reads path and ./.env on top of the defaults, applies PEERSHARE_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	return LoadFrom(Sources{File: path, DotEnv: ".env"})
}

// LoadFrom builds a configuration from src.
// Precedence, lowest first: defaults, TOML file, .env file, process environment.
func LoadFrom(src Sources) (*Config, error) {
	cfg := Default()

	if src.File != "" {
		if err := decodeFile(src.File, cfg); err != nil {
			return nil, err
		}
	}

	dotenv, err := readDotEnv(src.DotEnv)
	if err != nil {
		return nil, err
	}

	lookup := src.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	env := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	return cfg, nil
}

// decodeFile decodes the TOML file at path into cfg. A missing file is not an error.
func decodeFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Debug("no config file, using defaults", "path", path)
		return nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("parse config file %s:\n%w", path, err)
	}

	for _, key := range md.Undecoded() {
		logger.Warn("unknown config key", "path", path, "key", key.String())
	}

	return nil
}

// readDotEnv reads a .env file without touching the process environment.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	vars, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s:\n%w", path, err)
	}

	return vars, nil
}

// applyEnv overrides fields from PEERSHARE_* variables.
func (c *Config) applyEnv(env func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"COMMAND_CAPACITY", &c.Transfer.CommandCapacity},
		{"EVENT_CAPACITY", &c.Transfer.EventCapacity},
		{"HISTORY_SIZE", &c.Metrics.HistorySize},
	}

	for _, f := range ints {
		if v, ok := env(EnvPrefix + f.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, f.key, err)
			}
			*f.dst = n
		}
	}

	if v, ok := env(EnvPrefix + "MAX_ATTEMPTS"); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sMAX_ATTEMPTS: %w", EnvPrefix, err)
		}
		c.Transfer.MaxAttempts = uint32(n)
	}

	if v, ok := env(EnvPrefix + "CACHE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sCACHE_SIZE: %w", EnvPrefix, err)
		}
		c.Storage.CacheSize = n
	}

	durations := []struct {
		key string
		dst *Duration
	}{
		{"BASE_BACKOFF", &c.Transfer.BaseBackoff},
		{"MAX_BACKOFF", &c.Transfer.MaxBackoff},
		{"RELAY_MAX_AGE", &c.Relay.MaxAge},
		{"PRUNE_INTERVAL", &c.Relay.PruneInterval},
	}

	for _, f := range durations {
		if v, ok := env(EnvPrefix + f.key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, f.key, err)
			}
			f.dst.Duration = d
		}
	}

	if v, ok := env(EnvPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	if v, ok := env(EnvPrefix + "BOOTSTRAP_FILE"); ok {
		c.Bootstrap.NodesFile = v
	}

	return nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	if c.Transfer.CommandCapacity < 1 {
		return fmt.Errorf("command capacity must be >= 1, got %d", c.Transfer.CommandCapacity)
	}
	if c.Transfer.EventCapacity < 1 {
		return fmt.Errorf("event capacity must be >= 1, got %d", c.Transfer.EventCapacity)
	}
	if c.Transfer.MaxAttempts < 1 || c.Transfer.MaxAttempts > transfer.MaxAttempts {
		return fmt.Errorf("max attempts must be in [1, %d], got %d", transfer.MaxAttempts, c.Transfer.MaxAttempts)
	}
	if c.Transfer.BaseBackoff.Duration <= 0 {
		return fmt.Errorf("base backoff must be positive, got %v", c.Transfer.BaseBackoff)
	}
	if c.Transfer.MaxBackoff.Duration < c.Transfer.BaseBackoff.Duration {
		return fmt.Errorf("max backoff %v is below base backoff %v", c.Transfer.MaxBackoff, c.Transfer.BaseBackoff)
	}
	if c.Metrics.HistorySize < 1 {
		return fmt.Errorf("history size must be >= 1, got %d", c.Metrics.HistorySize)
	}
	if c.Relay.MaxAge.Duration < time.Second {
		return fmt.Errorf("relay max age must be at least 1s, got %v", c.Relay.MaxAge)
	}
	if c.Relay.PruneInterval.Duration <= 0 {
		return fmt.Errorf("prune interval must be positive, got %v", c.Relay.PruneInterval)
	}
	if c.Storage.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative, got %d", c.Storage.CacheSize)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	return nil
}
