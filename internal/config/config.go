package config

import "time"

// Config holds every tunable of a PeerShare node.
type Config struct {
	Transfer  TransferConfig  `toml:"transfer"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Relay     RelayConfig     `toml:"relay"`
	Storage   StorageConfig   `toml:"storage"`
	Log       LogConfig       `toml:"log"`
	Bootstrap BootstrapConfig `toml:"bootstrap"`
}

// TransferConfig holds command queue and retry settings.
type TransferConfig struct {
	CommandCapacity int      `toml:"command_capacity"` // CommandCapacity bounds the command queue
	EventCapacity   int      `toml:"event_capacity"`   // EventCapacity bounds the event queue
	MaxAttempts     uint32   `toml:"max_attempts"`     // MaxAttempts is the download attempt budget
	BaseBackoff     Duration `toml:"base_backoff"`     // BaseBackoff is the delay before attempt 2
	MaxBackoff      Duration `toml:"max_backoff"`      // MaxBackoff caps any single delay
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	HistorySize int `toml:"history_size"` // HistorySize is the number of recent attempts kept
}

// RelayConfig holds relay directory settings.
type RelayConfig struct {
	MaxAge        Duration `toml:"max_age"`        // MaxAge is how long a relay stays fresh
	PruneInterval Duration `toml:"prune_interval"` // PruneInterval is the time between prune runs
}

// StorageConfig holds blob storage settings.
type StorageConfig struct {
	CacheSize int64 `toml:"cache_size"` // CacheSize is the pebble block cache size in bytes
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"` // Level is debug, info, warn or error
}

// BootstrapConfig holds bootstrap resolution settings.
type BootstrapConfig struct {
	NodesFile string `toml:"nodes_file"` // NodesFile replaces the embedded nodes list when set
}

// Duration wraps time.Duration for TOML parsing.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
