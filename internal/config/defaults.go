package config

import "time"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Transfer: TransferConfig{
			CommandCapacity: 100,
			EventCapacity:   100,
			MaxAttempts:     3,
			BaseBackoff:     Duration{250 * time.Millisecond},
			MaxBackoff:      Duration{1500 * time.Millisecond},
		},
		Metrics: MetricsConfig{
			HistorySize: 20,
		},
		Relay: RelayConfig{
			MaxAge:        Duration{5 * time.Minute},
			PruneInterval: Duration{30 * time.Second},
		},
		Storage: StorageConfig{
			CacheSize: 8 << 20, // 8 MB
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
