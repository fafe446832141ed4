package config

import "time"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":7070",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			BodyLimit:    4 * 1024 * 1024,
			RecentLogs:   1000,
		},
		Storage: StorageConfig{
			Backend:      BackendFile,
			Path:         "/var/lib/obaidx/index.db",
			SyncOnWrite:  false,
			InitialPages: 16,
			CachePages:   256,
		},
		Index: IndexConfig{
			CursorMode:   CursorTolerant,
			PageCapacity: 0,
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}
