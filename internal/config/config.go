package config

import "time"

// Config holds the complete obaidx configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Logging LogConfig     `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string        `yaml:"address" json:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout" json:"writeTimeout"`
	// BodyLimit is the maximum request body in bytes.
	BodyLimit int `yaml:"bodyLimit" json:"bodyLimit"`
	// RecentLogs is the number of log entries served by the logs endpoint.
	RecentLogs int `yaml:"recentLogs" json:"recentLogs"`
}

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendPebble = "pebble"
)

// StorageConfig selects and tunes the page store.
type StorageConfig struct {
	Backend      string `yaml:"backend" json:"backend"`
	Path         string `yaml:"path" json:"path"`
	SyncOnWrite  bool   `yaml:"syncOnWrite" json:"syncOnWrite"`
	InitialPages int    `yaml:"initialPages" json:"initialPages"`
	// CachePages bounds the page image cache of the file backend.
	CachePages int `yaml:"cachePages" json:"cachePages"`
}

// Cursor modes.
const (
	CursorStrict   = "strict"
	CursorTolerant = "tolerant"
)

// IndexConfig holds index engine settings.
type IndexConfig struct {
	CursorMode string `yaml:"cursorMode" json:"cursorMode"`
	// PageCapacity forces the page fan-out; 0 derives it from the key type.
	PageCapacity int `yaml:"pageCapacity" json:"pageCapacity"`
}

// Tolerant reports whether cursors survive concurrent modification.
func (c IndexConfig) Tolerant() bool {
	return c.CursorMode == CursorTolerant
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}
