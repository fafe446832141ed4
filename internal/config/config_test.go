package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Address != ":7070" {
		t.Errorf("Server.Address = %q, want :7070", cfg.Server.Address)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Storage.Backend = %q, want file", cfg.Storage.Backend)
	}
	if !cfg.Index.Tolerant() {
		t.Errorf("Index.CursorMode = %q, want tolerant", cfg.Index.CursorMode)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
server:
  address: "127.0.0.1:9000"
  readTimeout: 5s
storage:
  backend: pebble
  path: /tmp/obaidx
index:
  cursorMode: strict
  pageCapacity: 8
logging:
  level: debug
`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"server.address", cfg.Server.Address, "127.0.0.1:9000"},
		{"server.readTimeout", cfg.Server.ReadTimeout, 5 * time.Second},
		{"server.writeTimeout default", cfg.Server.WriteTimeout, 30 * time.Second},
		{"storage.backend", cfg.Storage.Backend, BackendPebble},
		{"storage.path", cfg.Storage.Path, "/tmp/obaidx"},
		{"index.cursorMode", cfg.Index.CursorMode, CursorStrict},
		{"index.pageCapacity", cfg.Index.PageCapacity, 8},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"logging.format default", cfg.Logging.Format, "json"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig([]byte("# only a comment\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Server.Address != DefaultConfig().Server.Address {
		t.Errorf("empty document did not keep defaults: %+v", cfg.Server)
	}
}

func TestInvalidYAML(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"syntax", "server: [unclosed"},
		{"unknown key", "server:\n  port: 1\n"},
		{"bad duration", "server:\n  readTimeout: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.data)); !errors.Is(err, ErrInvalidYAML) {
				t.Errorf("ParseConfig error = %v, want ErrInvalidYAML", err)
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("OBAIDX_TEST_PATH", "/data/idx")
	t.Setenv("OBAIDX_TEST_EMPTY", "")

	tests := []struct {
		input string
		want  string
	}{
		{"path: ${OBAIDX_TEST_PATH}", "path: /data/idx"},
		{"path: ${OBAIDX_TEST_PATH:-/fallback}", "path: /data/idx"},
		{"path: ${OBAIDX_TEST_EMPTY:-/fallback}", "path: /fallback"},
		{"path: ${OBAIDX_TEST_UNSET_VAR}", "path: "},
		{"no vars", "no vars"},
	}
	for _, tt := range tests {
		if got := string(substituteEnvVars([]byte(tt.input))); got != tt.want {
			t.Errorf("substituteEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("OBAIDX_TEST_BACKEND", "memory")
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: ${OBAIDX_TEST_BACKEND}\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("LoadConfig(missing) error = %v, want ErrFileNotFound", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.PageCapacity = 16
	cfg.Server.ReadTimeout = 2 * time.Minute

	data, err := Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	back, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig(Marshal) failed: %v\n%s", err, data)
	}
	if *back != *cfg {
		t.Errorf("round trip = %+v, want %+v", back, cfg)
	}
}

// =============================================================================
// Validation
// =============================================================================

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad address", func(c *Config) { c.Server.Address = "nowhere" }, "server.address"},
		{"bad port", func(c *Config) { c.Server.Address = ":http" }, "server.address"},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "server.readTimeout"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "tape" }, "storage.backend"},
		{"file without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"cursor mode", func(c *Config) { c.Index.CursorMode = "loose" }, "index.cursorMode"},
		{"small capacity", func(c *Config) { c.Index.PageCapacity = 2 }, "index.pageCapacity"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"relative log file", func(c *Config) { c.Logging.Output = "obaidx.log" }, "logging.output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			errs := ValidateConfig(cfg)
			if len(errs) != 1 {
				t.Fatalf("ValidateConfig returned %d errors, want 1: %v", len(errs), errs)
			}
			var ve ValidationError
			if !errors.As(errs[0], &ve) || ve.Field != tt.field {
				t.Errorf("error = %v, want field %s", errs[0], tt.field)
			}

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig naming %s", err, tt.field)
			}
		})
	}

	mem := DefaultConfig()
	mem.Storage.Backend = BackendMemory
	mem.Storage.Path = ""
	if errs := ValidateConfig(mem); len(errs) != 0 {
		t.Errorf("memory backend without path: %v", errs)
	}
}
