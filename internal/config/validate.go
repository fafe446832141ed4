package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/logging"
)

// ErrInvalidConfig wraps every failure reported by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// minPageCapacity mirrors the smallest fan-out the B+ tree accepts.
const minPageCapacity = 3

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig returns every validation error of config. An empty slice
// means the configuration is valid.
func ValidateConfig(config *Config) []error {
	var errs []error
	errs = append(errs, validateServerConfig(&config.Server)...)
	errs = append(errs, validateStorageConfig(&config.Storage)...)
	errs = append(errs, validateIndexConfig(&config.Index)...)
	errs = append(errs, validateLogConfig(&config.Logging)...)
	return errs
}

// Validate folds ValidateConfig into one error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	errs := ValidateConfig(c)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return errors.Wrapf(ErrInvalidConfig, "%s", strings.Join(msgs, "; "))
}

func validateServerConfig(config *ServerConfig) []error {
	var errs []error

	if err := validateAddress(config.Address); err != nil {
		errs = append(errs, ValidationError{Field: "server.address", Message: err.Error()})
	}
	if config.ReadTimeout < 0 {
		errs = append(errs, ValidationError{Field: "server.readTimeout", Message: "must be non-negative"})
	}
	if config.WriteTimeout < 0 {
		errs = append(errs, ValidationError{Field: "server.writeTimeout", Message: "must be non-negative"})
	}
	if config.BodyLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.bodyLimit", Message: "must be non-negative"})
	}
	if config.RecentLogs < 0 {
		errs = append(errs, ValidationError{Field: "server.recentLogs", Message: "must be non-negative"})
	}
	return errs
}

func validateStorageConfig(config *StorageConfig) []error {
	var errs []error

	switch config.Backend {
	case BackendMemory:
	case BackendFile, BackendPebble:
		if config.Path == "" {
			errs = append(errs, ValidationError{
				Field:   "storage.path",
				Message: fmt.Sprintf("is required for the %s backend", config.Backend),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: "must be memory, file, or pebble",
		})
	}

	if config.InitialPages < 0 {
		errs = append(errs, ValidationError{Field: "storage.initialPages", Message: "must be non-negative"})
	}
	if config.CachePages < 0 {
		errs = append(errs, ValidationError{Field: "storage.cachePages", Message: "must be non-negative"})
	}
	return errs
}

func validateIndexConfig(config *IndexConfig) []error {
	var errs []error

	if config.CursorMode != CursorStrict && config.CursorMode != CursorTolerant {
		errs = append(errs, ValidationError{
			Field:   "index.cursorMode",
			Message: "must be strict or tolerant",
		})
	}
	if config.PageCapacity != 0 && config.PageCapacity < minPageCapacity {
		errs = append(errs, ValidationError{
			Field:   "index.pageCapacity",
			Message: "must be 0 or at least " + strconv.Itoa(minPageCapacity),
		})
	}
	return errs
}

func validateLogConfig(config *LogConfig) []error {
	var errs []error

	if config.Level != "" && !logging.ValidLevel(config.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be debug, info, warn, or error",
		})
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if config.Format != "" && !validFormats[strings.ToLower(config.Format)] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be text or json",
		})
	}

	if config.Output != "" && config.Output != "stdout" && config.Output != "stderr" {
		dir := filepath.Dir(config.Output)
		if !filepath.IsAbs(config.Output) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: "must be stdout, stderr, or an absolute file path",
			})
		} else if _, err := os.Stat(dir); os.IsNotExist(err) {
			errs = append(errs, ValidationError{
				Field:   "logging.output",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			})
		}
	}
	return errs
}

// validateAddress accepts host:port with a numeric port.
func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return errors.Newf("invalid address format: %v", err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return errors.Newf("invalid port %q", port)
	}
	return nil
}
