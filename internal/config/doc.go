// Package config loads obaidx configuration from YAML.
//
// # Loading
//
// LoadConfig reads a file, substitutes ${VAR} and ${VAR:-default}
// references from the environment, and decodes the result over
// DefaultConfig, so omitted keys keep their defaults:
//
//	cfg, err := config.LoadConfig("/etc/obaidx/config.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//
// # File format
//
//	server:
//	  address: ":7070"
//	  readTimeout: 30s
//	storage:
//	  backend: file          # memory, file or pebble
//	  path: ${OBAIDX_DATA:-/var/lib/obaidx/index.db}
//	index:
//	  cursorMode: tolerant   # strict or tolerant
//	  pageCapacity: 0        # 0 derives the fan-out from the key type
//	logging:
//	  level: info
//	  format: json
//
// ValidateConfig reports every problem as a ValidationError naming the
// offending field.
package config
