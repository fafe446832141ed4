package main

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obaidx/internal/config"
)

// newRootCmd builds the command tree. A fresh tree per call keeps flag
// state from leaking between runs.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "obaidx",
		Short:        "Embedded B+Tree ordered index engine",
		Long:         "obaidx stores ordered key/value indexes in a paged file and serves them over a JSON HTTP API.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")

	root.AddCommand(
		newServeCmd(),
		newCheckCmd(),
		newBenchCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the file named by --config, or the defaults when the
// flag is empty, and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if path != "" {
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, errors.Wrap(err, "load configuration")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
