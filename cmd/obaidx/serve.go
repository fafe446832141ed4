package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obaidx/internal/config"
	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/rest"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the indexes over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address, overrides server.address")
	return cmd
}

// serve runs the HTTP API until ctx is cancelled, then drains requests and
// closes the store.
func serve(ctx context.Context, cfg *config.Config) error {
	recorder := logging.NewRecorder(cfg.Server.RecentLogs)
	logger := logging.New(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Output:   cfg.Logging.Output,
		Recorder: recorder,
	})
	sysLogger := logger.WithFields("source", "system")

	m, err := openManager(cfg, logger)
	if err != nil {
		return err
	}
	sysLogger.Info("index store opened",
		"backend", cfg.Storage.Backend,
		"path", cfg.Storage.Path,
		"indexes", m.IndexCount(),
	)

	srv := rest.NewServer(cfg.Server, m, rest.Options{
		Settings: cfg,
		Logger:   logger,
		Recorder: recorder,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		sysLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		serveErr = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		serveErr = errors.Wrap(err, "http server")
	}

	if err := m.Close(); err != nil {
		sysLogger.Error("failed to close index store", "error", err)
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
