package main

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/config"
	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/btree"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/index"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/pebblestore"
)

// openStore opens the page store selected by cfg.
func openStore(cfg config.StorageConfig) (storage.PageStore, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil

	case config.BackendFile:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create data directory")
		}
		opts := storage.DefaultOptions()
		opts.SyncOnWrite = cfg.SyncOnWrite
		if cfg.InitialPages > 0 {
			opts.InitialPages = cfg.InitialPages
		}
		pm, err := storage.OpenPageManager(cfg.Path, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "open page file %s", cfg.Path)
		}
		if cfg.CachePages > 0 {
			return storage.NewFileStoreWithCache(pm, cfg.CachePages), nil
		}
		return storage.NewFileStore(pm), nil

	case config.BackendPebble:
		s, err := pebblestore.Open(cfg.Path, pebblestore.Options{SyncOnWrite: cfg.SyncOnWrite})
		if err != nil {
			return nil, errors.Wrapf(err, "open pebble store %s", cfg.Path)
		}
		return s, nil

	default:
		return nil, errors.Newf("unknown storage backend %q", cfg.Backend)
	}
}

// openManager opens the configured store and the index catalogue in it.
func openManager(cfg *config.Config, log logging.Logger) (*index.Manager, error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	mode := btree.ModeStrict
	if cfg.Index.Tolerant() {
		mode = btree.ModeTolerant
	}

	m, err := index.NewManager(store, index.ManagerOptions{
		Mode:     mode,
		Capacity: cfg.Index.PageCapacity,
		Logger:   log,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return m, nil
}
