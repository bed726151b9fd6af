package main

import (
	"fmt"

	"mercator-hq/rotor/pkg/cli"
	"mercator-hq/rotor/pkg/config"
	"mercator-hq/rotor/pkg/credentials"
)

// loadConfig loads and validates the configuration named by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return cfg, nil
}

// openStore opens the credential store selected by cfg.
func openStore(cfg *config.StorageConfig) (credentials.Store, error) {
	switch cfg.Backend {
	case "memory":
		return credentials.NewMemoryStore(), nil
	case "sqlite":
		store, err := credentials.NewSQLiteStore(credentials.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			WALMode:     cfg.SQLite.WALMode,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// bootstrapKeys collects the credentials to register from configuration
// and, when set, the keys file.
func bootstrapKeys(cfg *config.BootstrapConfig) (credentials.KeySet, error) {
	keys := credentials.KeySet{Add: cfg.Keys, Remove: cfg.RemoveKeys}
	if cfg.KeysFile == "" {
		return keys, nil
	}
	fromFile, err := credentials.LoadKeysFile(cfg.KeysFile)
	if err != nil {
		return keys, err
	}
	return keys.Merge(fromFile), nil
}
