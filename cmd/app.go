package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/conneroisu/webgen/internal/appstate"
	"github.com/conneroisu/webgen/internal/backend"
	"github.com/conneroisu/webgen/internal/catalog"
	"github.com/conneroisu/webgen/internal/config"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/logging"
	"github.com/spf13/cobra"
)

// app is what every command that touches websites needs.
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	state   *appstate.State
	backend backend.Backend
	// catalog is set for the local backend only.
	catalog *catalog.Catalog
	closers []func() error
}

func (r *app) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn(context.Background(), err, "Cleanup failed")
		}
	}
}

func newLogger(cmd *cobra.Command, cfg *config.Config) logging.Logger {
	lc := cfg.Log.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	return logging.NewLogger(lc)
}

// openState hydrates the persisted session from the configured file or
// ~/.webgen/session.yaml.
func openState(cfg *config.Config) (*appstate.State, error) {
	path := cfg.Storage.SessionFile
	if path == "" {
		var err error
		if path, err = appstate.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return appstate.Hydrate(path)
}

// openApp loads the configuration and connects the configured backend.
func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, cfg)

	state, err := openState(cfg)
	if err != nil {
		return nil, err
	}

	rt := &app{cfg: cfg, logger: logger, state: state}
	switch cfg.Storage.Backend {
	case config.StorageRemote:
		client, err := backend.NewClient(backend.ClientConfig{
			BaseURL: cfg.API.BaseURL,
			Timeout: cfg.API.Timeout,
			Tokens:  state,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		rt.backend = client

	default:
		if err := os.MkdirAll(cfg.Catalog.Dir, 0o755); err != nil {
			return nil, weberrors.NewIOError(weberrors.ErrCodeIO, "creating template catalog", err)
		}
		cat, err := catalog.Load(cfg.Catalog.Dir, catalog.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if cfg.Storage.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
				return nil, weberrors.NewIOError(weberrors.ErrCodeIO, "creating database directory", err)
			}
		}
		store, err := backend.OpenStore(ctx, backend.StoreOptions{
			Path:       cfg.Storage.Path,
			Templates:  cat,
			Subscribed: cfg.Storage.Subscribed,
		})
		if err != nil {
			return nil, err
		}
		rt.backend = store
		rt.catalog = cat
		rt.closers = append(rt.closers, store.Close)
	}
	return rt, nil
}
