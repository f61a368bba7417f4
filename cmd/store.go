package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/puff-cli/internal/resilience"
	"github.com/sells-group/puff-cli/internal/store"
)

// initStore opens and migrates the configured run store. It returns a nil
// store when run history is disabled.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = resilience.Retry(ctx, resilience.Policy{
			Name:     "postgres connect",
			Attempts: 4,
			Backoff:  500 * time.Millisecond,
		}, func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	zap.L().Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return st, nil
}

// requireStore is initStore for commands that cannot work without history.
func requireStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("run history is disabled (store.driver=none)")
	}
	return st, nil
}
