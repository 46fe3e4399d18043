package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/makerhunt/internal/store"
)

// initStore opens the configured backend and runs migrations. Callers are
// responsible for Close.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		s   store.Store
		err error
	)

	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "makerhunt.db"
		}
		s, err = store.NewSQLite(dsn)
	case "postgres":
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, eris.Wrap(err, "store: migrate")
	}

	zap.L().Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return s, nil
}
