package releasestore

import (
	"context"
	"fmt"

	"lbfeed/internal/config"
)

// Open builds the backend selected by cfg.Store, wrapped in a Memo when
// store.memo_size is positive.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("open release store: config is required")
	}
	var (
		backend Backend
		err     error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		backend, err = OpenSQLite(ctx, cfg.Store.SQLitePath)
	case config.BackendRedis:
		backend, err = OpenRedis(RedisOptions{
			Addr:      cfg.Store.RedisAddr,
			DB:        cfg.Store.RedisDB,
			KeyPrefix: cfg.Store.RedisKeyPrefix,
		})
	default:
		err = fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open release store: %w", err)
	}

	if cfg.Store.MemoSize <= 0 {
		return backend, nil
	}
	memo, err := NewMemo(backend, cfg.Store.MemoSize)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("open release store memo: %w", err)
	}
	return memo, nil
}
