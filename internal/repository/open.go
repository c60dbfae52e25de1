package repository

import (
	"context"
	"fmt"
	"io"

	"todo-api/internal/config"
	"todo-api/internal/database"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open picks the store for cfg.DatabaseURL: postgres:// URLs go to Postgres,
// "memory://" keeps everything in process, anything else is a SQLite file path.
// The returned closer releases the underlying connection pool.
func Open(ctx context.Context, cfg *config.Config) (Store, io.Closer, error) {
	switch {
	case cfg.UsesPostgres():
		db, err := database.OpenPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.MigrateOrCreateSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewPostgresStore(db), db, nil
	case cfg.DatabaseURL == "memory://":
		return NewMemoryStore(), closerFunc(func() error { return nil }), nil
	default:
		gdb, err := database.OpenSQLite(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite handle: %w", err)
		}
		return NewGormStore(gdb), sqlDB, nil
	}
}
