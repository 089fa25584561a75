package storage

import (
	"context"
	"fmt"

	"serreclub/internal/club"
	"serreclub/internal/shared"

	"github.com/sirupsen/logrus"
)

// Open builds the store selected by cfg. Relational stores are migrated
// before they are returned; the caller owns Close.
func Open(ctx context.Context, cfg *shared.ServerConfig, log logrus.FieldLogger) (club.Store, error) {
	switch cfg.Store {
	case shared.StoreFile:
		log.WithField("path", cfg.DataFile).Info("using document store")
		return NewFileStore(cfg.DataFile, log), nil

	case shared.StoreSQLite:
		db, err := OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DBPath, err)
		}
		if err := RunMigrations(ctx, db, DialectSQLite, log); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		log.WithField("path", cfg.DBPath).Info("using sqlite store")
		return NewSQLStore(db, DialectSQLite), nil

	case shared.StorePostgres:
		db, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := RunMigrations(ctx, db, DialectPostgres, log); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		log.Info("using postgres store")
		return NewSQLStore(db, DialectPostgres), nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
