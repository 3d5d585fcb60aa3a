package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/lostfound/internal/config"
	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/store"
	"github.com/erazemk/lostfound/internal/store/mongodb"
)

// openStore connects to the configured backend and prepares its schema.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMongo:
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		s, err := mongodb.Open(ctx, mongodb.Options{
			URI:          cfg.MongoURI,
			Database:     cfg.MongoDB,
			Transactions: cfg.MongoTransactions,
		})
		if err != nil {
			return nil, fmt.Errorf("opening mongodb: %w", err)
		}
		slog.Info("database ready", "store", "mongo", "database", cfg.MongoDB, "transactions", cfg.MongoTransactions)
		return s, nil

	default:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.EnsureSchema(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("ensuring schema: %w", err)
		}
		slog.Info("database ready", "store", "sqlite", "path", cfg.DBPath)
		return store.NewSQLStore(database), nil
	}
}
