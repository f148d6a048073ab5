package database

import (
	"context"
	"fmt"
	"time"

	"chirp/config"
	"chirp/database/migrations"
	"chirp/store"
	"chirp/store/memstore"
	"chirp/store/mongostore"
	"chirp/store/sqlstore"
)

// NewStoreFromConfig opens the backend selected by cfg.Type. Relational
// backends are migrated to the latest schema before use.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Type {
	case config.StoreMemory:
		return memstore.New(nil, nil), nil

	case config.StoreMongo:
		client, err := ConnectMongo(ctx, cfg.MongoURI, 3, 2*time.Second)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = DisconnectMongo(ctx, client)
			return nil, err
		}
		return mongostore.New(client, db, mongostore.Options{Transactions: cfg.MongoTransactions}), nil

	case config.StoreSQLite, config.StorePostgres:
		sqlDB, err := OpenSQL(ctx, cfg.Type, cfg.SQLitePath, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		gdb, err := MigrateAndOpenGorm(sqlDB, cfg.Type)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		return sqlstore.New(gdb, nil, nil), nil
	}
	return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
}

// Migrate brings a relational backend to the latest schema and verifies
// the result.
func Migrate(ctx context.Context, cfg config.StoreConfig) error {
	switch cfg.Type {
	case config.StoreSQLite, config.StorePostgres:
	default:
		return fmt.Errorf("store type %q has no schema migrations", cfg.Type)
	}

	db, err := OpenSQL(ctx, cfg.Type, cfg.SQLitePath, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.MigrateUp(db, cfg.Type); err != nil {
		return err
	}
	return migrations.CheckDBMigrationStatus(db, cfg.Type)
}
