package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chirp/database/migrations"
)

// OpenSQLite opens the SQLite database at path (":memory:" for a private
// in-memory database) with foreign keys enforced.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive for the life of the pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// OpenPostgres opens dsn through the pgx stdlib driver and checks it is
// reachable.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return db, nil
}

// OpenSQL opens the relational database named by dialect.
func OpenSQL(ctx context.Context, dialect, sqlitePath, postgresDSN string) (*sql.DB, error) {
	switch dialect {
	case migrations.SQLite:
		return OpenSQLite(sqlitePath)
	case migrations.Postgres:
		return OpenPostgres(ctx, postgresDSN)
	}
	return nil, fmt.Errorf("unsupported dialect %q", dialect)
}

// OpenGorm wraps an open connection pool in gorm. Driver errors are
// translated so that duplicate and foreign key violations can be matched
// with errors.Is.
func OpenGorm(db *sql.DB, dialect string) (*gorm.DB, error) {
	var d gorm.Dialector
	switch dialect {
	case migrations.SQLite:
		d = sqlite.New(sqlite.Config{Conn: db})
	case migrations.Postgres:
		d = postgres.New(postgres.Config{Conn: db})
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	gdb, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening gorm: %w", err)
	}
	return gdb, nil
}

// MigrateAndOpenGorm applies pending migrations and returns the gorm handle.
func MigrateAndOpenGorm(db *sql.DB, dialect string) (*gorm.DB, error) {
	if err := migrations.MigrateUp(db, dialect); err != nil {
		return nil, err
	}
	slog.Debug("schema up to date", "dialect", dialect)
	return OpenGorm(db, dialect)
}
