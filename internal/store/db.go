// Package store opens the local SQLite database and wires the per-collection
// repositories. The local store is the working source of truth while the
// device is offline, so schema setup runs before anything else touches it.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/fieldops/sitesync/internal/repositories/artifacts"
	"github.com/fieldops/sitesync/internal/repositories/drafts"
	"github.com/fieldops/sitesync/internal/repositories/settings"
	"github.com/fieldops/sitesync/internal/repositories/sites"
	"github.com/fieldops/sitesync/internal/repositories/syncqueue"
	"github.com/fieldops/sitesync/internal/store/migrations"
)

// Repositories bundles every collection of the local store behind its
// repository interface, all sharing one database handle.
type Repositories struct {
	Sites     sites.Repository
	Artifacts artifacts.Repository
	Drafts    drafts.Repository
	Queue     syncqueue.Repository
	Settings  settings.Repository
	DB        *sql.DB
}

// RunMigrations applies the embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if needed) the SQLite database at dsn, runs
// migrations and returns the repository set. Writes are durable before any
// repository call returns; there is no in-memory intermediate state.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite allows one writer; a single connection avoids
	// SQLITE_BUSY between the queue processor and the reconciler.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repositories{
		Sites:     sites.NewSQLiteRepository(db),
		Artifacts: artifacts.NewSQLiteRepository(db),
		Drafts:    drafts.NewSQLiteRepository(db),
		Queue:     syncqueue.NewSQLiteRepository(db),
		Settings:  settings.NewSQLiteRepository(db),
		DB:        db,
	}, nil
}
