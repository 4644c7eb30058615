package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldops/sitesync/internal/common"
	"github.com/fieldops/sitesync/internal/dbx"
)

// Well-known setting keys.
const (
	KeyCurrentSite        = "current_site"
	KeyRequirementCatalog = "requirement_catalog"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Set(ctx context.Context, key, value string) error {
	query := ` INSERT INTO settings (key, value) values (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (string, error) {
	row := r.db.QueryRowContext(ctx, `select value from settings where key=?`, key)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to select setting: %w", err)
	}
	return value, nil
}
