package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fieldops/sitesync/internal/common"
	"github.com/fieldops/sitesync/internal/dbx"
	"github.com/fieldops/sitesync/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, d *models.QuestionnaireDraft) error {
	fields, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal draft fields: %w", err)
	}

	query := ` INSERT INTO drafts (site_id, fields, status, completed_at)
			values (?, ?, ?, ?)
			ON CONFLICT(site_id) DO UPDATE SET fields = excluded.fields,
				status = excluded.status,
				completed_at = excluded.completed_at
	`
	if _, err := r.db.ExecContext(ctx, query, d.SiteID, string(fields), d.Status, d.CompletedAt); err != nil {
		return fmt.Errorf("failed to upsert draft: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBySite(ctx context.Context, siteID string) (*models.QuestionnaireDraft, error) {
	row := r.db.QueryRowContext(ctx,
		`select site_id, fields, status, completed_at from drafts where site_id=?`, siteID)

	d := &models.QuestionnaireDraft{}
	var fields string
	err := row.Scan(&d.SiteID, &fields, &d.Status, &d.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select draft: %w", err)
	}
	if err := json.Unmarshal([]byte(fields), &d.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft fields: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, siteID string, status models.DraftStatus) error {
	res, err := r.db.ExecContext(ctx, `update drafts set status=? where site_id=?`, status, siteID)
	if err != nil {
		return fmt.Errorf("failed to update draft status: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, siteID string) error {
	res, err := r.db.ExecContext(ctx, `delete from drafts where site_id=?`, siteID)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}
