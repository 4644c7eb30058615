package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops/sitesync/internal/common"
	"github.com/fieldops/sitesync/internal/dbx"
	"github.com/fieldops/sitesync/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const metaColumns = `id, site_id, requirement_id, requirement_name, filename, size_bytes, captured_at, status, synced_at`

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, a *models.ArtifactRecord) error {
	query := ` INSERT INTO artifacts (id, site_id, requirement_id, requirement_name, filename, payload, thumbnail, size_bytes, captured_at, status, synced_at)
			values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET site_id = excluded.site_id,
				requirement_id = excluded.requirement_id,
				requirement_name = excluded.requirement_name,
				filename = excluded.filename,
				payload = excluded.payload,
				thumbnail = excluded.thumbnail,
				size_bytes = excluded.size_bytes,
				captured_at = excluded.captured_at,
				status = excluded.status,
				synced_at = excluded.synced_at
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.SiteID, a.RequirementID, a.RequirementName, a.Filename,
		a.Payload, a.Thumbnail, a.SizeBytes, a.CapturedAt, a.Status, nullableTime(a.SyncedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert artifact: %w", mapWriteError(err))
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.ArtifactRecord, error) {
	query := `select id, site_id, requirement_id, requirement_name, filename, payload, thumbnail, size_bytes, captured_at, status, synced_at
			from artifacts where id=?`
	row := r.db.QueryRowContext(ctx, query, id)

	a := &models.ArtifactRecord{}
	var syncedAt sql.NullTime
	err := row.Scan(&a.ID, &a.SiteID, &a.RequirementID, &a.RequirementName, &a.Filename,
		&a.Payload, &a.Thumbnail, &a.SizeBytes, &a.CapturedAt, &a.Status, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select artifact: %w", err)
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		a.SyncedAt = &t
	}
	return a, nil
}

func (r *SQLiteRepository) GetMetaBySite(ctx context.Context, siteID string) ([]models.ArtifactMeta, error) {
	query := `select ` + metaColumns + ` from artifacts where site_id=?`
	return r.queryMeta(ctx, query, siteID)
}

func (r *SQLiteRepository) GetMetaBySiteStatus(ctx context.Context, siteID string, status models.ArtifactStatus) ([]models.ArtifactMeta, error) {
	query := `select ` + metaColumns + ` from artifacts where site_id=? and status=?`
	return r.queryMeta(ctx, query, siteID, status)
}

func (r *SQLiteRepository) queryMeta(ctx context.Context, query string, args ...any) ([]models.ArtifactMeta, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select artifacts: %w", err)
	}
	defer rows.Close()

	var result []models.ArtifactMeta
	for rows.Next() {
		var m models.ArtifactMeta
		var syncedAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.SiteID, &m.RequirementID, &m.RequirementName,
			&m.Filename, &m.SizeBytes, &m.CapturedAt, &m.Status, &syncedAt); err != nil {
			return nil, err
		}
		if syncedAt.Valid {
			t := syncedAt.Time
			m.SyncedAt = &t
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) FilenamesByRequirement(ctx context.Context, siteID, requirementName string) ([]string, error) {
	query := `select filename from artifacts where site_id=? and requirement_name=?`
	rows, err := r.db.QueryContext(ctx, query, siteID, requirementName)
	if err != nil {
		return nil, fmt.Errorf("failed to select filenames: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			return nil, err
		}
		result = append(result, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status models.ArtifactStatus, syncedAt *time.Time) error {
	query := `update artifacts set status=?, synced_at=? where id=?`
	res, err := r.db.ExecContext(ctx, query, status, nullableTime(syncedAt), id)
	if err != nil {
		return fmt.Errorf("failed to update artifact status: %w", err)
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

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	query := `delete from artifacts where id=?`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
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

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `delete from artifacts`); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// mapWriteError turns SQLITE_FULL-class failures into ErrStorageExhausted so
// the capture flow can reject the artifact immediately.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "disk is full") || strings.Contains(msg, "database or disk is full") {
		return fmt.Errorf("%w: %v", common.ErrStorageExhausted, err)
	}
	return err
}
