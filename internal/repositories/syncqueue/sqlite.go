package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

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

func (r *SQLiteRepository) Enqueue(ctx context.Context, itemType models.QueueItemType, payload models.QueuePayload) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal queue payload: %w", err)
	}

	query := `insert into sync_queue (type, payload, created_at, attempts) values (?, ?, ?, 0)`
	res, err := r.db.ExecContext(ctx, query, itemType, string(data), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.SyncQueueItem, error) {
	query := `select id, type, payload, created_at, attempts from sync_queue order by id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select queue items: %w", err)
	}
	defer rows.Close()

	var result []models.SyncQueueItem
	for rows.Next() {
		var item models.SyncQueueItem
		var payload string
		if err := rows.Scan(&item.ID, &item.Type, &payload, &item.CreatedAt, &item.Attempts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &item.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue payload: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `delete from sync_queue where id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
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

func (r *SQLiteRepository) IncrementAttempts(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `update sync_queue set attempts=attempts+1 where id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
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
