package sites

import (
	"context"
	"database/sql"
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

func (r *SQLiteRepository) ReplaceAll(ctx context.Context, sites []models.Site) error {
	if _, err := r.db.ExecContext(ctx, `delete from sites`); err != nil {
		return fmt.Errorf("failed to clear sites: %w", err)
	}
	query := `insert into sites (id, name, phase, address) values (?, ?, ?, ?)`
	for _, s := range sites {
		if _, err := r.db.ExecContext(ctx, query, s.ID, s.Name, s.Phase, s.Address); err != nil {
			return fmt.Errorf("failed to insert site: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Site, error) {
	rows, err := r.db.QueryContext(ctx, `select id, name, phase, address from sites order by id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select sites: %w", err)
	}
	defer rows.Close()

	var result []models.Site
	for rows.Next() {
		var s models.Site
		if err := rows.Scan(&s.ID, &s.Name, &s.Phase, &s.Address); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Site, error) {
	row := r.db.QueryRowContext(ctx, `select id, name, phase, address from sites where id=?`, id)

	s := &models.Site{}
	err := row.Scan(&s.ID, &s.Name, &s.Phase, &s.Address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select site: %w", err)
	}
	return s, nil
}
