package sites

import (
	"context"

	"github.com/fieldops/sitesync/internal/models"
)

// Repository holds read-only site reference data. The site list is loaded
// from an external source and replaced wholesale on refresh; the sync core
// never mutates individual sites.
type Repository interface {
	// ReplaceAll swaps the whole site list in one transaction.
	ReplaceAll(ctx context.Context, sites []models.Site) error

	// GetAll lists every site.
	GetAll(ctx context.Context) ([]models.Site, error)

	// GetByID returns one site or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Site, error)
}
