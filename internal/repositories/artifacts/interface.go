package artifacts

import (
	"context"
	"time"

	"github.com/fieldops/sitesync/internal/models"
)

// Repository describes CRUD and workflow operations for artifact records.
// Implementations are backed by the local SQLite database.
//
// The metadata-only methods never read the payload or thumbnail columns.
// Every scan over a site's artifacts (listing, reconciliation, batch
// grouping) must go through them; loading full blobs for a whole site is
// how the store runs out of memory on high-photo-count sites.
type Repository interface {
	// CreateOrUpdate upserts an artifact record by id.
	CreateOrUpdate(ctx context.Context, a *models.ArtifactRecord) error

	// GetByID returns the full record including payload and thumbnail.
	// Returns common.ErrNotFound if no such record exists.
	GetByID(ctx context.Context, id string) (*models.ArtifactRecord, error)

	// GetMetaBySite returns metadata projections for every record of a site.
	GetMetaBySite(ctx context.Context, siteID string) ([]models.ArtifactMeta, error)

	// GetMetaBySiteStatus returns metadata projections filtered by status.
	GetMetaBySiteStatus(ctx context.Context, siteID string, status models.ArtifactStatus) ([]models.ArtifactMeta, error)

	// FilenamesByRequirement returns the filenames of every record captured
	// for a (site, requirement name) pair, used for sequence derivation.
	FilenamesByRequirement(ctx context.Context, siteID, requirementName string) ([]string, error)

	// UpdateStatus sets the record's status and synced-at time.
	UpdateStatus(ctx context.Context, id string, status models.ArtifactStatus, syncedAt *time.Time) error

	// Delete removes the record.
	Delete(ctx context.Context, id string) error

	// Clear removes every record. Used by tests and full resets.
	Clear(ctx context.Context) error
}
