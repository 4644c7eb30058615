package drafts

import (
	"context"

	"github.com/fieldops/sitesync/internal/models"
)

// Repository stores questionnaire drafts, one per site, overwritten on each
// save. No versioning: the latest save wins locally, and the remote copy is
// authoritative once a draft reaches synced.
type Repository interface {
	// Upsert writes the draft for its site, replacing any previous one.
	Upsert(ctx context.Context, d *models.QuestionnaireDraft) error

	// GetBySite returns the site's draft or common.ErrNotFound.
	GetBySite(ctx context.Context, siteID string) (*models.QuestionnaireDraft, error)

	// UpdateStatus sets the draft's sync status.
	UpdateStatus(ctx context.Context, siteID string, status models.DraftStatus) error

	// Delete removes the site's draft.
	Delete(ctx context.Context, siteID string) error
}
