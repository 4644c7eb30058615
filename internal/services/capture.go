// Package services implements the user-facing operations of the sync core:
// capturing artifacts, queueing deletions and saving questionnaire drafts.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/sitesync/internal/common"
	"github.com/fieldops/sitesync/internal/dbx"
	"github.com/fieldops/sitesync/internal/logging"
	"github.com/fieldops/sitesync/internal/models"
	"github.com/fieldops/sitesync/internal/naming"
	"github.com/fieldops/sitesync/internal/repositories/artifacts"
	"github.com/fieldops/sitesync/internal/repositories/drafts"
	"github.com/fieldops/sitesync/internal/repositories/sites"
	"github.com/fieldops/sitesync/internal/repositories/syncqueue"
)

// photoExt is the content extension appended to built filenames so that
// local records and remote listing entries carry identical names.
const photoExt = ".jpg"

type CaptureService struct {
	db        *sql.DB
	sites     sites.Repository
	artifacts artifacts.Repository
	drafts    drafts.Repository
	queue     syncqueue.Repository
	log       logging.Logger
}

func NewCaptureService(
	db *sql.DB,
	sitesRepo sites.Repository,
	artifactsRepo artifacts.Repository,
	draftsRepo drafts.Repository,
	queueRepo syncqueue.Repository,
	log logging.Logger,
) *CaptureService {
	return &CaptureService{
		db:        db,
		sites:     sitesRepo,
		artifacts: artifactsRepo,
		drafts:    draftsRepo,
		queue:     queueRepo,
		log:       log,
	}
}

// CapturedArtifact records a new photograph for a site requirement. The
// record is written durably first with status pending; only then is the
// upload queued. Nothing is reflected anywhere before the write succeeds,
// so a failed write needs no rollback.
func (s *CaptureService) CapturedArtifact(ctx context.Context, siteID string, req models.Requirement, payload []byte) (*models.ArtifactRecord, error) {
	site, err := s.sites.GetByID(ctx, siteID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: site %q", common.ErrRemoteConflict, siteID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading site: %w", err)
	}

	existing, err := s.artifacts.FilenamesByRequirement(ctx, site.ID, req.Name)
	if err != nil {
		return nil, fmt.Errorf("loading existing filenames: %w", err)
	}

	now := time.Now().UTC()
	seq := naming.NextSequence(existing)
	filename := naming.BuildFilename(site.Name, site.ID, req.Name, seq, now) + photoExt

	rec := &models.ArtifactRecord{
		ID:              uuid.NewString(),
		SiteID:          site.ID,
		RequirementID:   req.ID,
		RequirementName: req.Name,
		Filename:        filename,
		Payload:         payload,
		SizeBytes:       int64(len(payload)),
		CapturedAt:      now,
		Status:          models.ArtifactPending,
	}

	if err := s.artifacts.CreateOrUpdate(ctx, rec); err != nil {
		return nil, fmt.Errorf("persisting artifact: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, models.QueueUploadPhoto, models.QueuePayload{
		ArtifactID: rec.ID,
		SiteID:     site.ID,
		Phase:      site.Phase,
		SiteName:   site.Name,
		Filename:   filename,
	}); err != nil {
		// The record is durable; the next reconciliation or a manual sync
		// picks it up even without a queue item.
		s.log.Warn(ctx, "failed to enqueue upload", "artifact", rec.ID, "error", err)
	}

	return rec, nil
}

// EnqueueDeletion removes the local record and queues deletion of the
// remote copy. The queue item survives restarts, so the remote file is
// removed even if the app dies before going online. The delete and the
// queue insert commit together: a failed enqueue keeps the record, so the
// deletion can be retried instead of being undone by the next
// reconciliation re-downloading the remote copy.
func (s *CaptureService) EnqueueDeletion(ctx context.Context, artifactID string) error {
	rec, err := s.artifacts.GetByID(ctx, artifactID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading artifact: %w", err)
	}

	site, err := s.sites.GetByID(ctx, rec.SiteID)
	if err != nil {
		return fmt.Errorf("loading site: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := artifacts.NewSQLiteRepository(tx).Delete(ctx, rec.ID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("deleting artifact: %w", err)
		}

		if _, err := syncqueue.NewSQLiteRepository(tx).Enqueue(ctx, models.QueueDeletePhoto, models.QueuePayload{
			SiteID:   site.ID,
			Phase:    site.Phase,
			SiteName: site.Name,
			Filename: rec.Filename,
		}); err != nil {
			return fmt.Errorf("enqueueing deletion: %w", err)
		}
		return nil
	})
}

// SaveQuestionnaire overwrites the site's draft and queues its upload.
func (s *CaptureService) SaveQuestionnaire(ctx context.Context, siteID string, fields map[string]string) error {
	site, err := s.sites.GetByID(ctx, siteID)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: site %q", common.ErrRemoteConflict, siteID)
	}
	if err != nil {
		return fmt.Errorf("loading site: %w", err)
	}

	draft := &models.QuestionnaireDraft{
		SiteID:      site.ID,
		Fields:      fields,
		Status:      models.DraftPending,
		CompletedAt: time.Now().UTC(),
	}
	if err := s.drafts.Upsert(ctx, draft); err != nil {
		return fmt.Errorf("persisting draft: %w", err)
	}

	if _, err := s.queue.Enqueue(ctx, models.QueueUploadQuestionnaire, models.QueuePayload{
		SiteID:   site.ID,
		Phase:    site.Phase,
		SiteName: site.Name,
	}); err != nil {
		return fmt.Errorf("enqueueing questionnaire upload: %w", err)
	}
	return nil
}
