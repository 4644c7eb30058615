// Package syncer drains the durable sync queue against the remote store.
// Draining is strictly sequential: one in-flight remote operation at a time,
// and overlapping triggers collapse into a single drain.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fieldops/sitesync/internal/common"
	"github.com/fieldops/sitesync/internal/logging"
	"github.com/fieldops/sitesync/internal/models"
	"github.com/fieldops/sitesync/internal/remote"
	"github.com/fieldops/sitesync/internal/repositories/artifacts"
	"github.com/fieldops/sitesync/internal/repositories/drafts"
	"github.com/fieldops/sitesync/internal/repositories/syncqueue"
)

// DrainResult aggregates one queue drain.
type DrainResult struct {
	Synced int
	Failed int
}

type Processor struct {
	queue     syncqueue.Repository
	artifacts artifacts.Repository
	drafts    drafts.Repository
	remote    remote.Store
	log       logging.Logger

	// running ensures a single drain at a time without blocking triggers.
	running *semaphore.Weighted
}

func NewProcessor(
	queueRepo syncqueue.Repository,
	artifactsRepo artifacts.Repository,
	draftsRepo drafts.Repository,
	store remote.Store,
	log logging.Logger,
) *Processor {
	return &Processor{
		queue:     queueRepo,
		artifacts: artifactsRepo,
		drafts:    draftsRepo,
		remote:    store,
		log:       log,
		running:   semaphore.NewWeighted(1),
	}
}

// Drain processes every queued item in creation order. Items are deleted
// only after their remote operation succeeds; failures are logged, bump the
// attempt counter and leave the item queued for the next trigger. A drain
// already in flight makes Drain return immediately with an empty result.
func (p *Processor) Drain(ctx context.Context) (DrainResult, error) {
	if !p.running.TryAcquire(1) {
		p.log.Debug(ctx, "drain already in flight, skipping")
		return DrainResult{}, nil
	}
	defer p.running.Release(1)

	items, err := p.queue.GetAll(ctx)
	if err != nil {
		return DrainResult{}, fmt.Errorf("loading queue: %w", err)
	}

	var res DrainResult
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := p.dispatch(ctx, item); err != nil {
			res.Failed++
			p.log.Warn(ctx, "queue item failed",
				"id", item.ID, "type", item.Type, "attempts", item.Attempts+1, "error", err)
			if ierr := p.queue.IncrementAttempts(ctx, item.ID); ierr != nil {
				p.log.Error(ctx, "failed to bump attempts", "id", item.ID, "error", ierr)
			}
			continue
		}

		if err := p.queue.Delete(ctx, item.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			p.log.Error(ctx, "failed to remove consumed item", "id", item.ID, "error", err)
		}
		res.Synced++
	}

	p.log.Info(ctx, "drain finished", "synced", res.Synced, "failed", res.Failed)
	return res, nil
}

func (p *Processor) dispatch(ctx context.Context, item models.SyncQueueItem) error {
	switch item.Type {
	case models.QueueUploadPhoto:
		return p.uploadPhoto(ctx, item.Payload)
	case models.QueueUploadQuestionnaire:
		return p.uploadQuestionnaire(ctx, item.Payload)
	case models.QueueDeletePhoto:
		return p.deletePhoto(ctx, item.Payload)
	default:
		return fmt.Errorf("unknown queue item type %q", item.Type)
	}
}

// siteFromPayload rebuilds the remote addressing context carried by the
// queue item, so a drain does not depend on the site table.
func siteFromPayload(pl models.QueuePayload) models.Site {
	return models.Site{ID: pl.SiteID, Name: pl.SiteName, Phase: pl.Phase}
}

func (p *Processor) uploadPhoto(ctx context.Context, pl models.QueuePayload) error {
	rec, err := p.artifacts.GetByID(ctx, pl.ArtifactID)
	if errors.Is(err, common.ErrNotFound) {
		// Deleted locally between enqueue and drain; nothing to upload.
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading artifact: %w", err)
	}
	if rec.Status == models.ArtifactSynced {
		return nil
	}

	data, ok := rec.UploadBytes()
	if !ok {
		return fmt.Errorf("%w: artifact %s", common.ErrCorruptLocalRecord, rec.ID)
	}

	site := siteFromPayload(pl)
	if err := p.remote.UploadChunked(ctx, site, rec.Filename, data, nil); err != nil {
		if uerr := p.artifacts.UpdateStatus(ctx, rec.ID, models.ArtifactError, nil); uerr != nil && !errors.Is(uerr, common.ErrNotFound) {
			p.log.Error(ctx, "failed to mark artifact error", "artifact", rec.ID, "error", uerr)
		}
		return fmt.Errorf("uploading %q: %w", rec.Filename, err)
	}

	now := time.Now().UTC()
	err = p.artifacts.UpdateStatus(ctx, rec.ID, models.ArtifactSynced, &now)
	if errors.Is(err, common.ErrNotFound) {
		// Deleted during the upload; reconciliation will remove the remote
		// copy if the user also queued a deletion.
		return nil
	}
	return err
}

func (p *Processor) uploadQuestionnaire(ctx context.Context, pl models.QueuePayload) error {
	draft, err := p.drafts.GetBySite(ctx, pl.SiteID)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading draft: %w", err)
	}

	doc, err := json.Marshal(struct {
		SiteID      string            `json:"site_id"`
		Fields      map[string]string `json:"fields"`
		CompletedAt time.Time         `json:"completed_at"`
	}{draft.SiteID, draft.Fields, draft.CompletedAt})
	if err != nil {
		return fmt.Errorf("marshalling questionnaire: %w", err)
	}

	site := siteFromPayload(pl)
	if err := p.remote.UploadSmall(ctx, site, remote.QuestionnaireDoc, doc); err != nil {
		return fmt.Errorf("uploading questionnaire: %w", err)
	}

	err = p.drafts.UpdateStatus(ctx, draft.SiteID, models.DraftSynced)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	return err
}

func (p *Processor) deletePhoto(ctx context.Context, pl models.QueuePayload) error {
	site := siteFromPayload(pl)
	// DeleteFile is idempotent: an absent remote file still counts as done.
	if err := p.remote.DeleteFile(ctx, site, pl.Filename); err != nil {
		return fmt.Errorf("deleting %q: %w", pl.Filename, err)
	}
	return nil
}
