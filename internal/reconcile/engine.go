// Package reconcile brings the local store into agreement with the remote
// listing for one site without losing in-progress work.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/sitesync/internal/common"
	"github.com/fieldops/sitesync/internal/logging"
	"github.com/fieldops/sitesync/internal/models"
	"github.com/fieldops/sitesync/internal/naming"
	"github.com/fieldops/sitesync/internal/remote"
	"github.com/fieldops/sitesync/internal/repositories/artifacts"
	"github.com/fieldops/sitesync/internal/repositories/drafts"
	"github.com/fieldops/sitesync/internal/repositories/settings"
)

// Result summarizes one reconciliation pass.
type Result struct {
	// Deleted counts local records removed (duplicates and orphans).
	Deleted int
	// Downloaded counts remote artifacts fetched and persisted locally.
	Downloaded int
	// DraftConflicts counts pending questionnaire drafts whose remote
	// counterpart is absent. They are preserved for manual resolution.
	DraftConflicts int
}

type Engine struct {
	artifacts artifacts.Repository
	drafts    drafts.Repository
	settings  settings.Repository
	remote    remote.Store
	log       logging.Logger

	// grace is the stale-pending window: a pending record younger than
	// this is never deleted, so a pass cannot race a capture's upload.
	grace time.Duration

	// now is replaceable in tests.
	now func() time.Time
}

func NewEngine(
	artifactsRepo artifacts.Repository,
	draftsRepo drafts.Repository,
	settingsRepo settings.Repository,
	store remote.Store,
	grace time.Duration,
	log logging.Logger,
) *Engine {
	return &Engine{
		artifacts: artifactsRepo,
		drafts:    draftsRepo,
		settings:  settingsRepo,
		remote:    store,
		log:       log,
		grace:     grace,
		now:       time.Now,
	}
}

// Reconcile runs one pass for the site. A failure listing the remote aborts
// the pass with no local mutation; per-candidate failures afterwards are
// logged and skipped.
func (e *Engine) Reconcile(ctx context.Context, site models.Site) (Result, error) {
	listing, err := e.remote.ListFiles(ctx, site, "")
	if err != nil {
		return Result{}, fmt.Errorf("listing remote files: %w", err)
	}

	remoteFiles := make(map[string]remote.FileInfo, len(listing))
	for _, fi := range listing {
		if !fi.IsFolder {
			remoteFiles[fi.Name] = fi
		}
	}

	metas, err := e.artifacts.GetMetaBySite(ctx, site.ID)
	if err != nil {
		return Result{}, fmt.Errorf("loading local artifacts: %w", err)
	}

	var res Result
	now := e.now().UTC()

	// Dedup must run before delete/download classification so duplicate
	// records never mask a remote file or survive as orphans.
	local := e.dedup(ctx, metas, &res)

	for _, m := range local {
		if _, ok := remoteFiles[m.Filename]; ok {
			if m.Status == models.ArtifactPending {
				// The upload finished remotely but the local status update
				// was lost, e.g. the app was killed mid-operation.
				e.markSynced(ctx, m.ID, now)
			}
			continue
		}

		stale := now.Sub(m.CapturedAt) > e.grace
		if m.Status != models.ArtifactPending || stale {
			if err := e.artifacts.Delete(ctx, m.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
				e.log.Warn(ctx, "failed to delete orphan", "artifact", m.ID, "error", err)
				continue
			}
			res.Deleted++
		}
	}

	catalog := e.loadCatalog(ctx)
	for name, fi := range remoteFiles {
		if !naming.IsImageFile(name) {
			continue
		}
		if _, ok := local[name]; ok {
			continue
		}
		if e.download(ctx, site, name, fi, catalog, now) {
			res.Downloaded++
		}
	}

	e.reconcileQuestionnaire(ctx, site, remoteFiles, &res)

	e.log.Debug(ctx, "reconciliation pass finished",
		"site", site.ID, "deleted", res.Deleted, "downloaded", res.Downloaded)
	return res, nil
}

// dedup keeps, per filename, only the record with the latest capture time
// and deletes the rest. Returns the surviving records keyed by filename.
func (e *Engine) dedup(ctx context.Context, metas []models.ArtifactMeta, res *Result) map[string]models.ArtifactMeta {
	survivors := make(map[string]models.ArtifactMeta, len(metas))
	for _, m := range metas {
		prev, ok := survivors[m.Filename]
		if !ok {
			survivors[m.Filename] = m
			continue
		}

		older := prev
		if m.CapturedAt.After(prev.CapturedAt) {
			survivors[m.Filename] = m
		} else {
			older = m
		}
		if err := e.artifacts.Delete(ctx, older.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			e.log.Warn(ctx, "failed to delete duplicate", "artifact", older.ID, "error", err)
			continue
		}
		res.Deleted++
	}
	return survivors
}

// markSynced flips a pending record to synced, re-reading the latest state
// first so a concurrent local deletion is not resurrected.
func (e *Engine) markSynced(ctx context.Context, id string, now time.Time) {
	rec, err := e.artifacts.GetByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return
	}
	if err != nil {
		e.log.Warn(ctx, "failed to refresh record", "artifact", id, "error", err)
		return
	}
	if rec.Status != models.ArtifactPending {
		return
	}
	if err := e.artifacts.UpdateStatus(ctx, id, models.ArtifactSynced, &now); err != nil && !errors.Is(err, common.ErrNotFound) {
		e.log.Warn(ctx, "failed to mark synced", "artifact", id, "error", err)
	}
}

// download fetches one remote artifact, resolves its requirement from the
// catalog and persists it as synced. Failures are logged and skipped.
func (e *Engine) download(ctx context.Context, site models.Site, name string, fi remote.FileInfo, catalog []models.Requirement, now time.Time) bool {
	data, err := e.remote.DownloadFile(ctx, site, name)
	if err != nil {
		e.log.Warn(ctx, "failed to download artifact", "file", name, "error", err)
		return false
	}

	capturedAt := fi.ModifiedAt
	if capturedAt.IsZero() {
		capturedAt = now
	}

	rec := &models.ArtifactRecord{
		ID:         uuid.NewString(),
		SiteID:     site.ID,
		Filename:   name,
		Payload:    data,
		SizeBytes:  int64(len(data)),
		CapturedAt: capturedAt,
		Status:     models.ArtifactSynced,
		SyncedAt:   &now,
	}
	if req, ok := naming.ResolveRequirement(name, catalog); ok {
		rec.RequirementID = req.ID
		rec.RequirementName = req.Name
	}

	if err := e.artifacts.CreateOrUpdate(ctx, rec); err != nil {
		e.log.Warn(ctx, "failed to persist downloaded artifact", "file", name, "error", err)
		return false
	}
	return true
}

// reconcileQuestionnaire applies the remote-is-authoritative rule: a synced
// local draft with no remote document was intentionally reset and is
// deleted; a pending draft with no remote document is a conflict the user
// resolves manually.
func (e *Engine) reconcileQuestionnaire(ctx context.Context, site models.Site, remoteFiles map[string]remote.FileInfo, res *Result) {
	if _, ok := remoteFiles[remote.QuestionnaireDoc]; ok {
		return
	}

	draft, err := e.drafts.GetBySite(ctx, site.ID)
	if errors.Is(err, common.ErrNotFound) {
		return
	}
	if err != nil {
		e.log.Warn(ctx, "failed to load draft", "site", site.ID, "error", err)
		return
	}

	switch draft.Status {
	case models.DraftSynced:
		if err := e.drafts.Delete(ctx, site.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			e.log.Warn(ctx, "failed to delete reset draft", "site", site.ID, "error", err)
			return
		}
		e.log.Info(ctx, "questionnaire reset remotely, local draft removed", "site", site.ID)
	case models.DraftPending:
		res.DraftConflicts++
	}
}

// loadCatalog reads the cached requirement catalog from settings. An
// absent or unreadable catalog only disables requirement resolution for
// downloaded files; the pass still proceeds.
func (e *Engine) loadCatalog(ctx context.Context) []models.Requirement {
	raw, err := e.settings.Get(ctx, settings.KeyRequirementCatalog)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		e.log.Warn(ctx, "failed to load requirement catalog", "error", err)
		return nil
	}

	var catalog []models.Requirement
	if err := json.Unmarshal([]byte(raw), &catalog); err != nil {
		e.log.Warn(ctx, "failed to parse requirement catalog", "error", err)
		return nil
	}
	return catalog
}
