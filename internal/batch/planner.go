// Package batch uploads all pending artifacts of a site as size-bounded
// archives, one archive per requirement-category chunk. The archive is the
// unit of atomicity: its members flip to synced together after the upload
// succeeds, or all stay pending.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/fieldops/sitesync/internal/common"
	"github.com/fieldops/sitesync/internal/logging"
	"github.com/fieldops/sitesync/internal/models"
	"github.com/fieldops/sitesync/internal/remote"
	"github.com/fieldops/sitesync/internal/repositories/artifacts"
)

// uploadsFolder is the site subfolder receiving batch archives.
const uploadsFolder = "uploads"

// maxReportedErrors caps the error messages carried back to the caller.
const maxReportedErrors = 3

// Result aggregates one planner run.
type Result struct {
	Uploaded      int
	FailedBatches int
	Skipped       int
	Errors        []string
}

type Planner struct {
	artifacts artifacts.Repository
	remote    remote.Store
	log       logging.Logger
	batchSize int

	now func() time.Time
}

func NewPlanner(artifactsRepo artifacts.Repository, store remote.Store, batchSize int, log logging.Logger) *Planner {
	return &Planner{
		artifacts: artifactsRepo,
		remote:    store,
		log:       log,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// UploadAllPending groups the site's pending artifacts by requirement,
// splits each group at the batch cap and uploads one uncompressed archive
// per chunk through the chunked protocol. Payloads are loaded one artifact
// at a time, never a whole site's worth at once.
func (p *Planner) UploadAllPending(ctx context.Context, site models.Site) (Result, error) {
	metas, err := p.artifacts.GetMetaBySiteStatus(ctx, site.ID, models.ArtifactPending)
	if err != nil {
		return Result{}, fmt.Errorf("loading pending artifacts: %w", err)
	}

	groups := make(map[string][]models.ArtifactMeta)
	for _, m := range metas {
		groups[m.RequirementName] = append(groups[m.RequirementName], m)
	}

	categories := make([]string, 0, len(groups))
	for name := range groups {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	var res Result
	for _, category := range categories {
		token := SanitizeCategory(category)
		if token == "" {
			token = "uncategorized"
		}
		chunks := chunk(groups[category], p.batchSize)

		for i, members := range chunks {
			archiveName := fmt.Sprintf("%s_%d_%s.zip", token, i+1, p.now().UTC().Format("150405"))
			p.uploadChunk(ctx, site, archiveName, members, &res)
		}
	}

	return res, nil
}

// uploadChunk builds and uploads one archive, then marks its members
// synced. A failed upload leaves every member pending for the next run.
func (p *Planner) uploadChunk(ctx context.Context, site models.Site, archiveName string, members []models.ArtifactMeta, res *Result) {
	files := make([]ArchiveFile, 0, len(members))
	loaded := make([]string, 0, len(members))

	for _, m := range members {
		rec, err := p.artifacts.GetByID(ctx, m.ID)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			p.fail(res, fmt.Errorf("loading artifact %s: %w", m.ID, err))
			continue
		}

		data, ok := rec.UploadBytes()
		if !ok {
			res.Skipped++
			p.log.Warn(ctx, "excluding artifact from batch",
				"artifact", rec.ID, "file", rec.Filename, "error", common.ErrCorruptLocalRecord)
			continue
		}
		files = append(files, ArchiveFile{Name: rec.Filename, Data: data})
		loaded = append(loaded, rec.ID)
	}

	if len(files) == 0 {
		return
	}

	data, err := BuildArchive(files, p.now().UTC())
	if err != nil {
		res.FailedBatches++
		p.fail(res, fmt.Errorf("building %q: %w", archiveName, err))
		return
	}

	err = p.remote.UploadChunked(ctx, site, path.Join(uploadsFolder, archiveName), data, func(sent, total int64) {
		p.log.Debug(ctx, "archive upload progress", "archive", archiveName, "sent", sent, "total", total)
	})
	if err != nil {
		res.FailedBatches++
		p.fail(res, fmt.Errorf("uploading %q: %w", archiveName, err))
		return
	}

	now := p.now().UTC()
	for _, id := range loaded {
		err := p.artifacts.UpdateStatus(ctx, id, models.ArtifactSynced, &now)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			p.fail(res, fmt.Errorf("marking %s synced: %w", id, err))
			continue
		}
		res.Uploaded++
	}
}

func (p *Planner) fail(res *Result, err error) {
	if len(res.Errors) < maxReportedErrors {
		res.Errors = append(res.Errors, err.Error())
	}
}

// chunk splits items into slices of at most size elements.
func chunk(items []models.ArtifactMeta, size int) [][]models.ArtifactMeta {
	if size <= 0 {
		size = 1
	}
	var out [][]models.ArtifactMeta
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}

// SanitizeCategory turns a requirement name into a filesystem-safe archive
// token: lowercase, runs of non-alphanumerics collapsed to a single
// underscore, leading/trailing underscores trimmed.
func SanitizeCategory(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
