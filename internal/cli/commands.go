package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fieldops/sitesync/internal/models"
)

func (a *App) Sites(ctx context.Context) {
	sites, err := a.repos.Sites.GetAll(ctx)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	for _, s := range sites {
		fmt.Printf("%s  %s (%s)\n", s.ID, s.Name, s.Phase)
	}
}

func (a *App) Requirements(ctx context.Context) {
	for _, r := range a.requirementCatalog(ctx) {
		fmt.Printf("%s  %s\n", r.ID, r.Name)
	}
}

func (a *App) Capture(ctx context.Context, reqID, file string) {
	if a.currentSite == nil {
		fmt.Println("select a site first: site <id>")
		return
	}

	var req *models.Requirement
	for _, r := range a.requirementCatalog(ctx) {
		if r.ID == reqID {
			req = &r
			break
		}
	}
	if req == nil {
		fmt.Printf("unknown requirement %q\n", reqID)
		return
	}

	payload, err := os.ReadFile(file)
	if err != nil {
		fmt.Printf("error reading %s: %v\n", file, err)
		return
	}

	rec, err := a.capture.CapturedArtifact(ctx, a.currentSite.ID, *req, payload)
	if err != nil {
		fmt.Printf("capture failed: %v\n", err)
		return
	}
	fmt.Printf("captured %s (%s)\n", rec.Filename, rec.ID)
}

func (a *App) List(ctx context.Context) {
	if a.currentSite == nil {
		fmt.Println("select a site first: site <id>")
		return
	}
	// Metadata-only scan; payloads stay on disk.
	metas, err := a.repos.Artifacts.GetMetaBySite(ctx, a.currentSite.ID)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	for _, m := range metas {
		fmt.Printf("%-8s %-36s %s\n", m.Status, m.ID, m.Filename)
	}
}

func (a *App) Delete(ctx context.Context, artifactID string) {
	if err := a.capture.EnqueueDeletion(ctx, artifactID); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("deleted locally, remote removal queued")
}

func (a *App) Form(ctx context.Context, args []string) {
	if a.currentSite == nil {
		fmt.Println("select a site first: site <id>")
		return
	}
	if len(args) == 0 {
		fmt.Println("usage: form <name=value ...>")
		return
	}

	fields := make(map[string]string, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			fmt.Printf("fields must be name=value, got %q\n", arg)
			return
		}
		fields[parts[0]] = parts[1]
	}

	if err := a.capture.SaveQuestionnaire(ctx, a.currentSite.ID, fields); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("questionnaire saved, upload queued")
}

func (a *App) Queue(ctx context.Context) {
	items, err := a.repos.Queue.GetAll(ctx)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	for _, item := range items {
		fmt.Printf("%4d %-22s attempts=%d %s\n", item.ID, item.Type, item.Attempts, item.Payload.Filename)
	}
	fmt.Printf("%d queued\n", len(items))
}

func (a *App) Sync(ctx context.Context) {
	res, err := a.processor.Drain(ctx)
	if err != nil {
		fmt.Printf("sync failed: %v\n", err)
		return
	}
	fmt.Printf("synced=%d failed=%d\n", res.Synced, res.Failed)
}

func (a *App) Reconcile(ctx context.Context) {
	if a.currentSite == nil {
		fmt.Println("select a site first: site <id>")
		return
	}
	res, err := a.engine.Reconcile(ctx, *a.currentSite)
	if err != nil {
		fmt.Printf("reconcile failed: %v\n", err)
		return
	}
	fmt.Printf("deleted=%d downloaded=%d\n", res.Deleted, res.Downloaded)
	if res.DraftConflicts > 0 {
		fmt.Printf("%d questionnaire draft(s) kept locally; re-save with form to re-upload\n", res.DraftConflicts)
	}
}

func (a *App) Upload(ctx context.Context) {
	if a.currentSite == nil {
		fmt.Println("select a site first: site <id>")
		return
	}
	res, err := a.planner.UploadAllPending(ctx, *a.currentSite)
	if err != nil {
		fmt.Printf("upload failed: %v\n", err)
		return
	}
	fmt.Printf("uploaded=%d failedBatches=%d skipped=%d\n", res.Uploaded, res.FailedBatches, res.Skipped)
	for _, msg := range res.Errors {
		fmt.Printf("  %s\n", msg)
	}
}
