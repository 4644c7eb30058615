// Package cli is the interactive front end used by field technicians: pick
// a site, capture photos against requirements, fill the questionnaire, and
// drive sync manually when needed. All state lives in the local store; the
// remote is only touched by the sync components.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fieldops/sitesync/internal/batch"
	"github.com/fieldops/sitesync/internal/common"
	"github.com/fieldops/sitesync/internal/config"
	"github.com/fieldops/sitesync/internal/logging"
	"github.com/fieldops/sitesync/internal/models"
	"github.com/fieldops/sitesync/internal/reconcile"
	"github.com/fieldops/sitesync/internal/remote"
	"github.com/fieldops/sitesync/internal/repositories/settings"
	"github.com/fieldops/sitesync/internal/services"
	"github.com/fieldops/sitesync/internal/store"
	"github.com/fieldops/sitesync/internal/syncer"

	_ "modernc.org/sqlite"
)

type App struct {
	config    *config.Config
	repos     *store.Repositories
	capture   *services.CaptureService
	processor *syncer.Processor
	engine    *reconcile.Engine
	planner   *batch.Planner
	watcher   *syncer.Watcher
	log       logging.Logger

	currentSite *models.Site
}

// refData is the shape of the optional reference-data file: the site list
// and the photo-requirement catalog, both maintained outside this tool.
type refData struct {
	Sites        []models.Site        `json:"sites"`
	Requirements []models.Requirement `json:"requirements"`
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.Default())

	repos, err := store.InitDatabase(ctx, cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing local store: %w", err)
	}

	remoteStore, err := remote.NewS3Store(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initializing remote store: %w", err)
	}

	app := &App{
		config:    cfg,
		repos:     repos,
		capture:   services.NewCaptureService(repos.DB, repos.Sites, repos.Artifacts, repos.Drafts, repos.Queue, log),
		processor: syncer.NewProcessor(repos.Queue, repos.Artifacts, repos.Drafts, remoteStore, log),
		engine:    reconcile.NewEngine(repos.Artifacts, repos.Drafts, repos.Settings, remoteStore, cfg.StalePendingAfter, log),
		planner:   batch.NewPlanner(repos.Artifacts, remoteStore, cfg.BatchSize, log),
		log:       log,
	}
	app.watcher = syncer.NewWatcher(remoteStore, app.processor, log)

	if cfg.SitesFile != "" {
		if err := app.loadRefData(ctx, cfg.SitesFile); err != nil {
			return nil, err
		}
	}
	app.restoreCurrentSite(ctx)

	return app, nil
}

// loadRefData replaces the site list and the cached requirement catalog
// from the reference-data file.
func (a *App) loadRefData(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading reference data: %w", err)
	}

	var ref refData
	if err := json.Unmarshal(data, &ref); err != nil {
		return fmt.Errorf("parsing reference data: %w", err)
	}

	if err := a.repos.Sites.ReplaceAll(ctx, ref.Sites); err != nil {
		return fmt.Errorf("storing sites: %w", err)
	}

	catalog, err := json.Marshal(ref.Requirements)
	if err != nil {
		return fmt.Errorf("encoding requirement catalog: %w", err)
	}
	if err := a.repos.Settings.Set(ctx, settings.KeyRequirementCatalog, string(catalog)); err != nil {
		return fmt.Errorf("storing requirement catalog: %w", err)
	}
	return nil
}

func (a *App) restoreCurrentSite(ctx context.Context) {
	id, err := a.repos.Settings.Get(ctx, settings.KeyCurrentSite)
	if err != nil {
		return
	}
	site, err := a.repos.Sites.GetByID(ctx, id)
	if err != nil {
		return
	}
	a.currentSite = site
}

func (a *App) setCurrentSite(ctx context.Context, id string) error {
	site, err := a.repos.Sites.GetByID(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("unknown site %q", id)
	}
	if err != nil {
		return err
	}
	a.currentSite = site
	return a.repos.Settings.Set(ctx, settings.KeyCurrentSite, id)
}

func (a *App) requirementCatalog(ctx context.Context) []models.Requirement {
	raw, err := a.repos.Settings.Get(ctx, settings.KeyRequirementCatalog)
	if err != nil {
		return nil
	}
	var catalog []models.Requirement
	if err := json.Unmarshal([]byte(raw), &catalog); err != nil {
		return nil
	}
	return catalog
}

func (a *App) Run(ctx context.Context) {
	defer a.repos.DB.Close()

	go a.watcher.Run(ctx, a.config.OnlineCheckInterval, a.config.StartupSyncDelay)

	a.Root(ctx)
}
