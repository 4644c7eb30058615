package reconcile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/sitesync/internal/common"
	"github.com/fieldops/sitesync/internal/logging"
	"github.com/fieldops/sitesync/internal/models"
	"github.com/fieldops/sitesync/internal/remote"
	"github.com/fieldops/sitesync/internal/repositories/artifacts"
	"github.com/fieldops/sitesync/internal/repositories/drafts"
	"github.com/fieldops/sitesync/internal/repositories/settings"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE artifacts (
  id               TEXT PRIMARY KEY,
  site_id          TEXT NOT NULL,
  requirement_id   TEXT NOT NULL DEFAULT '',
  requirement_name TEXT NOT NULL DEFAULT '',
  filename         TEXT NOT NULL,
  payload          BLOB,
  thumbnail        BLOB,
  size_bytes       INTEGER NOT NULL DEFAULT 0,
  captured_at      TIMESTAMP NOT NULL,
  status           TEXT NOT NULL DEFAULT 'pending',
  synced_at        TIMESTAMP
);

CREATE TABLE drafts (
  site_id      TEXT PRIMARY KEY,
  fields       TEXT NOT NULL DEFAULT '{}',
  status       TEXT NOT NULL DEFAULT 'pending',
  completed_at TIMESTAMP NOT NULL
);

CREATE TABLE settings (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`)
	require.NoError(t, err)
	return db
}

// fakeRemote is an in-memory Store whose listing is the map of site-root
// files.
type fakeRemote struct {
	files   map[string][]byte
	listErr error
	dlErr   error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{files: map[string][]byte{}}
}

func (f *fakeRemote) Ping(context.Context) error { return nil }

func (f *fakeRemote) ListFiles(_ context.Context, _ models.Site, _ string) ([]remote.FileInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []remote.FileInfo
	for name, data := range f.files {
		out = append(out, remote.FileInfo{Name: name, SizeBytes: int64(len(data))})
	}
	return out, nil
}

func (f *fakeRemote) UploadSmall(_ context.Context, _ models.Site, path string, data []byte) error {
	f.files[path] = data
	return nil
}

func (f *fakeRemote) UploadChunked(_ context.Context, _ models.Site, path string, data []byte, _ remote.ProgressFunc) error {
	f.files[path] = data
	return nil
}

func (f *fakeRemote) DownloadFile(_ context.Context, _ models.Site, path string) ([]byte, error) {
	if f.dlErr != nil {
		return nil, f.dlErr
	}
	data, ok := f.files[path]
	if !ok {
		return nil, common.ErrRemoteConflict
	}
	return data, nil
}

func (f *fakeRemote) DeleteFile(_ context.Context, _ models.Site, path string) error {
	delete(f.files, path)
	return nil
}

func (f *fakeRemote) ResolveExistingFolderName(_ context.Context, _ string, desired string) (string, error) {
	return desired, nil
}

type fixture struct {
	engine    *Engine
	artifacts artifacts.Repository
	drafts    drafts.Repository
	settings  settings.Repository
	remote    *fakeRemote
	now       time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := setupDB(t)

	f := &fixture{
		artifacts: artifacts.NewSQLiteRepository(db),
		drafts:    drafts.NewSQLiteRepository(db),
		settings:  settings.NewSQLiteRepository(db),
		remote:    newFakeRemote(),
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	log := logging.NewSlogLogger(slog.Default())
	f.engine = NewEngine(f.artifacts, f.drafts, f.settings, f.remote, 24*time.Hour, log)
	f.engine.now = func() time.Time { return f.now }
	return f
}

var site = models.Site{ID: "7312", Name: "North Yard", Phase: "2"}

func (f *fixture) addLocal(t *testing.T, filename string, status models.ArtifactStatus, capturedAt time.Time) string {
	t.Helper()
	rec := &models.ArtifactRecord{
		ID:         "art-" + filename + capturedAt.Format("150405"),
		SiteID:     site.ID,
		Filename:   filename,
		Payload:    []byte("img"),
		SizeBytes:  3,
		CapturedAt: capturedAt,
		Status:     status,
	}
	require.NoError(t, f.artifacts.CreateOrUpdate(context.Background(), rec))
	return rec.ID
}

func TestReconcile_ListingFailureAbortsWithoutMutation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.addLocal(t, "North Yard 7312 Fence 1.1_090000.jpg", models.ArtifactSynced, f.now.Add(-48*time.Hour))
	f.remote.listErr = errors.New("remote unreachable")

	_, err := f.engine.Reconcile(ctx, site)
	require.Error(t, err)

	metas, err := f.artifacts.GetMetaBySite(ctx, site.ID)
	require.NoError(t, err)
	assert.Len(t, metas, 1, "pass-level failure must leave local state untouched")
}

func TestReconcile_GraceWindow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	fresh := f.addLocal(t, "North Yard 7312 Fence 1.1_115900.jpg", models.ArtifactPending, f.now.Add(-time.Minute))
	stale := f.addLocal(t, "North Yard 7312 Fence 1.2_110000.jpg", models.ArtifactPending, f.now.Add(-25*time.Hour))

	res, err := f.engine.Reconcile(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	_, err = f.artifacts.GetByID(ctx, fresh)
	assert.NoError(t, err, "a minute-old pending artifact must survive")

	_, err = f.artifacts.GetByID(ctx, stale)
	assert.ErrorIs(t, err, common.ErrNotFound, "a 25h-old pending orphan must be deleted")
}

func TestReconcile_SyncedOrphanDeletedRegardlessOfAge(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	id := f.addLocal(t, "North Yard 7312 Gate 1.1_115000.jpg", models.ArtifactSynced, f.now.Add(-10*time.Minute))

	res, err := f.engine.Reconcile(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	_, err = f.artifacts.GetByID(ctx, id)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReconcile_DedupKeepsNewest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const fn = "North Yard 7312 Fence 1.1_090000.jpg"
	f.remote.files[fn] = []byte("img")

	older := f.addLocal(t, fn, models.ArtifactSynced, f.now.Add(-2*time.Hour))
	newer := f.addLocal(t, fn, models.ArtifactSynced, f.now.Add(-time.Hour))

	res, err := f.engine.Reconcile(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	_, err = f.artifacts.GetByID(ctx, newer)
	assert.NoError(t, err)
	_, err = f.artifacts.GetByID(ctx, older)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReconcile_PendingFlippedWhenPresentRemotely(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const fn = "North Yard 7312 Fence 1.1_090000.jpg"
	f.remote.files[fn] = []byte("img")
	id := f.addLocal(t, fn, models.ArtifactPending, f.now.Add(-time.Minute))

	res, err := f.engine.Reconcile(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)

	rec, err := f.artifacts.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactSynced, rec.Status)
	require.NotNil(t, rec.SyncedAt)
}

func TestReconcile_DownloadsRemoteOnlyImages(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	catalog, err := json.Marshal([]models.Requirement{
		{ID: "r1", Name: "Overall Compound"},
		{ID: "r2", Name: "Overall Compound 1"},
	})
	require.NoError(t, err)
	require.NoError(t, f.settings.Set(ctx, settings.KeyRequirementCatalog, string(catalog)))

	f.remote.files["North Yard 7312 Overall Compound 1 1.1_120000.jpg"] = []byte("remote-img")
	f.remote.files["notes.txt"] = []byte("not an image")

	res, err := f.engine.Reconcile(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Downloaded)

	metas, err := f.artifacts.GetMetaBySite(ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, models.ArtifactSynced, metas[0].Status)
	assert.Equal(t, "r2", metas[0].RequirementID, "longest requirement name must win")

	rec, err := f.artifacts.GetByID(ctx, metas[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("remote-img"), rec.Payload)
}

func TestReconcile_DownloadFailureSkipsCandidate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.files["North Yard 7312 Fence 1.1_120000.jpg"] = []byte("img")
	f.dlFail(t)

	res, err := f.engine.Reconcile(ctx, site)
	require.NoError(t, err, "per-candidate failures must not abort the pass")
	assert.Equal(t, 0, res.Downloaded)
}

func (f *fixture) dlFail(t *testing.T) {
	t.Helper()
	f.remote.dlErr = errors.New("timeout")
}

func TestReconcile_Idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.remote.files["North Yard 7312 Fence 1.1_120000.jpg"] = []byte("img")
	f.addLocal(t, "North Yard 7312 Fence 1.2_130000.jpg", models.ArtifactSynced, f.now.Add(-time.Hour))

	first, err := f.engine.Reconcile(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Deleted)
	assert.Equal(t, 1, first.Downloaded)

	second, err := f.engine.Reconcile(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Deleted)
	assert.Equal(t, 0, second.Downloaded)
}

func TestReconcile_QuestionnaireAuthority(t *testing.T) {
	ctx := context.Background()

	t.Run("synced draft deleted when remote absent", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.drafts.Upsert(ctx, &models.QuestionnaireDraft{
			SiteID:      site.ID,
			Fields:      map[string]string{"access": "ok"},
			Status:      models.DraftSynced,
			CompletedAt: f.now,
		}))

		_, err := f.engine.Reconcile(ctx, site)
		require.NoError(t, err)

		_, err = f.drafts.GetBySite(ctx, site.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("pending draft preserved as conflict", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.drafts.Upsert(ctx, &models.QuestionnaireDraft{
			SiteID:      site.ID,
			Fields:      map[string]string{"access": "ok"},
			Status:      models.DraftPending,
			CompletedAt: f.now,
		}))

		res, err := f.engine.Reconcile(ctx, site)
		require.NoError(t, err)
		assert.Equal(t, 1, res.DraftConflicts)

		_, err = f.drafts.GetBySite(ctx, site.ID)
		assert.NoError(t, err)
	})

	t.Run("synced draft kept when remote present", func(t *testing.T) {
		f := setup(t)
		f.remote.files[remote.QuestionnaireDoc] = []byte(`{}`)
		require.NoError(t, f.drafts.Upsert(ctx, &models.QuestionnaireDraft{
			SiteID:      site.ID,
			Fields:      map[string]string{"access": "ok"},
			Status:      models.DraftSynced,
			CompletedAt: f.now,
		}))

		_, err := f.engine.Reconcile(ctx, site)
		require.NoError(t, err)

		_, err = f.drafts.GetBySite(ctx, site.ID)
		assert.NoError(t, err)
	})
}
