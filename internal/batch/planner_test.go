package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/sitesync/internal/logging"
	"github.com/fieldops/sitesync/internal/models"
	"github.com/fieldops/sitesync/internal/remote"
	"github.com/fieldops/sitesync/internal/repositories/artifacts"

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
`)
	require.NoError(t, err)
	return db
}

// uploadRecorder captures chunked uploads and can fail selected archives.
type uploadRecorder struct {
	uploads  map[string][]byte
	failWith func(path string) error
}

func newUploadRecorder() *uploadRecorder {
	return &uploadRecorder{uploads: map[string][]byte{}}
}

func (u *uploadRecorder) Ping(context.Context) error { return nil }
func (u *uploadRecorder) ListFiles(context.Context, models.Site, string) ([]remote.FileInfo, error) {
	return nil, nil
}
func (u *uploadRecorder) UploadSmall(_ context.Context, _ models.Site, path string, data []byte) error {
	return u.UploadChunked(context.Background(), models.Site{}, path, data, nil)
}
func (u *uploadRecorder) UploadChunked(_ context.Context, _ models.Site, path string, data []byte, onProgress remote.ProgressFunc) error {
	if u.failWith != nil {
		if err := u.failWith(path); err != nil {
			return err
		}
	}
	if onProgress != nil {
		onProgress(int64(len(data)), int64(len(data)))
	}
	u.uploads[path] = data
	return nil
}
func (u *uploadRecorder) DownloadFile(context.Context, models.Site, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}
func (u *uploadRecorder) DeleteFile(context.Context, models.Site, string) error { return nil }
func (u *uploadRecorder) ResolveExistingFolderName(_ context.Context, _ string, desired string) (string, error) {
	return desired, nil
}

var site = models.Site{ID: "7312", Name: "North Yard", Phase: "2"}

func seedPending(t *testing.T, repo artifacts.Repository, requirement string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := &models.ArtifactRecord{
			ID:              fmt.Sprintf("%s-%03d", SanitizeCategory(requirement), i),
			SiteID:          site.ID,
			RequirementName: requirement,
			Filename:        fmt.Sprintf("North Yard 7312 %s 1.%d_1200%02d.jpg", requirement, i+1, i%60),
			Payload:         []byte("payload"),
			SizeBytes:       7,
			CapturedAt:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			Status:          models.ArtifactPending,
		}
		require.NoError(t, repo.CreateOrUpdate(context.Background(), rec))
	}
}

func newPlanner(repo artifacts.Repository, rec *uploadRecorder, size int) *Planner {
	p := NewPlanner(repo, rec, size, logging.NewSlogLogger(slog.Default()))
	p.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestUploadAllPending_BatchBoundaries(t *testing.T) {
	db := setupDB(t)
	repo := artifacts.NewSQLiteRepository(db)
	rec := newUploadRecorder()
	ctx := context.Background()

	seedPending(t, repo, "Overall Compound", 85)

	res, err := newPlanner(repo, rec, 40).UploadAllPending(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 85, res.Uploaded)
	assert.Equal(t, 0, res.FailedBatches)
	require.Len(t, rec.uploads, 3, "85 artifacts at cap 40 must produce 3 archives")

	var sizes []int
	for name, data := range rec.uploads {
		assert.True(t, strings.HasPrefix(name, "uploads/overall_compound_"), name)
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		sizes = append(sizes, len(zr.File))
	}
	assert.ElementsMatch(t, []int{40, 40, 5}, sizes)

	metas, err := repo.GetMetaBySiteStatus(ctx, site.ID, models.ArtifactPending)
	require.NoError(t, err)
	assert.Empty(t, metas, "every artifact must be synced after its archive upload")
}

func TestUploadAllPending_FailedArchiveLeavesMembersPending(t *testing.T) {
	db := setupDB(t)
	repo := artifacts.NewSQLiteRepository(db)
	rec := newUploadRecorder()
	ctx := context.Background()

	seedPending(t, repo, "Fence", 10)
	seedPending(t, repo, "Gate", 10)

	rec.failWith = func(path string) error {
		if strings.Contains(path, "fence") {
			return errors.New("remote unreachable")
		}
		return nil
	}

	res, err := newPlanner(repo, rec, 40).UploadAllPending(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Uploaded)
	assert.Equal(t, 1, res.FailedBatches)
	require.NotEmpty(t, res.Errors)

	pending, err := repo.GetMetaBySiteStatus(ctx, site.ID, models.ArtifactPending)
	require.NoError(t, err)
	assert.Len(t, pending, 10, "a failed archive leaves all its members pending")
	for _, m := range pending {
		assert.Equal(t, "Fence", m.RequirementName)
	}
}

func TestUploadAllPending_CorruptRecordExcluded(t *testing.T) {
	db := setupDB(t)
	repo := artifacts.NewSQLiteRepository(db)
	rec := newUploadRecorder()
	ctx := context.Background()

	corrupt := &models.ArtifactRecord{
		ID:              "corrupt",
		SiteID:          site.ID,
		RequirementName: "Fence",
		Filename:        "North Yard 7312 Fence 1.1_120000.jpg",
		CapturedAt:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Status:          models.ArtifactPending,
	}
	require.NoError(t, repo.CreateOrUpdate(ctx, corrupt))
	seedPending(t, repo, "Fence", 2)

	res, err := newPlanner(repo, rec, 40).UploadAllPending(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 1, res.Skipped)

	got, err := repo.GetByID(ctx, "corrupt")
	require.NoError(t, err)
	assert.Equal(t, models.ArtifactPending, got.Status, "corrupt record stays pending for manual inspection")
}

func TestUploadAllPending_ThumbnailFallback(t *testing.T) {
	db := setupDB(t)
	repo := artifacts.NewSQLiteRepository(db)
	rec := newUploadRecorder()
	ctx := context.Background()

	evicted := &models.ArtifactRecord{
		ID:              "evicted",
		SiteID:          site.ID,
		RequirementName: "Fence",
		Filename:        "North Yard 7312 Fence 1.1_120000.jpg",
		Thumbnail:       []byte("data:image/jpeg;base64,aW1n"),
		CapturedAt:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Status:          models.ArtifactPending,
	}
	require.NoError(t, repo.CreateOrUpdate(ctx, evicted))

	res, err := newPlanner(repo, rec, 40).UploadAllPending(ctx, site)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
	assert.Equal(t, 0, res.Skipped)

	require.Len(t, rec.uploads, 1)
	for _, data := range rec.uploads {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		require.Len(t, zr.File, 1)
		rd, err := zr.File[0].Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rd)
		require.NoError(t, err)
		require.NoError(t, rd.Close())
		assert.Equal(t, []byte("img"), content, "base64 thumbnail must be decoded before packing")
	}
}

func TestBuildArchive_Uncompressed(t *testing.T) {
	data, err := BuildArchive([]ArchiveFile{
		{Name: "a.jpg", Data: []byte("aaa")},
		{Name: "b.jpg", Data: []byte("bbb")},
	}, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	for _, f := range zr.File {
		assert.Equal(t, zip.Store, f.Method, "photo archives must not be re-compressed")
	}
}

func TestSanitizeCategory(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Overall Compound", "overall_compound"},
		{"Fence / Gate (East)", "fence_gate_east"},
		{"  spaced  ", "spaced"},
		{"already_ok", "already_ok"},
		{"UPPER", "upper"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeCategory(tt.in), tt.in)
	}
}
