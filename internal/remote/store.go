// Package remote defines the narrow contract the sync core has with the
// authoritative remote document store, and an S3-compatible adapter for it.
// Everything behind this interface (authentication, path resolution, the
// chunked wire protocol) is outside the sync core.
package remote

import (
	"context"
	"time"

	"github.com/fieldops/sitesync/internal/models"
)

// QuestionnaireDoc is the name of the authoritative questionnaire document
// inside a site folder.
const QuestionnaireDoc = "questionnaire.json"

// FileInfo is one entry of a remote folder listing.
type FileInfo struct {
	Name       string
	SizeBytes  int64
	ModifiedAt time.Time
	IsFolder   bool
}

// ProgressFunc reports chunked-upload progress in bytes.
type ProgressFunc func(sent, total int64)

// Store is the remote document store as seen by the sync core. All
// operations are idempotent at the remote: re-uploading overwrites,
// deleting an absent file succeeds.
type Store interface {
	// Ping reports whether the remote is reachable. Used by the online
	// status watcher to trigger queue drains.
	Ping(ctx context.Context) error

	// ListFiles returns the entries of a site folder, filenames only plus
	// optional size/modification time.
	ListFiles(ctx context.Context, site models.Site, folder string) ([]FileInfo, error)

	// UploadSmall writes a small document in one request.
	UploadSmall(ctx context.Context, site models.Site, path string, data []byte) error

	// UploadChunked writes a large document through the session-based
	// chunked protocol, invoking onProgress as byte ranges complete.
	UploadChunked(ctx context.Context, site models.Site, path string, data []byte, onProgress ProgressFunc) error

	// DownloadFile fetches a document's bytes.
	DownloadFile(ctx context.Context, site models.Site, path string) ([]byte, error)

	// DeleteFile removes a document. Deleting an absent file is a success.
	DeleteFile(ctx context.Context, site models.Site, path string) error

	// ResolveExistingFolderName looks up a folder under parentPath whose
	// name matches desiredName case/format-insensitively, to avoid creating
	// duplicate folders. Returns desiredName when no match exists.
	ResolveExistingFolderName(ctx context.Context, parentPath, desiredName string) (string, error)
}
