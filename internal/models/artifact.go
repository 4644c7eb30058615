// Package models defines the client-side data model persisted in the local
// store: sites, captured artifacts, questionnaire drafts and queued
// mutations.
package models

import (
	"bytes"
	"encoding/base64"
	"time"
)

// ArtifactStatus tracks where a captured artifact stands relative to the
// remote store.
type ArtifactStatus string

const (
	// ArtifactPending exists only locally and has not been confirmed remote.
	ArtifactPending ArtifactStatus = "pending"
	// ArtifactSynced has been observed in the remote listing; the payload
	// may be evicted to save memory.
	ArtifactSynced ArtifactStatus = "synced"
	// ArtifactError had at least one failed sync attempt and is a retry
	// candidate.
	ArtifactError ArtifactStatus = "error"
)

// ArtifactRecord is a captured site photograph and its metadata.
//
// Payload and Thumbnail are only populated on the full read path. Listing,
// reconciliation and batch grouping work on the metadata projection (see
// the artifacts repository) so that scanning a high-photo-count site never
// loads every blob into memory.
type ArtifactRecord struct {
	// ID is a globally unique identifier for the record.
	ID string

	SiteID          string
	RequirementID   string
	RequirementName string

	// Filename is the collision-free remote name derived by the naming
	// package. A synced record's filename matches exactly one remote file.
	Filename string

	// Payload holds the image bytes. May be empty once synced.
	Payload []byte
	// Thumbnail is an optional reduced copy kept for offline display and
	// as an upload fallback when the payload has been evicted.
	Thumbnail []byte

	SizeBytes  int64
	CapturedAt time.Time
	Status     ArtifactStatus
	SyncedAt   *time.Time
}

// Meta returns the metadata-only projection of the record.
func (a *ArtifactRecord) Meta() ArtifactMeta {
	return ArtifactMeta{
		ID:              a.ID,
		SiteID:          a.SiteID,
		RequirementID:   a.RequirementID,
		RequirementName: a.RequirementName,
		Filename:        a.Filename,
		SizeBytes:       a.SizeBytes,
		CapturedAt:      a.CapturedAt,
		Status:          a.Status,
		SyncedAt:        a.SyncedAt,
	}
}

// UploadBytes returns the bytes to upload for this record: the payload when
// resident, otherwise the thumbnail fallback. Thumbnails captured by older
// builds were stored as base64 data URLs, so both encodings are accepted.
// The second return is false when neither source is usable.
func (a *ArtifactRecord) UploadBytes() ([]byte, bool) {
	if len(a.Payload) > 0 {
		return a.Payload, true
	}
	if len(a.Thumbnail) == 0 {
		return nil, false
	}
	raw := a.Thumbnail
	if idx := bytes.IndexByte(raw, ','); idx >= 0 && bytes.HasPrefix(raw, []byte("data:")) {
		raw = raw[idx+1:]
	}
	if decoded, err := base64.StdEncoding.DecodeString(string(raw)); err == nil {
		return decoded, true
	}
	return a.Thumbnail, true
}

// ArtifactMeta is ArtifactRecord without the binary columns.
type ArtifactMeta struct {
	ID              string
	SiteID          string
	RequirementID   string
	RequirementName string
	Filename        string
	SizeBytes       int64
	CapturedAt      time.Time
	Status          ArtifactStatus
	SyncedAt        *time.Time
}
