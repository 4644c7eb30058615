package models

import "time"

// QueueItemType classifies an outbound mutation.
type QueueItemType string

const (
	QueueUploadPhoto         QueueItemType = "UPLOAD_PHOTO"
	QueueUploadQuestionnaire QueueItemType = "UPLOAD_QUESTIONNAIRE"
	QueueDeletePhoto         QueueItemType = "DELETE_PHOTO"
)

// QueuePayload carries the minimal context a handler needs to replay the
// mutation against the remote store, without re-reading reference data.
type QueuePayload struct {
	ArtifactID string `json:"artifact_id,omitempty"`
	SiteID     string `json:"site_id"`
	Phase      string `json:"phase,omitempty"`
	SiteName   string `json:"site_name,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// SyncQueueItem is one durable outbound mutation. Items are appended on
// user action and removed only after the corresponding remote operation
// succeeds. Duplicate enqueues of the same logical action are tolerated
// because every remote operation is idempotent.
type SyncQueueItem struct {
	// ID is assigned by the store, monotonically increasing; drain order
	// is ascending ID.
	ID        int64
	Type      QueueItemType
	Payload   QueuePayload
	CreatedAt time.Time
	Attempts  int
}
