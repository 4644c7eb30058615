package models

import "time"

// DraftStatus tracks a questionnaire draft relative to the remote store.
type DraftStatus string

const (
	DraftPending DraftStatus = "pending"
	DraftSynced  DraftStatus = "synced"
)

// QuestionnaireDraft is the single questionnaire for a site, keyed by
// SiteID and overwritten wholesale on each save. The remote copy is
// authoritative once the draft reaches DraftSynced.
type QuestionnaireDraft struct {
	SiteID      string
	Fields      map[string]string
	Status      DraftStatus
	CompletedAt time.Time
}
