package models

// Site is immutable reference data describing an inspection site. Sites are
// loaded from an external source and treated as read-only by the sync core.
type Site struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phase   string `json:"phase"`
	Address string `json:"address"`
}

// Requirement is one entry of the photo-requirement catalog for a phase.
// The catalog is cached in settings and used to resolve downloaded
// filenames back to a requirement.
type Requirement struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
