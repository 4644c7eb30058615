package settings

import "context"

// Repository stores scalar key/value settings that survive across sessions
// (current site id, cached requirement catalog). Values are overwritten
// wholesale on refresh.
type Repository interface {
	// Set writes the value for key, replacing any previous one.
	Set(ctx context.Context, key, value string) error

	// Get returns the value for key or common.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
}
