package syncqueue

import (
	"context"

	"github.com/fieldops/sitesync/internal/models"
)

// Repository is the durable outbound-mutation queue. Items are append-only
// until consumed and are removed only after the matching remote operation
// succeeds, so an app restart before processing never loses work.
type Repository interface {
	// Enqueue appends an item and returns its assigned id.
	Enqueue(ctx context.Context, itemType models.QueueItemType, payload models.QueuePayload) (int64, error)

	// GetAll returns every queued item in creation (id) order.
	GetAll(ctx context.Context) ([]models.SyncQueueItem, error)

	// Delete removes a consumed item.
	Delete(ctx context.Context, id int64) error

	// IncrementAttempts bumps the failure counter of an item left queued.
	IncrementAttempts(ctx context.Context, id int64) error
}
