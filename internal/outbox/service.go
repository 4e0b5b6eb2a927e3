// internal/outbox/service.go
package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the notification outbox.
//
// Enqueue is the only operation the lifecycle services use. The claim and
// mark operations are the consumer side of the contract: delivery itself
// (transport, retry, backoff) lives outside this module.
type Service interface {
	Enqueue(ctx context.Context, entry Entry) (*Entry, error)
	ClaimPending(ctx context.Context, channel string, limit int) ([]*Entry, error)
	MarkSent(ctx context.Context, id uuid.UUID) (*Entry, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (*Entry, error)
	PendingForMember(ctx context.Context, memberID uuid.UUID) ([]*Entry, error)
}
