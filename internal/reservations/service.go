// internal/reservations/service.go
package reservations

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service defines the interface for the reservation queue.
//
// Enqueue, PromoteNext and ExpireReadyHolds are the lifecycle operations.
// ForceStatus is the administrative escape hatch: it allows any
// status-to-status transition and deliberately bypasses the queue rules, so
// it must never be called from the automatic lifecycle paths.
type Service interface {
	Enqueue(ctx context.Context, bookID, memberID uuid.UUID) (*Reservation, error)
	PromoteNext(ctx context.Context, bookID uuid.UUID) (*Reservation, error)
	ExpireReadyHolds(ctx context.Context, reference time.Time) (int64, error)
	ForceStatus(ctx context.Context, id uuid.UUID, status string) (*Reservation, error)

	Get(ctx context.Context, id uuid.UUID) (*Reservation, error)
	ListByStatus(ctx context.Context, status string) ([]*Reservation, error)
	ForMember(ctx context.Context, memberID uuid.UUID) ([]*Reservation, error)
}
