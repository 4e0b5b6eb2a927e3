// internal/reservations/domain.go
package reservations

import (
	"time"

	"github.com/google/uuid"
)

// Reservation statuses. Only pending and ready count as active: a member can
// hold at most one active reservation per book.
const (
	StatusPending   = "pending"
	StatusReady     = "ready"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// PickupWindow is how long a promoted hold stays ready before it can be
// expired by the sweep.
const PickupWindow = 72 * time.Hour

// Reservation is a member's place in a book's pickup queue. QueuePosition is
// assigned once at enqueue time and never renumbered, even as earlier
// reservations leave the queue.
type Reservation struct {
	ID            uuid.UUID  `json:"id"`
	BookID        uuid.UUID  `json:"book_id"`
	MemberID      uuid.UUID  `json:"member_id"`
	Status        string     `json:"status"`
	QueuePosition int        `json:"queue_position"`
	ReservedOn    time.Time  `json:"reserved_on"`
	ReadyOn       *time.Time `json:"ready_on,omitempty"`
	ExpiresOn     *time.Time `json:"expires_on,omitempty"`
	NotifiedOn    *time.Time `json:"notified_on,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Active reports whether the reservation still occupies a queue slot.
func (r *Reservation) Active() bool {
	return r.Status == StatusPending || r.Status == StatusReady
}

// ValidStatus reports whether s is a known reservation status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusReady, StatusFulfilled, StatusCancelled, StatusExpired:
		return true
	}
	return false
}
