// internal/outbox/domain.go
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry statuses. The core only writes pending; a consumer process claims
// batches (sending) and reports the outcome (sent / failed).
const (
	StatusPending = "pending"
	StatusSending = "sending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification types deposited by the lifecycle services.
const (
	TypeHoldReady       = "hold-ready"
	TypeOverdueReminder = "overdue-reminder"
	TypeFineAssessed    = "fine-assessed"
)

// Entry is one queued notification. Payload is an opaque JSON document for
// the delivery process; the core never reads it back.
type Entry struct {
	ID            uuid.UUID       `json:"id"`
	MemberID      *uuid.UUID      `json:"member_id,omitempty"`
	ReservationID *uuid.UUID      `json:"reservation_id,omitempty"`
	Channel       string          `json:"channel"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Status        string          `json:"status"`
	SentAt        *time.Time      `json:"sent_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
