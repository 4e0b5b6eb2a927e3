// internal/fines/domain.go
package fines

import (
	"time"

	"github.com/google/uuid"
)

// Fine statuses. SettledOn is set exactly when a fine becomes paid; a
// waived fine never gets one.
const (
	StatusUnpaid = "unpaid"
	StatusPaid   = "paid"
	StatusWaived = "waived"
)

// Fine is a monetary obligation derived from a loan. Fines are bookkeeping
// only: they never mutate loan or inventory state.
type Fine struct {
	ID         uuid.UUID  `json:"id"`
	LoanID     uuid.UUID  `json:"loan_id"`
	MemberID   uuid.UUID  `json:"member_id"`
	Amount     float64    `json:"amount"`
	Reason     string     `json:"reason,omitempty"`
	Status     string     `json:"status"`
	AssessedOn time.Time  `json:"assessed_on"`
	SettledOn  *time.Time `json:"settled_on,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
