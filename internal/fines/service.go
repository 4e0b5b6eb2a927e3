// internal/fines/service.go
package fines

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service defines the interface for the fine ledger.
type Service interface {
	Assess(ctx context.Context, loanID, memberID uuid.UUID, amount float64, reason string) (*Fine, error)
	MarkPaid(ctx context.Context, id uuid.UUID, settledOn time.Time) (*Fine, error)
	Waive(ctx context.Context, id uuid.UUID) (*Fine, error)

	Get(ctx context.Context, id uuid.UUID) (*Fine, error)
	ListByStatus(ctx context.Context, status string) ([]*Fine, error)
	UnpaidForMember(ctx context.Context, memberID uuid.UUID) ([]*Fine, error)
	OutstandingForMember(ctx context.Context, memberID uuid.UUID) (float64, error)
}
