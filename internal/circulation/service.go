// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service defines the interface for the loan lifecycle.
//
// Zero time arguments select the policy defaults: IssueLoan borrows today
// and falls due DefaultLoanDays later, ReturnLoan returns today. All
// failures are sentinel errors from errors.go so callers can render them
// without unwrapping driver errors.
type Service interface {
	IssueLoan(ctx context.Context, bookID, memberID uuid.UUID, borrowedOn, dueOn time.Time) (*Loan, error)
	RenewLoan(ctx context.Context, loanID uuid.UUID, newDueOn time.Time) (*Loan, error)
	ReturnLoan(ctx context.Context, loanID uuid.UUID, returnedOn time.Time) (*Loan, error)
	MarkOverdue(ctx context.Context, loanID uuid.UUID) (*Loan, error)

	GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error)
	ListLoans(ctx context.Context) ([]*Loan, error)
	ListOverdue(ctx context.Context, reference time.Time) ([]*Loan, error)
	ForMember(ctx context.Context, memberID uuid.UUID) ([]*Loan, error)
}
