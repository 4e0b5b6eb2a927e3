// internal/circulation/domain.go
package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Loan statuses. A loan is active while borrowed or overdue; returned is
// terminal. Overdue is a label assigned by the sweep, not a hard gate: it
// does not release the copy, only an explicit return does.
const (
	StatusBorrowed = "borrowed"
	StatusOverdue  = "overdue"
	StatusReturned = "returned"
)

// Loan period defaults, in days. Staff-issued loans run two weeks; the
// public self-service flow uses one.
const (
	DefaultLoanDays     = 14
	SelfServiceLoanDays = 7
)

// Loan represents one copy of a book borrowed by a member. An active loan
// consumes one unit of the book's available copies until it is returned.
type Loan struct {
	ID         uuid.UUID  `json:"id"`
	BookID     uuid.UUID  `json:"book_id"`
	MemberID   uuid.UUID  `json:"member_id"`
	BorrowedOn time.Time  `json:"borrowed_on"`
	DueOn      time.Time  `json:"due_on"`
	ReturnedOn *time.Time `json:"returned_on,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Active reports whether the loan still holds a copy.
func (l *Loan) Active() bool {
	return l.Status == StatusBorrowed || l.Status == StatusOverdue
}

// dateOnly truncates a timestamp to its calendar date in UTC; loans are
// date-granular.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// validateIssueDates checks that a due date falls strictly after the borrow
// date.
func validateIssueDates(borrowedOn, dueOn time.Time) error {
	if !dateOnly(dueOn).After(dateOnly(borrowedOn)) {
		return ErrInvalidDueDate
	}
	return nil
}

// validateRenewal checks that a renewal strictly extends the current due
// date; renewals never shorten a loan.
func validateRenewal(currentDue, newDue time.Time) error {
	if !dateOnly(newDue).After(dateOnly(currentDue)) {
		return ErrInvalidDueDate
	}
	return nil
}
