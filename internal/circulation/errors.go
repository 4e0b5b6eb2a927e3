// internal/circulation/errors.go
package circulation

import "errors"

var (
	// ErrLoanNotFound is returned when a loan ID does not exist.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrBookUnavailable is returned by IssueLoan when the book has no free
	// copy. It is an expected outcome surfaced to the caller, never logged
	// as a failure.
	ErrBookUnavailable = errors.New("book unavailable")

	// ErrInvalidState is returned when an operation is not valid for the
	// loan's current status, e.g. renewing a returned loan.
	ErrInvalidState = errors.New("loan is not in a valid state for this operation")

	// ErrInvalidDueDate is returned when a due date does not move forward:
	// at issue time it must fall after the borrow date, at renewal time
	// strictly after the current due date.
	ErrInvalidDueDate = errors.New("invalid due date")
)
