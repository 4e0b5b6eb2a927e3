// internal/reservations/errors.go
package reservations

import "errors"

var (
	// ErrReservationNotFound is returned when a reservation ID does not exist.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrDuplicateReservation is returned when a member already holds an
	// active (pending or ready) reservation for the book.
	ErrDuplicateReservation = errors.New("member already has an active reservation for this book")

	// ErrUnknownStatus is returned by ForceStatus for a status name outside
	// the reservation lifecycle.
	ErrUnknownStatus = errors.New("unknown reservation status")
)
