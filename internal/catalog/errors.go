// internal/catalog/errors.go
package catalog

import "errors"

var (
	// ErrBookNotFound is returned when a book ID or ISBN does not exist.
	ErrBookNotFound = errors.New("book not found")

	// ErrOutOfStock is returned by ReserveCopy when no copy is available.
	// It is an expected outcome, not a failure.
	ErrOutOfStock = errors.New("no copies available")

	// ErrDuplicateISBN is returned when adding a book whose ISBN is already
	// catalogued.
	ErrDuplicateISBN = errors.New("isbn already catalogued")
)
