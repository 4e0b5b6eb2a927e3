// internal/catalog/ledger.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// The ledger operations run inside the caller's transaction so that a copy
// count change and the loan row that justifies it commit or roll back
// together. Nothing else may write copies_available except SetCopyCounts.

// ReserveCopy takes one copy of a book out of the available pool. It is a
// single conditional update, so two concurrent reservations of the last copy
// cannot both succeed. Returns ErrOutOfStock when no copy is available and
// ErrBookNotFound when the book does not exist.
func ReserveCopy(ctx context.Context, tx *sql.Tx, bookID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET copies_available = copies_available - 1, updated_at = NOW()
		WHERE id = $1 AND copies_available > 0
	`, bookID)
	if err != nil {
		return fmt.Errorf("reserve copy: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve copy: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("reserve copy: %w", err)
		}
		if !exists {
			return ErrBookNotFound
		}
		return ErrOutOfStock
	}

	return nil
}

// ReleaseCopy puts one copy of a book back into the available pool. The
// increment is clamped at copies_total: a well-behaved caller never
// over-releases, but the ledger must not corrupt state if one does.
func ReleaseCopy(ctx context.Context, tx *sql.Tx, bookID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET copies_available = LEAST(copies_total, copies_available + 1), updated_at = NOW()
		WHERE id = $1
	`, bookID)
	if err != nil {
		return fmt.Errorf("release copy: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release copy: %w", err)
	}
	if affected == 0 {
		return ErrBookNotFound
	}

	return nil
}
