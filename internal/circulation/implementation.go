// internal/circulation/implementation.go
package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"libracore/internal/audit"
	"libracore/internal/catalog"
	"libracore/internal/reservations"
)

// service implements the Service interface.
type service struct {
	db       *sql.DB
	queue    reservations.Service
	auditLog *audit.Log
	tracer   trace.Tracer

	loansIssued   metric.Int64Counter
	loansReturned metric.Int64Counter
}

// NewService creates a new circulation service instance. The reservation
// queue is consulted on every return so a freed copy promotes the next
// pending hold.
func NewService(db *sql.DB, queue reservations.Service, auditLog *audit.Log) Service {
	meter := otel.Meter("libracore/circulation")
	loansIssued, _ := meter.Int64Counter("loans.issued")
	loansReturned, _ := meter.Int64Counter("loans.returned")

	return &service{
		db:            db,
		queue:         queue,
		auditLog:      auditLog,
		tracer:        otel.Tracer("libracore/circulation"),
		loansIssued:   loansIssued,
		loansReturned: loansReturned,
	}
}

const loanColumns = `id, book_id, member_id, borrowed_on, due_on, returned_on, status, created_at, updated_at`

// IssueLoan reserves a copy and creates the loan in one transaction: if the
// insert fails the ledger decrement rolls back with it, and the conditional
// decrement means two racing issues cannot both take the last copy.
func (s *service) IssueLoan(ctx context.Context, bookID, memberID uuid.UUID, borrowedOn, dueOn time.Time) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.issue",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.String("member.id", memberID.String()),
		),
	)
	defer span.End()

	if borrowedOn.IsZero() {
		borrowedOn = time.Now()
	}
	borrowedOn = dateOnly(borrowedOn)
	if dueOn.IsZero() {
		dueOn = borrowedOn.AddDate(0, 0, DefaultLoanDays)
	}
	dueOn = dateOnly(dueOn)
	if err := validateIssueDates(borrowedOn, dueOn); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := catalog.ReserveCopy(ctx, tx, bookID); err != nil {
		if err == catalog.ErrOutOfStock {
			span.SetAttributes(attribute.Bool("book.unavailable", true))
			return nil, ErrBookUnavailable
		}
		return nil, err
	}

	loan := &Loan{
		ID:         uuid.New(),
		BookID:     bookID,
		MemberID:   memberID,
		BorrowedOn: borrowedOn,
		DueOn:      dueOn,
		Status:     StatusBorrowed,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO loans (id, book_id, member_id, borrowed_on, due_on, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, loan.ID, loan.BookID, loan.MemberID, loan.BorrowedOn, loan.DueOn, loan.Status).
		Scan(&loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}

	if err := s.auditLog.RecordTx(ctx, tx, "loan", loan.ID, "LoanIssued", loan); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.loansIssued.Add(ctx, 1)
	span.SetAttributes(attribute.String("loan.id", loan.ID.String()))
	return loan, nil
}

// RenewLoan extends an active loan's due date. Only strictly-active loans
// qualify and the new due date must fall after the current one; the ledger
// is untouched.
func (s *service) RenewLoan(ctx context.Context, loanID uuid.UUID, newDueOn time.Time) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.renew",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusBorrowed {
		return nil, fmt.Errorf("%w: cannot renew a loan with status %q", ErrInvalidState, loan.Status)
	}
	if err := validateRenewal(loan.DueOn, newDueOn); err != nil {
		return nil, err
	}

	loan.DueOn = dateOnly(newDueOn)
	if err := execLoanUpdate(ctx, tx, `
		UPDATE loans SET due_on = $2, updated_at = NOW() WHERE id = $1
	`, loan.ID, loan.DueOn); err != nil {
		return nil, err
	}

	if err := s.auditLog.RecordTx(ctx, tx, "loan", loan.ID, "LoanRenewed", loan); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return loan, nil
}

// ReturnLoan closes a loan, releases its copy back to the ledger, and then
// promotes the book's next pending reservation. Returning a loan twice is a
// no-op so the copy can never be released twice.
func (s *service) ReturnLoan(ctx context.Context, loanID uuid.UUID, returnedOn time.Time) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())),
	)
	defer span.End()

	if returnedOn.IsZero() {
		returnedOn = time.Now()
	}
	returned := dateOnly(returnedOn)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status == StatusReturned {
		span.SetAttributes(attribute.Bool("return.duplicate", true))
		return loan, tx.Commit()
	}

	loan.Status = StatusReturned
	loan.ReturnedOn = &returned
	if err := execLoanUpdate(ctx, tx, `
		UPDATE loans SET status = $2, returned_on = $3, updated_at = NOW() WHERE id = $1
	`, loan.ID, loan.Status, loan.ReturnedOn); err != nil {
		return nil, err
	}

	if err := catalog.ReleaseCopy(ctx, tx, loan.BookID); err != nil {
		return nil, err
	}
	if err := s.auditLog.RecordTx(ctx, tx, "loan", loan.ID, "LoanReturned", loan); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.loansReturned.Add(ctx, 1)

	// Promotion runs in its own transaction: the return has already
	// committed, so a promotion failure is logged and left for the next
	// copy-freeing event rather than failing the return.
	if _, err := s.queue.PromoteNext(ctx, loan.BookID); err != nil {
		span.RecordError(err)
		log.Printf("promote next reservation for book %s: %v", loan.BookID, err)
	}

	return loan, nil
}

// MarkOverdue relabels an active loan whose due date has passed. It is a
// status change only; the copy stays with the borrower. The sweep that
// decides which loans qualify lives in the caller.
func (s *service) MarkOverdue(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	loan, err := lockLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != StatusBorrowed {
		return nil, fmt.Errorf("%w: cannot mark a loan with status %q overdue", ErrInvalidState, loan.Status)
	}

	loan.Status = StatusOverdue
	if err := execLoanUpdate(ctx, tx, `
		UPDATE loans SET status = $2, updated_at = NOW() WHERE id = $1
	`, loan.ID, loan.Status); err != nil {
		return nil, err
	}

	if err := s.auditLog.RecordTx(ctx, tx, "loan", loan.ID, "LoanMarkedOverdue", loan); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return loan, nil
}

// GetLoan retrieves a loan by its ID.
func (s *service) GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	return scanLoan(row)
}

// ListLoans returns all loans, most recent borrow first.
func (s *service) ListLoans(ctx context.Context) ([]*Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+loanColumns+` FROM loans ORDER BY borrowed_on DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	return collectLoans(rows)
}

// ListOverdue returns loans still labelled borrowed whose due date fell
// before the reference date, earliest due first.
func (s *service) ListOverdue(ctx context.Context, reference time.Time) ([]*Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+loanColumns+`
		FROM loans
		WHERE status = $1 AND due_on < $2
		ORDER BY due_on ASC
	`, StatusBorrowed, dateOnly(reference))
	if err != nil {
		return nil, fmt.Errorf("list overdue loans: %w", err)
	}
	return collectLoans(rows)
}

// ForMember returns a member's loans, most recent borrow first.
func (s *service) ForMember(ctx context.Context, memberID uuid.UUID) ([]*Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+loanColumns+`
		FROM loans
		WHERE member_id = $1
		ORDER BY borrowed_on DESC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list member loans: %w", err)
	}
	return collectLoans(rows)
}

func lockLoan(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*Loan, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE
	`, id)
	return scanLoan(row)
}

func execLoanUpdate(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update loan: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*Loan, error) {
	loan := &Loan{}
	err := row.Scan(
		&loan.ID,
		&loan.BookID,
		&loan.MemberID,
		&loan.BorrowedOn,
		&loan.DueOn,
		&loan.ReturnedOn,
		&loan.Status,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan loan: %w", err)
	}
	return loan, nil
}

func collectLoans(rows *sql.Rows) ([]*Loan, error) {
	defer rows.Close()
	var loans []*Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loans: %w", err)
	}
	return loans, nil
}
