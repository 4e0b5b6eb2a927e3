// internal/fines/implementation.go
package fines

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"libracore/internal/audit"
	"libracore/internal/outbox"
)

// ErrFineNotFound is returned when a fine ID does not exist.
var ErrFineNotFound = errors.New("fine not found")

// service implements the Service interface.
type service struct {
	db  *sql.DB
	log *audit.Log
}

// NewService creates a new fine ledger service instance.
func NewService(db *sql.DB, log *audit.Log) Service {
	return &service{db: db, log: log}
}

const fineColumns = `id, loan_id, member_id, amount, COALESCE(reason, ''),
	status, assessed_on, settled_on, created_at, updated_at`

// Assess creates an unpaid fine against a loan and queues a notification
// for the member.
func (s *service) Assess(ctx context.Context, loanID, memberID uuid.UUID, amount float64, reason string) (*Fine, error) {
	if amount < 0 {
		return nil, fmt.Errorf("fine amount must not be negative")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	fine := &Fine{
		ID:       uuid.New(),
		LoanID:   loanID,
		MemberID: memberID,
		Amount:   amount,
		Reason:   reason,
		Status:   StatusUnpaid,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO fines (id, loan_id, member_id, amount, reason, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING assessed_on, created_at, updated_at
	`, fine.ID, fine.LoanID, fine.MemberID, fine.Amount, fine.Reason, fine.Status).
		Scan(&fine.AssessedOn, &fine.CreatedAt, &fine.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert fine: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"subject": "A fine has been assessed on your account",
		"amount":  fine.Amount,
		"reason":  fine.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal notification payload: %w", err)
	}
	if _, err := outbox.EnqueueTx(ctx, tx, outbox.Entry{
		MemberID: &fine.MemberID,
		Channel:  "email",
		Type:     outbox.TypeFineAssessed,
		Payload:  payload,
	}); err != nil {
		return nil, err
	}

	if err := s.log.RecordTx(ctx, tx, "fine", fine.ID, "FineAssessed", fine); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return fine, nil
}

// MarkPaid settles a fine. A zero settledOn settles now.
func (s *service) MarkPaid(ctx context.Context, id uuid.UUID, settledOn time.Time) (*Fine, error) {
	if settledOn.IsZero() {
		settledOn = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE fines
		SET status = $2, settled_on = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+fineColumns+`
	`, id, StatusPaid, settledOn)
	fine, err := scanFine(row)
	if err != nil {
		return nil, err
	}

	if err := s.log.Record(ctx, "fine", id, "FinePaid", fine); err != nil {
		return nil, err
	}
	return fine, nil
}

// Waive forgives a fine without settlement.
func (s *service) Waive(ctx context.Context, id uuid.UUID) (*Fine, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE fines
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+fineColumns+`
	`, id, StatusWaived)
	fine, err := scanFine(row)
	if err != nil {
		return nil, err
	}

	if err := s.log.Record(ctx, "fine", id, "FineWaived", fine); err != nil {
		return nil, err
	}
	return fine, nil
}

// Get retrieves a fine by its ID.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*Fine, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fineColumns+` FROM fines WHERE id = $1`, id)
	return scanFine(row)
}

// ListByStatus returns fines with the given status, newest assessment
// first, or all fines when status is empty.
func (s *service) ListByStatus(ctx context.Context, status string) ([]*Fine, error) {
	query := `SELECT ` + fineColumns + ` FROM fines`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY assessed_on DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	return collectFines(rows)
}

// UnpaidForMember returns a member's unpaid fines, newest first.
func (s *service) UnpaidForMember(ctx context.Context, memberID uuid.UUID) ([]*Fine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+fineColumns+`
		FROM fines
		WHERE member_id = $1 AND status = $2
		ORDER BY assessed_on DESC
	`, memberID, StatusUnpaid)
	if err != nil {
		return nil, fmt.Errorf("list unpaid fines: %w", err)
	}
	return collectFines(rows)
}

// OutstandingForMember sums a member's unpaid fines.
func (s *service) OutstandingForMember(ctx context.Context, memberID uuid.UUID) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM fines WHERE member_id = $1 AND status = $2
	`, memberID, StatusUnpaid).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum outstanding fines: %w", err)
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFine(row rowScanner) (*Fine, error) {
	fine := &Fine{}
	err := row.Scan(
		&fine.ID,
		&fine.LoanID,
		&fine.MemberID,
		&fine.Amount,
		&fine.Reason,
		&fine.Status,
		&fine.AssessedOn,
		&fine.SettledOn,
		&fine.CreatedAt,
		&fine.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrFineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan fine: %w", err)
	}
	return fine, nil
}

func collectFines(rows *sql.Rows) ([]*Fine, error) {
	defer rows.Close()
	var fines []*Fine
	for rows.Next() {
		fine, err := scanFine(rows)
		if err != nil {
			return nil, err
		}
		fines = append(fines, fine)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fines: %w", err)
	}
	return fines, nil
}
