// internal/outbox/implementation.go
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrEntryNotFound is returned when an outbox entry ID does not exist.
var ErrEntryNotFound = errors.New("outbox entry not found")

// service implements the Service interface.
type service struct {
	db *sql.DB
}

// NewService creates a new outbox service instance.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

const entryColumns = `id, member_id, reservation_id, channel, type, payload, status, sent_at, created_at`

// Enqueue appends one pending entry.
func (s *service) Enqueue(ctx context.Context, entry Entry) (*Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	created, err := EnqueueTx(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return created, nil
}

// EnqueueTx appends one pending entry inside the caller's transaction, so a
// lifecycle transition and the notification it warrants commit together.
func EnqueueTx(ctx context.Context, tx *sql.Tx, entry Entry) (*Entry, error) {
	if entry.Channel == "" || entry.Type == "" {
		return nil, fmt.Errorf("channel and type are required")
	}

	entry.ID = uuid.New()
	entry.Status = StatusPending
	entry.SentAt = nil

	err := tx.QueryRowContext(ctx, `
		INSERT INTO notifications (id, member_id, reservation_id, channel, type, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, entry.ID, entry.MemberID, entry.ReservationID, entry.Channel, entry.Type,
		[]byte(entry.Payload), entry.Status).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("enqueue notification: %w", err)
	}

	return &entry, nil
}

// ClaimPending flips the oldest pending entries for a channel to sending and
// returns them, all inside one transaction so two consumers never claim the
// same batch.
func (s *service) ClaimPending(ctx context.Context, channel string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM notifications
		WHERE status = $1 AND channel = $2
		ORDER BY created_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, StatusPending, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	batch, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]uuid.UUID, len(batch))
	for i, entry := range batch {
		ids[i] = entry.ID
		entry.Status = StatusSending
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE notifications SET status = $1, updated_at = NOW() WHERE id = ANY($2)
	`, StatusSending, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return batch, nil
}

// MarkSent records a successful delivery.
func (s *service) MarkSent(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE notifications
		SET status = $2, sent_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING `+entryColumns+`
	`, id, StatusSent)
	return scanEntry(row)
}

// MarkFailed records a delivery failure.
func (s *service) MarkFailed(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE notifications
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+entryColumns+`
	`, id, StatusFailed)
	return scanEntry(row)
}

// PendingForMember lists a member's undelivered notifications.
func (s *service) PendingForMember(ctx context.Context, memberID uuid.UUID) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM notifications
		WHERE member_id = $1 AND status IN ($2, $3)
		ORDER BY created_at ASC
	`, memberID, StatusPending, StatusSending)
	if err != nil {
		return nil, fmt.Errorf("pending for member: %w", err)
	}
	return collectEntries(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	entry := &Entry{}
	var payload []byte
	err := row.Scan(
		&entry.ID,
		&entry.MemberID,
		&entry.ReservationID,
		&entry.Channel,
		&entry.Type,
		&payload,
		&entry.Status,
		&entry.SentAt,
		&entry.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	entry.Payload = payload
	return entry, nil
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	defer rows.Close()
	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
