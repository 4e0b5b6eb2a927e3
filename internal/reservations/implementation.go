// internal/reservations/implementation.go
package reservations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libracore/internal/audit"
	"libracore/internal/outbox"
)

// notifyChannel is the delivery channel for queue notifications.
const notifyChannel = "email"

// service implements the Service interface.
type service struct {
	db     *sql.DB
	log    *audit.Log
	tracer trace.Tracer
}

// NewService creates a new reservation queue service instance.
func NewService(db *sql.DB, log *audit.Log) Service {
	return &service{
		db:     db,
		log:    log,
		tracer: otel.Tracer("libracore/reservations"),
	}
}

const reservationColumns = `id, book_id, member_id, status, queue_position,
	reserved_on, ready_on, expires_on, notified_on, created_at, updated_at`

// Enqueue appends a member to a book's hold queue. The queue position is
// computed and inserted in one statement; the partial unique index on active
// reservations turns a concurrent duplicate into ErrDuplicateReservation.
func (s *service) Enqueue(ctx context.Context, bookID, memberID uuid.UUID) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservations.enqueue",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.String("member.id", memberID.String()),
		),
	)
	defer span.End()

	// Two racing enqueues for the same book may compute the same position
	// and trip the (book_id, queue_position) constraint; retry recomputes.
	for attempt := 0; attempt < 3; attempt++ {
		reservation, err := s.tryEnqueue(ctx, bookID, memberID)
		if err == errPositionTaken {
			continue
		}
		if err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.Int("queue.position", reservation.QueuePosition))
		return reservation, nil
	}
	return nil, fmt.Errorf("enqueue reservation: queue position contention")
}

var errPositionTaken = fmt.Errorf("queue position taken")

func (s *service) tryEnqueue(ctx context.Context, bookID, memberID uuid.UUID) (*Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	reservation := &Reservation{
		ID:       uuid.New(),
		BookID:   bookID,
		MemberID: memberID,
		Status:   StatusPending,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO reservations (id, book_id, member_id, status, queue_position)
		SELECT $1, $2, $3, $4, COALESCE(MAX(queue_position), 0) + 1
		FROM reservations
		WHERE book_id = $2
		RETURNING queue_position, reserved_on, created_at, updated_at
	`, reservation.ID, bookID, memberID, StatusPending).Scan(
		&reservation.QueuePosition,
		&reservation.ReservedOn,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if pqErr.Constraint == "reservations_one_active_per_member" {
				return nil, ErrDuplicateReservation
			}
			return nil, errPositionTaken
		}
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	if err := s.log.RecordTx(ctx, tx, "reservation", reservation.ID, "ReservationQueued", reservation); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return reservation, nil
}

// PromoteNext transitions the book's next pending reservation to ready and
// queues a hold-ready notification. It returns (nil, nil) when the book has
// no pending reservations. Callers invoke this only when a copy has actually
// been freed, never speculatively.
func (s *service) PromoteNext(ctx context.Context, bookID uuid.UUID) (*Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservations.promote_next",
		trace.WithAttributes(attribute.String("book.id", bookID.String())),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id uuid.UUID
	err = tx.QueryRowContext(ctx, `
		SELECT id
		FROM reservations
		WHERE book_id = $1 AND status = $2
		ORDER BY queue_position ASC, reserved_on ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, bookID, StatusPending).Scan(&id)
	if err == sql.ErrNoRows {
		span.SetAttributes(attribute.Bool("promotion.empty", true))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select next reservation: %w", err)
	}

	now := time.Now().UTC()
	expires := now.Add(PickupWindow)
	row := tx.QueryRowContext(ctx, `
		UPDATE reservations
		SET status = $2, ready_on = $3, expires_on = $4, notified_on = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+reservationColumns+`
	`, id, StatusReady, now, expires)
	reservation, err := scanReservation(row)
	if err != nil {
		return nil, err
	}

	var title string
	if err := tx.QueryRowContext(ctx, `SELECT title FROM books WHERE id = $1`, bookID).Scan(&title); err != nil {
		return nil, fmt.Errorf("load book title: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"subject":    fmt.Sprintf("Your hold on %q is ready for pickup", title),
		"book_title": title,
		"expires_on": expires,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal notification payload: %w", err)
	}

	if _, err := outbox.EnqueueTx(ctx, tx, outbox.Entry{
		MemberID:      &reservation.MemberID,
		ReservationID: &reservation.ID,
		Channel:       notifyChannel,
		Type:          outbox.TypeHoldReady,
		Payload:       payload,
	}); err != nil {
		return nil, err
	}

	if err := s.log.RecordTx(ctx, tx, "reservation", reservation.ID, "ReservationReady", reservation); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	span.SetAttributes(attribute.String("reservation.id", reservation.ID.String()))
	return reservation, nil
}

// ExpireReadyHolds transitions every ready reservation whose pickup window
// has passed to expired and returns the count. It is idempotent: expired
// rows never match again. Expiry does not re-promote the next pending hold;
// that stays an operator decision.
func (s *service) ExpireReadyHolds(ctx context.Context, reference time.Time) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "reservations.expire_ready")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE reservations
		SET status = $2, updated_at = NOW()
		WHERE status = $1 AND expires_on IS NOT NULL AND expires_on < $3
	`, StatusReady, StatusExpired, reference)
	if err != nil {
		return 0, fmt.Errorf("expire ready holds: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire ready holds: %w", err)
	}
	span.SetAttributes(attribute.Int64("holds.expired", count))
	return count, nil
}

// ForceStatus is the administrative override: any status to any status, with
// the ready timestamps set or cleared to keep the row self-consistent. It
// does not preserve queue ordering guarantees and is recorded as a forced
// transition in the audit log.
func (s *service) ForceStatus(ctx context.Context, id uuid.UUID, status string) (*Reservation, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row *sql.Row
	switch status {
	case StatusReady:
		now := time.Now().UTC()
		row = tx.QueryRowContext(ctx, `
			UPDATE reservations
			SET status = $2, ready_on = $3, expires_on = $4, notified_on = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING `+reservationColumns+`
		`, id, status, now, now.Add(PickupWindow))
	case StatusPending:
		row = tx.QueryRowContext(ctx, `
			UPDATE reservations
			SET status = $2, ready_on = NULL, expires_on = NULL, notified_on = NULL, updated_at = NOW()
			WHERE id = $1
			RETURNING `+reservationColumns+`
		`, id, status)
	default:
		row = tx.QueryRowContext(ctx, `
			UPDATE reservations
			SET status = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING `+reservationColumns+`
		`, id, status)
	}

	reservation, err := scanReservation(row)
	if err != nil {
		return nil, err
	}

	if err := s.log.RecordTx(ctx, tx, "reservation", id, "ReservationStatusForced", map[string]string{
		"status": status,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return reservation, nil
}

// Get retrieves a reservation by its ID.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE id = $1
	`, id)
	return scanReservation(row)
}

// ListByStatus returns reservations with the given status in queue order,
// or all reservations when status is empty.
func (s *service) ListByStatus(ctx context.Context, status string) ([]*Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY status, queue_position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return collectReservations(rows)
}

// ForMember returns a member's reservations, newest first.
func (s *service) ForMember(ctx context.Context, memberID uuid.UUID) ([]*Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE member_id = $1
		ORDER BY reserved_on DESC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list member reservations: %w", err)
	}
	return collectReservations(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*Reservation, error) {
	reservation := &Reservation{}
	err := row.Scan(
		&reservation.ID,
		&reservation.BookID,
		&reservation.MemberID,
		&reservation.Status,
		&reservation.QueuePosition,
		&reservation.ReservedOn,
		&reservation.ReadyOn,
		&reservation.ExpiresOn,
		&reservation.NotifiedOn,
		&reservation.CreatedAt,
		&reservation.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	return reservation, nil
}

func collectReservations(rows *sql.Rows) ([]*Reservation, error) {
	defer rows.Close()
	var reservations []*Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return reservations, nil
}
