// internal/audit/log.go
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Event is one recorded lifecycle transition. Events are append-only and
// ordered by ID; they are never read back to derive state.
type Event struct {
	ID         int64           `json:"id"`
	EntityID   uuid.UUID       `json:"entity_id"`
	EntityType string          `json:"entity_type"`
	EventType  string          `json:"event_type"`
	EventData  json.RawMessage `json:"event_data"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Log records lifecycle transitions for loans, reservations and fines.
type Log struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewLog creates a new audit log backed by the given database.
func NewLog(db *sql.DB) *Log {
	return &Log{
		db:     db,
		tracer: otel.Tracer("libracore/audit"),
	}
}

// RecordTx appends one event inside the caller's transaction, so the state
// change and its audit record commit or roll back together.
func (l *Log) RecordTx(ctx context.Context, tx *sql.Tx, entityType string, entityID uuid.UUID, eventType string, data any) error {
	_, span := l.tracer.Start(ctx, "audit.record",
		trace.WithAttributes(
			attribute.String("entity.type", entityType),
			attribute.String("entity.id", entityID.String()),
			attribute.String("event.type", eventType),
		),
	)
	defer span.End()

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_events (entity_id, entity_type, event_type, event_data)
		VALUES ($1, $2, $3, $4)
	`, entityID, entityType, eventType, payload); err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}

	return nil
}

// Record appends one event in its own transaction.
func (l *Log) Record(ctx context.Context, entityType string, entityID uuid.UUID, eventType string, data any) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := l.RecordTx(ctx, tx, entityType, entityID, eventType, data); err != nil {
		return err
	}
	return tx.Commit()
}

// ForEntity returns all events recorded for one entity in order.
func (l *Log) ForEntity(ctx context.Context, entityID uuid.UUID) ([]Event, error) {
	ctx, span := l.tracer.Start(ctx, "audit.for_entity",
		trace.WithAttributes(attribute.String("entity.id", entityID.String())),
	)
	defer span.End()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, entity_id, entity_type, event_type, event_data, created_at
		FROM audit_events
		WHERE entity_id = $1
		ORDER BY id ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events, err := collectEvents(rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// Stream returns a batch of events after the given cursor, for external
// consumers that tail the log.
func (l *Log) Stream(ctx context.Context, fromID int64, batchSize int) ([]Event, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, entity_id, entity_type, event_type, event_data, created_at
		FROM audit_events
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, fromID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("stream audit events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var event Event
		var data []byte
		if err := rows.Scan(
			&event.ID,
			&event.EntityID,
			&event.EntityType,
			&event.EventType,
			&data,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.EventData = data
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
