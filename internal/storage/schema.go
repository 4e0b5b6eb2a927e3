// internal/storage/schema.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements are executed in order and must stay idempotent: the API
// and the operator CLIs all call EnsureSchema on startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS books (
		id UUID PRIMARY KEY,
		isbn TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		publisher TEXT,
		published_year INT,
		copies_total INT NOT NULL DEFAULT 1 CHECK (copies_total >= 0),
		copies_available INT NOT NULL DEFAULT 1 CHECK (copies_available >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (copies_available <= copies_total)
	)`,

	`CREATE TABLE IF NOT EXISTS members (
		id UUID PRIMARY KEY,
		identifier TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		email TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		password_hash TEXT,
		salt TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS loans (
		id UUID PRIMARY KEY,
		book_id UUID NOT NULL REFERENCES books(id),
		member_id UUID NOT NULL REFERENCES members(id),
		borrowed_on DATE NOT NULL,
		due_on DATE NOT NULL,
		returned_on DATE,
		status TEXT NOT NULL DEFAULT 'borrowed',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS loans_active_by_book
		ON loans (book_id) WHERE status IN ('borrowed', 'overdue')`,

	`CREATE INDEX IF NOT EXISTS loans_due_on
		ON loans (due_on) WHERE status = 'borrowed'`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id UUID PRIMARY KEY,
		book_id UUID NOT NULL REFERENCES books(id),
		member_id UUID NOT NULL REFERENCES members(id),
		status TEXT NOT NULL DEFAULT 'pending',
		queue_position INT NOT NULL CHECK (queue_position > 0),
		reserved_on TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ready_on TIMESTAMPTZ,
		expires_on TIMESTAMPTZ,
		notified_on TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (book_id, queue_position)
	)`,

	// One active hold per member per book. Concurrent enqueues race on this
	// index instead of a check-then-insert.
	`CREATE UNIQUE INDEX IF NOT EXISTS reservations_one_active_per_member
		ON reservations (book_id, member_id) WHERE status IN ('pending', 'ready')`,

	`CREATE TABLE IF NOT EXISTS fines (
		id UUID PRIMARY KEY,
		loan_id UUID NOT NULL REFERENCES loans(id),
		member_id UUID NOT NULL REFERENCES members(id),
		amount NUMERIC(10,2) NOT NULL CHECK (amount >= 0),
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'unpaid',
		assessed_on TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		settled_on TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		member_id UUID REFERENCES members(id),
		reservation_id UUID REFERENCES reservations(id),
		channel TEXT NOT NULL,
		type TEXT NOT NULL,
		payload JSONB,
		status TEXT NOT NULL DEFAULT 'pending',
		sent_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS notifications_pending_by_channel
		ON notifications (channel, created_at) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		entity_id UUID NOT NULL,
		entity_type TEXT NOT NULL,
		event_type TEXT NOT NULL,
		event_data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS audit_events_by_entity
		ON audit_events (entity_id, id)`,
}

// EnsureSchema creates all tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
