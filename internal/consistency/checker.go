// internal/consistency/checker.go
package consistency

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Check is one invariant over the ledger tables. Query returns the number
// of rows violating it; a healthy database returns 0 for every check.
type Check struct {
	Name       string
	Hypothesis string
	Query      func(ctx context.Context, db *sql.DB) (int, error)
}

// Violation reports one failed check.
type Violation struct {
	Check      string    `json:"check"`
	Hypothesis string    `json:"hypothesis"`
	Rows       int       `json:"rows"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Checker runs the registered invariant checks against the database.
type Checker struct {
	db     *sql.DB
	checks []Check
	tracer trace.Tracer
}

// NewChecker creates a checker with the full set of ledger invariants.
func NewChecker(db *sql.DB) *Checker {
	c := &Checker{
		db:     db,
		tracer: otel.Tracer("libracore/consistency"),
	}
	c.registerChecks()
	return c
}

func (c *Checker) registerChecks() {
	c.checks = []Check{
		{
			Name:       "copy-conservation",
			Hypothesis: "available copies plus active loans equals total copies for every book",
			Query: countQuery(`
				SELECT COUNT(*) FROM books b
				WHERE b.copies_available + (
					SELECT COUNT(*) FROM loans l
					WHERE l.book_id = b.id AND l.status IN ('borrowed', 'overdue')
				) <> b.copies_total
			`),
		},
		{
			Name:       "availability-bounds",
			Hypothesis: "available copies stay within [0, total copies]",
			Query: countQuery(`
				SELECT COUNT(*) FROM books
				WHERE copies_available < 0 OR copies_available > copies_total
			`),
		},
		{
			Name:       "one-active-hold-per-member",
			Hypothesis: "a member holds at most one pending or ready reservation per book",
			Query: countQuery(`
				SELECT COALESCE(SUM(cnt - 1), 0)::int FROM (
					SELECT COUNT(*) AS cnt FROM reservations
					WHERE status IN ('pending', 'ready')
					GROUP BY book_id, member_id
					HAVING COUNT(*) > 1
				) dup
			`),
		},
		{
			Name:       "queue-position-unique",
			Hypothesis: "no two reservations for a book share a queue position",
			Query: countQuery(`
				SELECT COALESCE(SUM(cnt - 1), 0)::int FROM (
					SELECT COUNT(*) AS cnt FROM reservations
					GROUP BY book_id, queue_position
					HAVING COUNT(*) > 1
				) dup
			`),
		},
		{
			Name:       "ready-holds-have-window",
			Hypothesis: "every ready reservation carries ready_on and expires_on",
			Query: countQuery(`
				SELECT COUNT(*) FROM reservations
				WHERE status = 'ready' AND (ready_on IS NULL OR expires_on IS NULL)
			`),
		},
		{
			Name:       "returned-loans-dated",
			Hypothesis: "every returned loan has a return date, no active loan does",
			Query: countQuery(`
				SELECT COUNT(*) FROM loans
				WHERE (status = 'returned' AND returned_on IS NULL)
				   OR (status IN ('borrowed', 'overdue') AND returned_on IS NOT NULL)
			`),
		},
		{
			Name:       "due-after-borrowed",
			Hypothesis: "every loan is due on or after the day it was borrowed",
			Query: countQuery(`
				SELECT COUNT(*) FROM loans WHERE due_on < borrowed_on
			`),
		},
		{
			Name:       "settled-fines-dated",
			Hypothesis: "paid fines carry a settlement date, unpaid fines do not",
			Query: countQuery(`
				SELECT COUNT(*) FROM fines
				WHERE (status = 'paid' AND settled_on IS NULL)
				   OR (status = 'unpaid' AND settled_on IS NOT NULL)
			`),
		},
		{
			Name:       "sent-notifications-dated",
			Hypothesis: "every sent notification records when it went out",
			Query: countQuery(`
				SELECT COUNT(*) FROM notifications
				WHERE status = 'sent' AND sent_at IS NULL
			`),
		},
	}
}

func countQuery(query string) func(ctx context.Context, db *sql.DB) (int, error) {
	return func(ctx context.Context, db *sql.DB) (int, error) {
		var n int
		err := db.QueryRowContext(ctx, query).Scan(&n)
		return n, err
	}
}

// Run executes every check and returns the violations found. A nil slice
// with a nil error means the database satisfies all invariants.
func (c *Checker) Run(ctx context.Context) ([]Violation, error) {
	ctx, span := c.tracer.Start(ctx, "consistency.run")
	defer span.End()

	var violations []Violation
	for _, check := range c.checks {
		rows, err := check.Query(ctx, c.db)
		if err != nil {
			return violations, fmt.Errorf("check %s: %w", check.Name, err)
		}
		if rows > 0 {
			violations = append(violations, Violation{
				Check:      check.Name,
				Hypothesis: check.Hypothesis,
				Rows:       rows,
				CheckedAt:  time.Now().UTC(),
			})
		}
	}
	span.SetAttributes(
		attribute.Int("checks.run", len(c.checks)),
		attribute.Int("checks.violated", len(violations)),
	)
	return violations, nil
}

// Checks returns the names of all registered checks.
func (c *Checker) Checks() []string {
	names := make([]string, 0, len(c.checks))
	for _, check := range c.checks {
		names = append(names, check.Name)
	}
	return names
}
