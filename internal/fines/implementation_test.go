// internal/fines/implementation_test.go
package fines

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracore/internal/audit"
	"libracore/internal/outbox"
	"libracore/internal/storage/storagetest"
)

func setup(t *testing.T) (*sql.DB, Service) {
	db := storagetest.Open(t)
	return db, NewService(db, audit.NewLog(db))
}

// newLoan inserts the member, book and loan rows a fine hangs off.
func newLoan(t *testing.T, db *sql.DB) (loanID, memberID uuid.UUID) {
	t.Helper()
	bookID := uuid.New()
	memberID = uuid.New()
	loanID = uuid.New()

	_, err := db.Exec(`
		INSERT INTO books (id, isbn, title, author, copies_total, copies_available)
		VALUES ($1, $2, 'Test Book', 'Test Author', 1, 0)
	`, bookID, uuid.NewString())
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO members (id, identifier, full_name) VALUES ($1, $2, 'Test Member')
	`, memberID, uuid.NewString())
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO loans (id, book_id, member_id, borrowed_on, due_on, status)
		VALUES ($1, $2, $3, CURRENT_DATE - 20, CURRENT_DATE - 6, 'overdue')
	`, loanID, bookID, memberID)
	require.NoError(t, err)

	return loanID, memberID
}

func TestAssessQueuesNotification(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	loanID, memberID := newLoan(t, db)

	fine, err := svc.Assess(ctx, loanID, memberID, 12.50, "overdue return")
	require.NoError(t, err)
	assert.Equal(t, StatusUnpaid, fine.Status)
	assert.Equal(t, 12.50, fine.Amount)
	assert.Nil(t, fine.SettledOn)

	pending, err := outbox.NewService(db).PendingForMember(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, outbox.TypeFineAssessed, pending[0].Type)
}

func TestAssessRejectsNegativeAmount(t *testing.T) {
	db, svc := setup(t)
	loanID, memberID := newLoan(t, db)

	_, err := svc.Assess(context.Background(), loanID, memberID, -1, "")
	assert.Error(t, err)
}

func TestMarkPaidSetsSettlement(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	loanID, memberID := newLoan(t, db)

	fine, err := svc.Assess(ctx, loanID, memberID, 5, "overdue return")
	require.NoError(t, err)

	paid, err := svc.MarkPaid(ctx, fine.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	require.NotNil(t, paid.SettledOn)
	assert.WithinDuration(t, time.Now(), *paid.SettledOn, time.Minute)
}

func TestWaiveLeavesNoSettlement(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	loanID, memberID := newLoan(t, db)

	fine, err := svc.Assess(ctx, loanID, memberID, 5, "lost book")
	require.NoError(t, err)

	waived, err := svc.Waive(ctx, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusWaived, waived.Status)
	assert.Nil(t, waived.SettledOn)
}

func TestMarkPaidNotFound(t *testing.T) {
	_, svc := setup(t)

	_, err := svc.MarkPaid(context.Background(), uuid.New(), time.Time{})
	assert.ErrorIs(t, err, ErrFineNotFound)
}

func TestOutstandingForMember(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	loanID, memberID := newLoan(t, db)

	first, err := svc.Assess(ctx, loanID, memberID, 4.25, "overdue return")
	require.NoError(t, err)
	_, err = svc.Assess(ctx, loanID, memberID, 3.75, "damaged cover")
	require.NoError(t, err)

	total, err := svc.OutstandingForMember(ctx, memberID)
	require.NoError(t, err)
	assert.InDelta(t, 8.0, total, 0.001)

	_, err = svc.MarkPaid(ctx, first.ID, time.Time{})
	require.NoError(t, err)

	total, err = svc.OutstandingForMember(ctx, memberID)
	require.NoError(t, err)
	assert.InDelta(t, 3.75, total, 0.001)

	unpaid, err := svc.UnpaidForMember(ctx, memberID)
	require.NoError(t, err)
	assert.Len(t, unpaid, 1)
}

func TestOutstandingForMemberWithoutFines(t *testing.T) {
	_, svc := setup(t)

	total, err := svc.OutstandingForMember(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, total)
}
