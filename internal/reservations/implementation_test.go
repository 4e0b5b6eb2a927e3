// internal/reservations/implementation_test.go
package reservations

import (
	"context"
	"database/sql"
	"sync"
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

func newBook(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO books (id, isbn, title, author, copies_total, copies_available)
		VALUES ($1, $2, 'Test Book', 'Test Author', 1, 0)
	`, id, uuid.NewString())
	require.NoError(t, err)
	return id
}

func newMember(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO members (id, identifier, full_name) VALUES ($1, $2, 'Test Member')
	`, id, uuid.NewString())
	require.NoError(t, err)
	return id
}

func TestEnqueueAssignsSequentialPositions(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	bookID := newBook(t, db)

	for want := 1; want <= 3; want++ {
		res, err := svc.Enqueue(ctx, bookID, newMember(t, db))
		require.NoError(t, err)
		assert.Equal(t, want, res.QueuePosition)
		assert.Equal(t, StatusPending, res.Status)
	}
}

func TestEnqueueRejectsSecondActiveHold(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	bookID := newBook(t, db)
	memberID := newMember(t, db)

	first, err := svc.Enqueue(ctx, bookID, memberID)
	require.NoError(t, err)

	_, err = svc.Enqueue(ctx, bookID, memberID)
	assert.ErrorIs(t, err, ErrDuplicateReservation)

	// Positions are never reused: after the active hold leaves the queue a
	// new one continues the sequence.
	_, err = svc.ForceStatus(ctx, first.ID, StatusCancelled)
	require.NoError(t, err)

	again, err := svc.Enqueue(ctx, bookID, memberID)
	require.NoError(t, err)
	assert.Equal(t, 2, again.QueuePosition)
}

func TestEnqueueConcurrentUniquePositions(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	bookID := newBook(t, db)

	const workers = 10
	members := make([]uuid.UUID, workers)
	for i := range members {
		members[i] = newMember(t, db)
	}

	var wg sync.WaitGroup
	positions := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(memberID uuid.UUID) {
			defer wg.Done()
			res, err := svc.Enqueue(ctx, bookID, memberID)
			if err == nil {
				positions <- res.QueuePosition
			}
		}(members[i])
	}
	wg.Wait()
	close(positions)

	seen := map[int]bool{}
	for pos := range positions {
		assert.False(t, seen[pos], "queue position %d assigned twice", pos)
		seen[pos] = true
	}
}

func TestPromoteNextFIFO(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	bookID := newBook(t, db)

	first, err := svc.Enqueue(ctx, bookID, newMember(t, db))
	require.NoError(t, err)
	second, err := svc.Enqueue(ctx, bookID, newMember(t, db))
	require.NoError(t, err)

	promoted, err := svc.PromoteNext(ctx, bookID)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, first.ID, promoted.ID)
	assert.Equal(t, StatusReady, promoted.Status)
	require.NotNil(t, promoted.ReadyOn)
	require.NotNil(t, promoted.ExpiresOn)
	require.NotNil(t, promoted.NotifiedOn)
	assert.WithinDuration(t, promoted.ReadyOn.Add(PickupWindow), *promoted.ExpiresOn, time.Second)

	promoted, err = svc.PromoteNext(ctx, bookID)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, second.ID, promoted.ID)
}

func TestPromoteNextEmptyQueue(t *testing.T) {
	db, svc := setup(t)

	promoted, err := svc.PromoteNext(context.Background(), newBook(t, db))
	require.NoError(t, err)
	assert.Nil(t, promoted)
}

func TestPromoteNextQueuesHoldReadyNotification(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	bookID := newBook(t, db)
	memberID := newMember(t, db)

	_, err := svc.Enqueue(ctx, bookID, memberID)
	require.NoError(t, err)
	_, err = svc.PromoteNext(ctx, bookID)
	require.NoError(t, err)

	pending, err := outbox.NewService(db).PendingForMember(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, outbox.TypeHoldReady, pending[0].Type)
	assert.Equal(t, notifyChannel, pending[0].Channel)
}

func TestExpireReadyHolds(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	bookID := newBook(t, db)

	res, err := svc.Enqueue(ctx, bookID, newMember(t, db))
	require.NoError(t, err)
	_, err = svc.PromoteNext(ctx, bookID)
	require.NoError(t, err)

	// Inside the pickup window nothing expires.
	count, err := svc.ExpireReadyHolds(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = svc.ExpireReadyHolds(ctx, time.Now().Add(PickupWindow+time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	expired, err := svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, expired.Status)
}

func TestForceStatus(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	bookID := newBook(t, db)

	res, err := svc.Enqueue(ctx, bookID, newMember(t, db))
	require.NoError(t, err)

	_, err = svc.ForceStatus(ctx, res.ID, "borrowed")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	ready, err := svc.ForceStatus(ctx, res.ID, StatusReady)
	require.NoError(t, err)
	require.NotNil(t, ready.ReadyOn)
	require.NotNil(t, ready.ExpiresOn)

	// Forcing back to pending clears the window timestamps.
	pending, err := svc.ForceStatus(ctx, res.ID, StatusPending)
	require.NoError(t, err)
	assert.Nil(t, pending.ReadyOn)
	assert.Nil(t, pending.ExpiresOn)
	assert.Nil(t, pending.NotifiedOn)

	_, err = svc.ForceStatus(ctx, uuid.New(), StatusCancelled)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestListByStatusAndForMember(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	bookID := newBook(t, db)
	memberID := newMember(t, db)

	res, err := svc.Enqueue(ctx, bookID, memberID)
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, bookID, newMember(t, db))
	require.NoError(t, err)

	pending, err := svc.ListByStatus(ctx, StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	mine, err := svc.ForMember(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, res.ID, mine[0].ID)
}
