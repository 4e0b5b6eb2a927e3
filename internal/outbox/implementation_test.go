// internal/outbox/implementation_test.go
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracore/internal/storage/storagetest"
)

func setup(t *testing.T) (*sql.DB, Service) {
	db := storagetest.Open(t)
	return db, NewService(db)
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

func enqueue(t *testing.T, svc Service, memberID uuid.UUID, channel string) *Entry {
	t.Helper()
	payload, _ := json.Marshal(map[string]string{"subject": "hello"})
	entry, err := svc.Enqueue(context.Background(), Entry{
		MemberID: &memberID,
		Channel:  channel,
		Type:     TypeOverdueReminder,
		Payload:  payload,
	})
	require.NoError(t, err)
	return entry
}

func TestEnqueueRequiresChannelAndType(t *testing.T) {
	_, svc := setup(t)

	_, err := svc.Enqueue(context.Background(), Entry{Channel: "email"})
	assert.Error(t, err)
	_, err = svc.Enqueue(context.Background(), Entry{Type: TypeHoldReady})
	assert.Error(t, err)
}

func TestClaimPendingMarksBatchSending(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	memberID := newMember(t, db)

	first := enqueue(t, svc, memberID, "email")
	enqueue(t, svc, memberID, "email")
	enqueue(t, svc, memberID, "sms")

	batch, err := svc.ClaimPending(ctx, "email", 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, first.ID, batch[0].ID)
	for _, entry := range batch {
		assert.Equal(t, StatusSending, entry.Status)
	}

	// The claimed batch is no longer visible to a second claimer.
	again, err := svc.ClaimPending(ctx, "email", 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	sms, err := svc.ClaimPending(ctx, "sms", 10)
	require.NoError(t, err)
	assert.Len(t, sms, 1)
}

func TestClaimPendingHonorsLimit(t *testing.T) {
	db, svc := setup(t)
	memberID := newMember(t, db)

	for i := 0; i < 5; i++ {
		enqueue(t, svc, memberID, "email")
	}

	batch, err := svc.ClaimPending(context.Background(), "email", 2)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestMarkSentAndFailed(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	memberID := newMember(t, db)

	entry := enqueue(t, svc, memberID, "email")
	other := enqueue(t, svc, memberID, "email")

	sent, err := svc.MarkSent(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)

	failed, err := svc.MarkFailed(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Nil(t, failed.SentAt)

	// Neither outcome counts as pending anymore.
	pending, err := svc.PendingForMember(ctx, memberID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkSentNotFound(t *testing.T) {
	_, svc := setup(t)

	_, err := svc.MarkSent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
