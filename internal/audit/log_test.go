// internal/audit/log_test.go
package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracore/internal/storage/storagetest"
)

func TestRecordAndReadBack(t *testing.T) {
	db := storagetest.Open(t)
	log := NewLog(db)
	ctx := context.Background()

	entityID := uuid.New()
	require.NoError(t, log.Record(ctx, "loan", entityID, "LoanIssued", map[string]string{"due_on": "2026-09-13"}))
	require.NoError(t, log.Record(ctx, "loan", entityID, "LoanReturned", map[string]string{"returned_on": "2026-09-10"}))
	require.NoError(t, log.Record(ctx, "loan", uuid.New(), "LoanIssued", map[string]string{}))

	events, err := log.ForEntity(ctx, entityID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "LoanIssued", events[0].EventType)
	assert.Equal(t, "LoanReturned", events[1].EventType)
	assert.Less(t, events[0].ID, events[1].ID)

	var data map[string]string
	require.NoError(t, json.Unmarshal(events[0].EventData, &data))
	assert.Equal(t, "2026-09-13", data["due_on"])
}

func TestRecordTxRollsBackWithCaller(t *testing.T) {
	db := storagetest.Open(t)
	log := NewLog(db)
	ctx := context.Background()

	entityID := uuid.New()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, log.RecordTx(ctx, tx, "fine", entityID, "FineAssessed", map[string]string{}))
	require.NoError(t, tx.Rollback())

	events, err := log.ForEntity(ctx, entityID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestStreamPaginates(t *testing.T) {
	db := storagetest.Open(t)
	log := NewLog(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Record(ctx, "reservation", uuid.New(), "ReservationQueued", map[string]int{"n": i}))
	}

	first, err := log.Stream(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	rest, err := log.Stream(ctx, first[len(first)-1].ID, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.Greater(t, rest[0].ID, first[2].ID)
}
