package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGormInboxRepository_SeenAndRecord(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInboxRepository(db)
	ctx := context.Background()

	eventID := uuid.New()

	seen, err := repo.Seen(ctx, eventID, "projector")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, repo.Record(ctx, eventID, "projector"))
	require.NoError(t, repo.Record(ctx, eventID, "projector"), "duplicate record is a no-op")

	seen, err = repo.Seen(ctx, eventID, "projector")
	require.NoError(t, err)
	assert.True(t, seen)

	// The ledger is per handler, not per event.
	seen, err = repo.Seen(ctx, eventID, "notifier")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGormInboxRepository_Claim(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormInboxRepository(db)
	ctx := context.Background()

	eventID := uuid.New()

	won, err := repo.Claim(ctx, eventID, "consumer-a")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Claim(ctx, eventID, "consumer-a")
	require.NoError(t, err)
	assert.False(t, won, "second claim of the same pair loses")

	won, err = repo.Claim(ctx, eventID, "consumer-b")
	require.NoError(t, err)
	assert.True(t, won, "a different identity claims independently")
}

func TestGormInboxRepository_ClaimRollsBackWithTransaction(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	eventID := uuid.New()

	failure := errors.New("handler failed after claim")
	err := db.Transaction(func(tx *gorm.DB) error {
		won, err := NewGormInboxRepository(tx).Claim(ctx, eventID, "consumer-a")
		require.NoError(t, err)
		require.True(t, won)
		return failure
	})
	require.ErrorIs(t, err, failure)

	// The rolled-back claim must be winnable again on redelivery.
	won, err := NewGormInboxRepository(db).Claim(ctx, eventID, "consumer-a")
	require.NoError(t, err)
	assert.True(t, won)
}
