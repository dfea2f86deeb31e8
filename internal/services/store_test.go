package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minefield-backend/internal/models"
	"minefield-backend/internal/services"
)

func newStoreSession(id string) *models.GameSession {
	now := time.Now()
	return &models.GameSession{
		ID:                id,
		UserID:            1,
		GameType:          models.GameTypeMinefield,
		BetAmount:         100,
		BoardSize:         25,
		HazardCount:       3,
		HazardPositions:   []int{1, 2, 3},
		RevealedPositions: []int{},
		HitPosition:       -1,
		Status:            models.StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	persist := newMemPersistence()
	store := services.NewSessionStore(persist)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newStoreSession("g1")))
	assert.Equal(t, 1, store.Len())

	got, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.ID)

	// Snapshots do not alias the stored session.
	got.Status = models.StatusLost
	again, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, again.Status)

	err = store.Create(ctx, newStoreSession("g1"))
	assert.ErrorIs(t, err, services.ErrInternal)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrSessionNotFound)
}

func TestStoreMutateWritesThrough(t *testing.T) {
	persist := newMemPersistence()
	store := services.NewSessionStore(persist)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newStoreSession("g1")))

	err := store.Mutate(ctx, "g1", func(s *models.GameSession) (bool, error) {
		s.RevealedPositions = append(s.RevealedPositions, 7)
		return true, nil
	})
	require.NoError(t, err)

	persisted, err := persist.GetGameSession(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, persisted.RevealedPositions)
}

func TestStoreMutateErrorLeavesSessionUntouched(t *testing.T) {
	persist := newMemPersistence()
	store := services.NewSessionStore(persist)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newStoreSession("g1")))

	boom := errors.New("boom")
	err := store.Mutate(ctx, "g1", func(s *models.GameSession) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, got.RevealedPositions)
}

func TestStoreTerminalSessionEvictedButReadable(t *testing.T) {
	persist := newMemPersistence()
	store := services.NewSessionStore(persist)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newStoreSession("g1")))

	err := store.Mutate(ctx, "g1", func(s *models.GameSession) (bool, error) {
		s.Status = models.StatusCashedOut
		return true, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 0, store.Len(), "terminal sessions leave the registry")
	assert.Contains(t, persist.completed[1], "g1")

	// Reads fall through to persistence.
	got, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCashedOut, got.Status)

	// Mutation on a terminal session works on a copy and commits nothing.
	err = store.Mutate(ctx, "g1", func(s *models.GameSession) (bool, error) {
		s.Status = models.StatusActive
		return true, nil
	})
	require.NoError(t, err)

	got, err = store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCashedOut, got.Status)
}

func TestStoreMutateSerializesPerSession(t *testing.T) {
	store := services.NewSessionStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newStoreSession("g1")))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(pos int) {
			defer wg.Done()
			err := store.Mutate(ctx, "g1", func(s *models.GameSession) (bool, error) {
				s.RevealedPositions = append(s.RevealedPositions, pos)
				return true, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, got.RevealedPositions, workers, "every mutation must land exactly once")
}

func TestStoreRecoversActiveSessionFromPersistence(t *testing.T) {
	persist := newMemPersistence()
	ctx := context.Background()

	storeA := services.NewSessionStore(persist)
	require.NoError(t, storeA.Create(ctx, newStoreSession("g1")))

	// A fresh store over the same persistence starts empty; mutating the
	// session pulls it back into the registry and commits write-through.
	storeB := services.NewSessionStore(persist)
	assert.Equal(t, 0, storeB.Len())

	err := storeB.Mutate(ctx, "g1", func(s *models.GameSession) (bool, error) {
		s.RevealedPositions = append(s.RevealedPositions, 3)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, storeB.Len(), "a recovered Active session rejoins the registry")

	persisted, err := persist.GetGameSession(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, persisted.RevealedPositions)

	// A terminal transition on the recovered session commits exactly once.
	err = storeB.Mutate(ctx, "g1", func(s *models.GameSession) (bool, error) {
		s.Status = models.StatusCashedOut
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, storeB.Len())
	assert.Contains(t, persist.completed[1], "g1")

	persisted, err = persist.GetGameSession(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCashedOut, persisted.Status)
}

func TestStoreMutateCommitSurvivesPersistOutage(t *testing.T) {
	persist := newMemPersistence()
	store := services.NewSessionStore(persist)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newStoreSession("g1")))

	persist.failUpdate = true
	err := store.Mutate(ctx, "g1", func(s *models.GameSession) (bool, error) {
		s.RevealedPositions = append(s.RevealedPositions, 7)
		return true, nil
	})
	require.NoError(t, err, "a committed mutation must not fail on write-through")

	got, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, got.RevealedPositions)
}
