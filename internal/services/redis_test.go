package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minefield-backend/internal/config"
	"minefield-backend/internal/models"
	"minefield-backend/internal/services"
)

// These tests need a running Redis (REDIS_URL or localhost:6379) and are
// skipped without one.
func newTestRedis(t *testing.T) *services.RedisService {
	t.Helper()

	cfg := &config.Config{
		RedisURL:        "localhost:6379",
		StartingBalance: 10000,
	}
	svc, err := services.NewRedisService(cfg)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func testUserID() int64 {
	return time.Now().UnixNano()
}

func TestRedisWalletProvisioning(t *testing.T) {
	svc := newTestRedis(t)
	ctx := context.Background()
	userID := testUserID()
	defer svc.DeleteWallet(ctx, userID)

	wallet, err := svc.Wallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, wallet.UserID)
	assert.Equal(t, 10000.0, wallet.Balance)
	assert.Len(t, wallet.ClientSeed, 32)
	assert.Zero(t, wallet.Nonce)

	// A second read returns the same wallet, not a fresh one.
	again, err := svc.Wallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, wallet.ClientSeed, again.ClientSeed)
}

func TestRedisDebitCreditIdempotency(t *testing.T) {
	svc := newTestRedis(t)
	ctx := context.Background()
	userID := testUserID()
	betRef := fmt.Sprintf("bet:test-%d", userID)
	winRef := fmt.Sprintf("win:test-%d", userID)
	defer func() {
		svc.DeleteWallet(ctx, userID)
		svc.DeleteSettlement(ctx, betRef)
		svc.DeleteSettlement(ctx, winRef)
	}()

	_, err := svc.Wallet(ctx, userID)
	require.NoError(t, err)

	balance, err := svc.Debit(ctx, userID, 100, betRef)
	require.NoError(t, err)
	assert.Equal(t, 9900.0, balance)

	// Replaying the same ref moves no more funds.
	balance, err = svc.Debit(ctx, userID, 100, betRef)
	require.NoError(t, err)
	assert.Equal(t, 9900.0, balance)

	balance, err = svc.Credit(ctx, userID, 250, winRef)
	require.NoError(t, err)
	assert.Equal(t, 10150.0, balance)

	balance, err = svc.Credit(ctx, userID, 250, winRef)
	require.NoError(t, err)
	assert.Equal(t, 10150.0, balance)

	wallet, err := svc.Wallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 10150.0, wallet.Balance)
	assert.Equal(t, 100.0, wallet.TotalWagered)
	assert.Equal(t, 250.0, wallet.TotalWon)
}

func TestRedisDebitInsufficientFunds(t *testing.T) {
	svc := newTestRedis(t)
	ctx := context.Background()
	userID := testUserID()
	ref := fmt.Sprintf("bet:test-%d", userID)
	defer func() {
		svc.DeleteWallet(ctx, userID)
		svc.DeleteSettlement(ctx, ref)
	}()

	_, err := svc.Wallet(ctx, userID)
	require.NoError(t, err)

	_, err = svc.Debit(ctx, userID, 10001, ref)
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)

	wallet, err := svc.Wallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, wallet.Balance)
}

func TestRedisConsumeNonce(t *testing.T) {
	svc := newTestRedis(t)
	ctx := context.Background()
	userID := testUserID()
	defer svc.DeleteWallet(ctx, userID)

	_, err := svc.Wallet(ctx, userID)
	require.NoError(t, err)

	// Each claim returns the nonce to draw with and advances past it.
	n, err := svc.ConsumeNonce(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = svc.ConsumeNonce(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	wallet, err := svc.Wallet(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), wallet.Nonce)
}

func TestRedisGameSessionLifecycle(t *testing.T) {
	svc := newTestRedis(t)
	ctx := context.Background()
	userID := testUserID()
	gameID := fmt.Sprintf("test-game-%d", userID)
	defer svc.DeleteGameSession(ctx, gameID)

	now := time.Now()
	session := &models.GameSession{
		ID:                gameID,
		UserID:            userID,
		GameType:          models.GameTypeMinefield,
		BetAmount:         100,
		BoardSize:         25,
		HazardCount:       3,
		HazardPositions:   []int{4, 9, 17},
		RevealedPositions: []int{},
		HitPosition:       -1,
		Status:            models.StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	require.NoError(t, svc.SaveGameSession(ctx, session))

	active, err := svc.GetUserActiveGames(ctx, userID)
	require.NoError(t, err)
	assert.Contains(t, active, gameID)

	got, err := svc.GetGameSession(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, session.HazardPositions, got.HazardPositions)
	assert.Equal(t, models.StatusActive, got.Status)

	session.Status = models.StatusCashedOut
	session.Payout = 123.75
	require.NoError(t, svc.UpdateGameSession(ctx, session))
	require.NoError(t, svc.CompleteGameSession(ctx, userID, gameID))

	active, err = svc.GetUserActiveGames(ctx, userID)
	require.NoError(t, err)
	assert.NotContains(t, active, gameID)

	history, err := svc.GetGameHistory(ctx, userID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, gameID, history[0].ID)
	assert.Equal(t, models.StatusCashedOut, history[0].Status)

	_, err = svc.GetGameSession(ctx, "no-such-game")
	assert.ErrorIs(t, err, services.ErrSessionNotFound)
}

func TestRedisRateLimit(t *testing.T) {
	svc := newTestRedis(t)
	ctx := context.Background()
	userID := testUserID()
	defer svc.ClearRateLimit(ctx, userID, "test")

	for i := 0; i < 3; i++ {
		ok, err := svc.CheckRateLimit(ctx, userID, "test", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}

	ok, err := svc.CheckRateLimit(ctx, userID, "test", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth request must be limited")
}
