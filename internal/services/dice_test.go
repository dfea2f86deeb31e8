package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minefield-backend/internal/models"
	"minefield-backend/internal/services"
)

// rollAtNonce returns the roll the engine will draw for the given nonce.
func rollAtNonce(nonce int64) float64 {
	return services.DeriveDiceRoll(testServerSeed, testClientSeed, nonce)
}

// playUntil advances the nonce with throwaway plays until the next draw
// satisfies want, then returns that play's outcome.
func playUntil(t *testing.T, engine *services.Engine, userID int64, req *models.DicePlayRequest, want func(roll float64) bool) *services.DiceOutcome {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		wallet, err := engine.VerificationData(ctx, userID)
		require.NoError(t, err)
		if want(rollAtNonce(wallet.CurrentNonce)) {
			outcome, err := engine.PlayDice(ctx, userID, req)
			require.NoError(t, err)
			return outcome
		}
		_, err = engine.PlayDice(ctx, userID, &models.DicePlayRequest{BetAmount: 1, RollOver: 50})
		require.NoError(t, err)
	}
	t.Fatal("no nonce within 200 draws produced the wanted roll")
	return nil
}

func TestPlayDiceValidation(t *testing.T) {
	engine, bank, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.PlayDice(ctx, 1, &models.DicePlayRequest{BetAmount: 100, RollOver: 0})
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)

	_, err = engine.PlayDice(ctx, 1, &models.DicePlayRequest{BetAmount: 100, RollOver: 100})
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)

	_, err = engine.PlayDice(ctx, 1, &models.DicePlayRequest{BetAmount: startBalance + 1, RollOver: 50})
	assert.ErrorIs(t, err, services.ErrInsufficientFunds)

	assert.Equal(t, startBalance, bank.balance(1))
}

func TestPlayDiceWinSettlesPayout(t *testing.T) {
	engine, bank, persist := newTestEngine(t)

	outcome := playUntil(t, engine, 1, &models.DicePlayRequest{BetAmount: 100, RollOver: 50},
		func(roll float64) bool { return roll > 50 })

	assert.True(t, outcome.Win)
	assert.Greater(t, outcome.Rolled, 50.0)
	assert.InDelta(t, 1.98, outcome.Multiplier, 1e-12)
	assert.InDelta(t, 198.0, outcome.Payout, 1e-9)
	assert.InDelta(t, outcome.StartingBalance-100+198, outcome.NewBalance, 1e-9)

	session, err := persist.GetGameSession(context.Background(), outcome.GameID)
	require.NoError(t, err)
	assert.Equal(t, models.GameTypeDice, session.GameType)
	assert.Equal(t, models.StatusCleared, session.Status)
	assert.Equal(t, outcome.Rolled, session.Roll)
	assert.Contains(t, persist.completed[1], outcome.GameID)

	assert.GreaterOrEqual(t, bank.credits, 1)
}

func TestPlayDiceLossKeepsStake(t *testing.T) {
	engine, _, persist := newTestEngine(t)

	outcome := playUntil(t, engine, 1, &models.DicePlayRequest{BetAmount: 100, RollOver: 50},
		func(roll float64) bool { return roll <= 50 })

	assert.False(t, outcome.Win)
	assert.LessOrEqual(t, outcome.Rolled, 50.0)
	assert.Zero(t, outcome.Payout)
	assert.InDelta(t, outcome.StartingBalance-100, outcome.NewBalance, 1e-9)

	session, err := persist.GetGameSession(context.Background(), outcome.GameID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLost, session.Status)
}

func TestPlayDiceConsumesNonce(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	before, err := engine.VerificationData(ctx, 1)
	require.NoError(t, err)

	_, err = engine.PlayDice(ctx, 1, &models.DicePlayRequest{BetAmount: 10, RollOver: 50})
	require.NoError(t, err)

	after, err := engine.VerificationData(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before.CurrentNonce+1, after.CurrentNonce)
}

func TestVerifyRecomputesDraws(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	layout, err := engine.Verify(&services.VerifyRequest{
		Game:       models.GameTypeMinefield,
		ClientSeed: testClientSeed,
		ServerSeed: testServerSeed,
		Nonce:      7,
		BombCount:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, services.NewFairness(testServerSeed).ServerHash(), layout.ServerHash)
	assert.Equal(t, services.DeriveHazardPositions(testServerSeed, testClientSeed, 7, 25, 5), layout.HazardPositions)

	roll, err := engine.Verify(&services.VerifyRequest{
		Game:       models.GameTypeDice,
		ClientSeed: testClientSeed,
		ServerSeed: testServerSeed,
		Nonce:      7,
	})
	require.NoError(t, err)
	require.NotNil(t, roll.Rolled)
	assert.Equal(t, services.DeriveDiceRoll(testServerSeed, testClientSeed, 7), *roll.Rolled)

	_, err = engine.Verify(&services.VerifyRequest{Game: "roulette", ClientSeed: "a", ServerSeed: "b"})
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)

	_, err = engine.Verify(&services.VerifyRequest{Game: models.GameTypeMinefield, ClientSeed: "a", ServerSeed: "b", BombCount: 0})
	assert.ErrorIs(t, err, services.ErrInvalidConfiguration)
}
