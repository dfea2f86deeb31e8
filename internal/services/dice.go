package services

import (
	"context"
	"fmt"
	"time"

	"minefield-backend/internal/models"
	"minefield-backend/pkg/logger"
)

// DiceOutcome is the result of a one-shot dice play.
type DiceOutcome struct {
	GameID          string
	Win             bool
	Rolled          float64
	RollOver        float64
	Multiplier      float64
	Payout          float64
	StartingBalance float64
	NewBalance      float64
}

// PlayDice runs the degenerate single-step game: one debit, one draw, one
// optional credit. No session stays in flight, so it shares the settlement
// contract with minefield but skips the session store entirely; the terminal
// record goes straight to history.
func (e *Engine) PlayDice(ctx context.Context, userID int64, req *models.DicePlayRequest) (*DiceOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	multiplier, err := DiceMultiplier(req.RollOver)
	if err != nil {
		return nil, err
	}

	wallet, err := e.wallets.Wallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load wallet: %v", ErrInternal, err)
	}
	startingBalance := wallet.Balance

	gameID := models.GenerateGameID()

	balance, err := e.settle.Debit(ctx, userID, req.BetAmount, "bet:"+gameID)
	if err != nil {
		return nil, err
	}

	// Claim the draw's nonce atomically; concurrent plays roll distinct values.
	nonce, err := e.wallets.ConsumeNonce(ctx, userID)
	if err != nil {
		if _, refundErr := e.settle.Credit(ctx, userID, req.BetAmount, "refund:"+gameID); refundErr != nil {
			logger.Error(ctx).Err(refundErr).Str("game_id", gameID).Msg("Failed to refund debit after nonce failure")
		}
		return nil, fmt.Errorf("%w: consume nonce: %v", ErrInternal, err)
	}

	rolled := e.fair.DiceRoll(wallet.ClientSeed, nonce)
	win := rolled > req.RollOver

	payout := 0.0
	if win {
		payout = req.BetAmount * multiplier
		balance, err = e.settle.Credit(ctx, userID, payout, "win:"+gameID)
		if err != nil {
			return nil, err
		}
	}

	e.recordDiceSession(ctx, userID, gameID, req, wallet, nonce, rolled, win, multiplier, payout)

	logger.Info(ctx).
		Str("game_id", gameID).
		Float64("rolled", rolled).
		Float64("roll_over", req.RollOver).
		Bool("win", win).
		Msg("Dice play settled")

	return &DiceOutcome{
		GameID:          gameID,
		Win:             win,
		Rolled:          rolled,
		RollOver:        req.RollOver,
		Multiplier:      multiplier,
		Payout:          payout,
		StartingBalance: startingBalance,
		NewBalance:      balance,
	}, nil
}

func (e *Engine) recordDiceSession(ctx context.Context, userID int64, gameID string, req *models.DicePlayRequest, wallet *models.Wallet, nonce int64, rolled float64, win bool, multiplier, payout float64) {
	if e.persist == nil {
		return
	}

	now := time.Now()
	status := models.StatusLost
	if win {
		status = models.StatusCleared
	}

	session := &models.GameSession{
		ID:             gameID,
		UserID:         userID,
		GameType:       models.GameTypeDice,
		BetAmount:      req.BetAmount,
		ClientSeed:     wallet.ClientSeed,
		ServerSeedHash: e.fair.ServerHash(),
		Nonce:          nonce,
		Roll:           rolled,
		RollOver:       req.RollOver,
		Multiplier:     multiplier,
		Payout:         payout,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
		EndedAt:        now,
	}

	if err := e.persist.SaveGameSession(ctx, session); err != nil {
		logger.Error(ctx).Err(err).Str("game_id", gameID).Msg("Failed to persist dice session")
		return
	}
	if err := e.persist.CompleteGameSession(ctx, userID, gameID); err != nil {
		logger.Error(ctx).Err(err).Str("game_id", gameID).Msg("Failed to complete dice session")
	}
}

// VerifyRequest re-derives a finished game's outcome from a revealed server
// seed so anyone can audit it.
type VerifyRequest struct {
	Game       models.GameType `json:"game" binding:"required"`
	ClientSeed string          `json:"client_seed" binding:"required"`
	ServerSeed string          `json:"server_seed" binding:"required"`
	Nonce      int64           `json:"nonce"`
	BombCount  int             `json:"bomb_count,omitempty"`
	BoardSize  int             `json:"board_size,omitempty"`
}

type VerifyResult struct {
	Game            models.GameType `json:"game"`
	ServerHash      string          `json:"server_hash"`
	HazardPositions []int           `json:"hazard_positions,omitempty"`
	Rolled          *float64        `json:"rolled,omitempty"`
}

// Verify recomputes the draw for the given seeds. The server hash of the
// supplied seed is returned so the caller can match it against the hash
// published before the game.
func (e *Engine) Verify(req *VerifyRequest) (*VerifyResult, error) {
	hash := NewFairness(req.ServerSeed).ServerHash()

	switch req.Game {
	case models.GameTypeMinefield:
		boardSize := req.BoardSize
		if boardSize == 0 {
			boardSize = e.boardSize
		}
		if req.BombCount < 1 || req.BombCount > boardSize-1 {
			return nil, fmt.Errorf("%w: bomb count %d out of range", ErrInvalidConfiguration, req.BombCount)
		}
		return &VerifyResult{
			Game:            req.Game,
			ServerHash:      hash,
			HazardPositions: DeriveHazardPositions(req.ServerSeed, req.ClientSeed, req.Nonce, boardSize, req.BombCount),
		}, nil
	case models.GameTypeDice:
		rolled := DeriveDiceRoll(req.ServerSeed, req.ClientSeed, req.Nonce)
		return &VerifyResult{
			Game:       req.Game,
			ServerHash: hash,
			Rolled:     &rolled,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown game %q", ErrInvalidConfiguration, req.Game)
	}
}
