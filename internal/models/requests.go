package models

import "fmt"

// Request bounds. Amounts are in cents, the wallet's unit.
const (
	MinBetAmount = 1
	MaxBetAmount = 1000000 // $10,000
)

type MinefieldBetRequest struct {
	BombCount int     `json:"bombCount" binding:"required"`
	BetAmount float64 `json:"betAmount" binding:"required"`
}

func (r *MinefieldBetRequest) Validate(boardSize int) error {
	if r.BombCount < 1 || r.BombCount > boardSize-1 {
		return fmt.Errorf("bomb count must be between 1 and %d", boardSize-1)
	}
	if r.BetAmount < MinBetAmount {
		return fmt.Errorf("minimum bet is %d cent", MinBetAmount)
	}
	if r.BetAmount > MaxBetAmount {
		return fmt.Errorf("maximum bet is %d cents", MaxBetAmount)
	}
	return nil
}

type MinefieldClickRequest struct {
	GameID   string `json:"gameId" binding:"required"`
	Position *int   `json:"position" binding:"required"`
}

type MinefieldCashoutRequest struct {
	GameID string `json:"gameId" binding:"required"`
}

type DicePlayRequest struct {
	BetAmount float64 `json:"betAmount" binding:"required"`
	RollOver  float64 `json:"rollOver" binding:"required"`
}

func (r *DicePlayRequest) Validate() error {
	if r.BetAmount < MinBetAmount {
		return fmt.Errorf("minimum bet is %d cent", MinBetAmount)
	}
	if r.BetAmount > MaxBetAmount {
		return fmt.Errorf("maximum bet is %d cents", MaxBetAmount)
	}
	if r.RollOver < 1 || r.RollOver > 99 {
		return fmt.Errorf("roll over must be between 1 and 99")
	}
	return nil
}

type MinefieldBetResponse struct {
	GameID         string  `json:"gameId"`
	CurrentBalance float64 `json:"currentBalance"`
	ServerHash     string  `json:"serverHash"`
	ClientSeed     string  `json:"clientSeed"`
	Nonce          int64   `json:"nonce"`
}

// MinefieldClickResponse mirrors what the grid renderer consumes. Field and
// NewBalance are only present on a terminal outcome.
type MinefieldClickResponse struct {
	GameID          string   `json:"gameId"`
	Success         bool     `json:"success"`
	FlaggedPosition int      `json:"flaggedPosition"`
	Multiplier      float64  `json:"multiplier"`
	RevealedCount   int      `json:"revealedCount"`
	Status          string   `json:"status"`
	Field           []bool   `json:"field,omitempty"`
	NewBalance      *float64 `json:"newBalance,omitempty"`
	Payout          float64  `json:"payout,omitempty"`
}

type MinefieldCashoutResponse struct {
	GameID     string  `json:"gameId"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
	NewBalance float64 `json:"newBalance"`
	Fields     []bool  `json:"fields"`
	Status     string  `json:"status"`
}

type DicePlayResponse struct {
	GameID          string  `json:"gameId"`
	IsWin           bool    `json:"isWin"`
	Rolled          float64 `json:"rolled"`
	RollOver        float64 `json:"rollOver"`
	Multiplier      float64 `json:"multiplier"`
	AmountWon       float64 `json:"amountWon"`
	StartingBalance float64 `json:"staringBalance"`
	NewBalance      float64 `json:"newBalance"`
}

type VerificationData struct {
	ClientSeed   string `json:"client_seed"`
	ServerHash   string `json:"server_hash"`
	CurrentNonce int64  `json:"current_nonce"`
}
