package services

import (
	"context"
	"fmt"
	"time"

	"minefield-backend/internal/models"
	"minefield-backend/pkg/logger"
)

// Settlement is the only way funds move between a player and the house.
// Ref identifies the session transition ("bet:<id>", "win:<id>",
// "refund:<id>"); implementations apply each ref at most once.
type Settlement interface {
	Debit(ctx context.Context, userID int64, amount float64, ref string) (float64, error)
	Credit(ctx context.Context, userID int64, amount float64, ref string) (float64, error)
}

// WalletAccess provides the provably-fair inputs and balance reads the
// engine needs outside of settlement. ConsumeNonce claims the wallet's
// current nonce for one draw and advances it in the same atomic step, so no
// two draws ever share a nonce.
type WalletAccess interface {
	Wallet(ctx context.Context, userID int64) (*models.Wallet, error)
	ConsumeNonce(ctx context.Context, userID int64) (int64, error)
}

// Broadcaster pushes settlement events to connected clients. Delivery is
// best-effort and never part of the settlement path.
type Broadcaster interface {
	NotifySettlement(userID int64, event SettlementEvent)
}

type SettlementEvent struct {
	GameID     string               `json:"game_id"`
	GameType   models.GameType      `json:"game_type"`
	Status     models.SessionStatus `json:"status"`
	Payout     float64              `json:"payout"`
	NewBalance float64              `json:"new_balance"`
}

// Engine drives the session lifecycle: bet placement, tile reveals, win,
// loss, cash-out, and settlement. It is the sole source of truth for every
// number that reaches a wallet; clients only render what it returns.
type Engine struct {
	store   *SessionStore
	persist SessionPersistence
	wallets WalletAccess
	settle  Settlement
	fair    *Fairness
	notify  Broadcaster

	boardSize          int
	emptyCashoutRefund bool
}

type EngineOption func(*Engine)

// WithBroadcaster attaches a push channel for settlement events.
func WithBroadcaster(b Broadcaster) EngineOption {
	return func(e *Engine) { e.notify = b }
}

// WithBoardSize overrides the default 25-tile board.
func WithBoardSize(n int) EngineOption {
	return func(e *Engine) { e.boardSize = n }
}

// WithStrictEmptyCashout rejects cash-outs with zero reveals instead of
// refunding the bet.
func WithStrictEmptyCashout() EngineOption {
	return func(e *Engine) { e.emptyCashoutRefund = false }
}

func NewEngine(store *SessionStore, persist SessionPersistence, wallets WalletAccess, settle Settlement, fair *Fairness, opts ...EngineOption) *Engine {
	e := &Engine{
		store:              store,
		persist:            persist,
		wallets:            wallets,
		settle:             settle,
		fair:               fair,
		boardSize:          25,
		emptyCashoutRefund: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) BoardSize() int {
	return e.boardSize
}

// MinefieldStart is the result of a successful bet.
type MinefieldStart struct {
	Session    *models.GameSession
	NewBalance float64
}

// RevealOutcome is what one tile reveal produced. Field and NewBalance are
// set only when the reveal ended the session.
type RevealOutcome struct {
	GameID        string
	Safe          bool
	Position      int
	Multiplier    float64
	RevealedCount int
	Status        models.SessionStatus
	Field         []bool
	NewBalance    *float64
	Payout        float64
}

// CashoutOutcome is the result of a cash-out.
type CashoutOutcome struct {
	GameID     string
	Multiplier float64
	Payout     float64
	NewBalance float64
	Field      []bool
	Status     models.SessionStatus
}

// CreateMinefield validates the bet, debits the stake, draws the hazard
// layout and opens an active session. The debit happens before the session
// exists; a failed persist rolls it back so no unbacked session survives.
func (e *Engine) CreateMinefield(ctx context.Context, userID int64, req *models.MinefieldBetRequest) (*MinefieldStart, error) {
	if err := req.Validate(e.boardSize); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	wallet, err := e.wallets.Wallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load wallet: %v", ErrInternal, err)
	}

	gameID := models.GenerateGameID()

	balance, err := e.settle.Debit(ctx, userID, req.BetAmount, "bet:"+gameID)
	if err != nil {
		return nil, err
	}

	// Claim the draw's nonce before anything is derived from it. Two
	// concurrent bets must never share a layout; a failed claim aborts the
	// bet and hands the stake back.
	nonce, err := e.wallets.ConsumeNonce(ctx, userID)
	if err != nil {
		if _, refundErr := e.settle.Credit(ctx, userID, req.BetAmount, "refund:"+gameID); refundErr != nil {
			logger.Error(ctx).Err(refundErr).Str("game_id", gameID).Msg("Failed to refund debit after nonce failure")
		}
		return nil, fmt.Errorf("%w: consume nonce: %v", ErrInternal, err)
	}

	now := time.Now()
	session := &models.GameSession{
		ID:                gameID,
		UserID:            userID,
		GameType:          models.GameTypeMinefield,
		BetAmount:         req.BetAmount,
		BoardSize:         e.boardSize,
		HazardCount:       req.BombCount,
		HazardPositions:   e.fair.HazardPositions(wallet.ClientSeed, nonce, e.boardSize, req.BombCount),
		RevealedPositions: []int{},
		HitPosition:       -1,
		ClientSeed:        wallet.ClientSeed,
		ServerSeedHash:    e.fair.ServerHash(),
		Nonce:             nonce,
		Multiplier:        1.0,
		Status:            models.StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := e.store.Create(ctx, session); err != nil {
		// The stake is already gone; hand it back before failing.
		if _, refundErr := e.settle.Credit(ctx, userID, req.BetAmount, "refund:"+gameID); refundErr != nil {
			logger.Error(ctx).Err(refundErr).Str("game_id", gameID).Msg("Failed to refund debit after create failure")
		}
		return nil, err
	}

	logger.Info(ctx).
		Str("game_id", gameID).
		Int64("user_id", userID).
		Int("hazards", req.BombCount).
		Float64("bet", req.BetAmount).
		Msg("Minefield session opened")

	return &MinefieldStart{Session: session, NewBalance: balance}, nil
}

// Reveal applies one tile reveal to the session. All mutation happens under
// the session's exclusive lock, settlement included, so two racing reveals
// resolve in order and a terminal transition commits exactly once.
// Re-revealing an already-applied position answers with that reveal's
// original outcome instead of mutating twice.
func (e *Engine) Reveal(ctx context.Context, userID int64, gameID string, position int) (*RevealOutcome, error) {
	var outcome *RevealOutcome

	err := e.store.Mutate(ctx, gameID, func(s *models.GameSession) (bool, error) {
		if s.UserID != userID {
			return false, fmt.Errorf("%w: %s", ErrSessionNotFound, gameID)
		}
		if position < 0 || position >= s.BoardSize {
			return false, fmt.Errorf("%w: %d outside [0, %d)", ErrInvalidPosition, position, s.BoardSize)
		}

		if replay, ok, err := e.replayReveal(ctx, s, position); err != nil {
			return false, err
		} else if ok {
			outcome = replay
			return false, nil
		}

		if s.Status != models.StatusActive {
			return false, fmt.Errorf("%w: session is %s", ErrSessionNotActive, s.Status)
		}

		if s.IsHazard(position) {
			return e.applyLoss(ctx, s, position, &outcome)
		}
		return e.applySafeReveal(ctx, s, position, &outcome)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (e *Engine) applyLoss(ctx context.Context, s *models.GameSession, position int, out **RevealOutcome) (bool, error) {
	s.Status = models.StatusLost
	s.HitPosition = position
	s.EndedAt = time.Now()

	// The bet debit stands as the house's gain; no settlement moves.
	balance, err := e.currentBalance(ctx, s.UserID)
	if err != nil {
		logger.Warn(ctx).Err(err).Str("game_id", s.ID).Msg("Balance read failed after loss")
	}

	*out = &RevealOutcome{
		GameID:        s.ID,
		Safe:          false,
		Position:      position,
		Multiplier:    0,
		RevealedCount: len(s.RevealedPositions),
		Status:        s.Status,
		Field:         s.Field(),
		NewBalance:    balance,
	}

	e.broadcast(s, 0, balance)
	logger.Info(ctx).Str("game_id", s.ID).Int("position", position).Msg("Minefield session lost")
	return true, nil
}

func (e *Engine) applySafeReveal(ctx context.Context, s *models.GameSession, position int, out **RevealOutcome) (bool, error) {
	revealedCount := len(s.RevealedPositions) + 1

	multiplier, err := MinefieldMultiplier(s.BoardSize, s.HazardCount, revealedCount)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if revealedCount == s.SafeTiles() {
		// Every safe tile revealed: the board is cleared, settle the win now.
		payout := s.BetAmount * multiplier
		balance, err := e.settle.Credit(ctx, s.UserID, payout, "win:"+s.ID)
		if err != nil {
			return false, err
		}

		s.RevealedPositions = append(s.RevealedPositions, position)
		s.Status = models.StatusCleared
		s.Multiplier = multiplier
		s.Payout = payout
		s.EndedAt = time.Now()

		*out = &RevealOutcome{
			GameID:        s.ID,
			Safe:          true,
			Position:      position,
			Multiplier:    multiplier,
			RevealedCount: revealedCount,
			Status:        s.Status,
			Field:         s.Field(),
			NewBalance:    &balance,
			Payout:        payout,
		}

		e.broadcast(s, payout, &balance)
		logger.Info(ctx).Str("game_id", s.ID).Float64("payout", payout).Msg("Minefield board cleared")
		return true, nil
	}

	s.RevealedPositions = append(s.RevealedPositions, position)
	s.Multiplier = multiplier

	*out = &RevealOutcome{
		GameID:        s.ID,
		Safe:          true,
		Position:      position,
		Multiplier:    multiplier,
		RevealedCount: revealedCount,
		Status:        s.Status,
	}
	return true, nil
}

// replayReveal answers a repeated reveal request with the outcome the
// original application produced.
func (e *Engine) replayReveal(ctx context.Context, s *models.GameSession, position int) (*RevealOutcome, bool, error) {
	if s.Status == models.StatusLost && position == s.HitPosition {
		balance, _ := e.currentBalance(ctx, s.UserID)
		return &RevealOutcome{
			GameID:        s.ID,
			Safe:          false,
			Position:      position,
			RevealedCount: len(s.RevealedPositions),
			Status:        s.Status,
			Field:         s.Field(),
			NewBalance:    balance,
		}, true, nil
	}

	idx := s.RevealIndex(position)
	if idx < 0 {
		return nil, false, nil
	}

	multiplier, err := MinefieldMultiplier(s.BoardSize, s.HazardCount, idx+1)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	out := &RevealOutcome{
		GameID:        s.ID,
		Safe:          true,
		Position:      position,
		Multiplier:    multiplier,
		RevealedCount: idx + 1,
		Status:        s.Status,
	}

	if s.Status == models.StatusCleared && idx == len(s.RevealedPositions)-1 {
		balance, _ := e.currentBalance(ctx, s.UserID)
		out.Field = s.Field()
		out.NewBalance = balance
		out.Payout = s.Payout
	}

	return out, true, nil
}

// Cashout ends an active session on the player's terms and settles the
// payout at the current multiplier. With zero reveals the default policy
// hands the original bet back unchanged rather than punishing a no-op.
func (e *Engine) Cashout(ctx context.Context, userID int64, gameID string) (*CashoutOutcome, error) {
	var outcome *CashoutOutcome

	err := e.store.Mutate(ctx, gameID, func(s *models.GameSession) (bool, error) {
		if s.UserID != userID {
			return false, fmt.Errorf("%w: %s", ErrSessionNotFound, gameID)
		}
		if s.Status != models.StatusActive {
			return false, fmt.Errorf("%w: session is %s", ErrSessionNotActive, s.Status)
		}

		revealedCount := len(s.RevealedPositions)

		if revealedCount == 0 && !e.emptyCashoutRefund {
			return false, fmt.Errorf("%w: no tiles revealed", ErrNothingToCashOut)
		}

		multiplier, err := MinefieldMultiplier(s.BoardSize, s.HazardCount, revealedCount)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInternal, err)
		}

		payout := s.BetAmount * multiplier
		ref := "win:" + s.ID
		if revealedCount == 0 {
			ref = "refund:" + s.ID
		}

		balance, err := e.settle.Credit(ctx, s.UserID, payout, ref)
		if err != nil {
			return false, err
		}

		s.Status = models.StatusCashedOut
		s.Multiplier = multiplier
		s.Payout = payout
		s.EndedAt = time.Now()

		outcome = &CashoutOutcome{
			GameID:     s.ID,
			Multiplier: multiplier,
			Payout:     payout,
			NewBalance: balance,
			Field:      s.Field(),
			Status:     s.Status,
		}

		e.broadcast(s, payout, &balance)
		logger.Info(ctx).
			Str("game_id", s.ID).
			Int("revealed", revealedCount).
			Float64("payout", payout).
			Msg("Minefield session cashed out")
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// Session returns a snapshot, restricted to the owning player.
func (e *Engine) Session(ctx context.Context, userID int64, gameID string) (*models.GameSession, error) {
	s, err := e.store.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, gameID)
	}
	return s, nil
}

// VerificationData returns what a player needs to verify their next draw.
func (e *Engine) VerificationData(ctx context.Context, userID int64) (*models.VerificationData, error) {
	wallet, err := e.wallets.Wallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load wallet: %v", ErrInternal, err)
	}

	return &models.VerificationData{
		ClientSeed:   wallet.ClientSeed,
		ServerHash:   e.fair.ServerHash(),
		CurrentNonce: wallet.Nonce,
	}, nil
}

func (e *Engine) currentBalance(ctx context.Context, userID int64) (*float64, error) {
	wallet, err := e.wallets.Wallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &wallet.Balance, nil
}

func (e *Engine) broadcast(s *models.GameSession, payout float64, balance *float64) {
	if e.notify == nil {
		return
	}
	event := SettlementEvent{
		GameID:   s.ID,
		GameType: s.GameType,
		Status:   s.Status,
		Payout:   payout,
	}
	if balance != nil {
		event.NewBalance = *balance
	}
	e.notify.NotifySettlement(s.UserID, event)
}
