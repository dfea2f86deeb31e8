package services

import "time"

const (
	KeyWallet             = "wallet:%d"
	KeyGameSession        = "game:session:%s"
	KeyUserActiveGames    = "user:%d:active_games"
	KeyUserCompletedGames = "user:%d:completed_games"
	KeyTransaction        = "transaction:%s"
	KeyUserTransactions   = "user:%d:transactions"
	KeySettlement         = "settle:%s"
	KeyRateLimit          = "ratelimit:%d:%s"

	TTLGameSession = 7 * 24 * time.Hour
	TTLTransaction = 30 * 24 * time.Hour
	TTLSettlement  = 7 * 24 * time.Hour

	DefaultRateLimitBets    = 30  // bets per minute
	DefaultRateLimitCashout = 60  // cashouts per minute
	DefaultRateLimitReveals = 120 // reveals per minute
)
