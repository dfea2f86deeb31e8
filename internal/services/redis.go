package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"minefield-backend/internal/config"
	"minefield-backend/internal/models"
	"minefield-backend/pkg/logger"
)

// RedisService owns every Redis interaction: wallets, the settlement
// scripts, persisted game sessions, the transaction ledger, and rate limits.
// It is the concrete Settlement and WalletAccess implementation.
type RedisService struct {
	client          *redis.Client
	startingBalance float64
	provision       singleflight.Group
	ledger          *LedgerRepo
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{
		client:          client,
		startingBalance: cfg.StartingBalance,
	}, nil
}

// AttachLedger enables durable copies of every settlement transaction.
func (s *RedisService) AttachLedger(ledger *LedgerRepo) {
	s.ledger = ledger
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// Wallet returns the player's wallet, provisioning one with the starting
// balance on first sight. Concurrent first requests for the same player are
// collapsed through singleflight so only one wallet is created.
func (s *RedisService) Wallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		v, err, _ := s.provision.Do(key, func() (interface{}, error) {
			return s.createWallet(ctx, userID)
		})
		if err != nil {
			return nil, err
		}
		return v.(*models.Wallet), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	var wallet models.Wallet
	if err := json.Unmarshal([]byte(data), &wallet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}

	return &wallet, nil
}

func (s *RedisService) createWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	key := fmt.Sprintf(KeyWallet, userID)

	// Another instance may have won the race; re-check before creating.
	if data, err := s.client.Get(ctx, key).Result(); err == nil {
		var wallet models.Wallet
		if err := json.Unmarshal([]byte(data), &wallet); err == nil {
			return &wallet, nil
		}
	}

	wallet, err := models.NewWallet(userID, s.startingBalance)
	if err != nil {
		return nil, err
	}
	if err := s.SaveWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	logger.Info(ctx).Int64("user_id", userID).Float64("balance", wallet.Balance).Msg("Wallet provisioned")
	return wallet, nil
}

func (s *RedisService) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	key := fmt.Sprintf(KeyWallet, wallet.UserID)

	data, err := json.Marshal(wallet)
	if err != nil {
		return fmt.Errorf("failed to marshal wallet: %w", err)
	}

	return s.client.Set(ctx, key, data, 0).Err()
}

var consumeNonceScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)
	local nonce = wallet.nonce
	wallet.nonce = nonce + 1
	redis.call("SET", KEYS[1], cjson.encode(wallet))

	return nonce
`)

// ConsumeNonce atomically claims the wallet's current provably-fair nonce
// for one draw and advances it. Claim and advance happen in one script, so
// concurrent bets always draw from distinct nonces.
func (s *RedisService) ConsumeNonce(ctx context.Context, userID int64) (int64, error) {
	key := fmt.Sprintf(KeyWallet, userID)
	n, err := consumeNonceScript.Run(ctx, s.client, []string{key}).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to consume nonce: %w", err)
	}
	return n, nil
}

// Settlement scripts run debit/credit and the idempotency check in one
// atomic step. KEYS[1] is the wallet, KEYS[2] the settlement ref key. They
// return {balance, applied} where applied is 0 for a replayed ref.
var debitScript = redis.NewScript(`
	local existing = redis.call("GET", KEYS[2])
	if existing then
		return {existing, 0}
	end

	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)
	local amount = tonumber(ARGV[1])

	if wallet.balance < amount then
		return redis.error_reply("insufficient balance")
	end

	wallet.balance = wallet.balance - amount
	wallet.total_wagered = wallet.total_wagered + amount

	redis.call("SET", KEYS[1], cjson.encode(wallet))
	redis.call("SET", KEYS[2], tostring(wallet.balance), "EX", ARGV[2])

	return {tostring(wallet.balance), 1}
`)

var creditScript = redis.NewScript(`
	local existing = redis.call("GET", KEYS[2])
	if existing then
		return {existing, 0}
	end

	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("wallet not found")
	end

	local wallet = cjson.decode(data)
	local amount = tonumber(ARGV[1])

	wallet.balance = wallet.balance + amount
	if ARGV[3] == "1" then
		wallet.total_won = wallet.total_won + amount
	end

	redis.call("SET", KEYS[1], cjson.encode(wallet))
	redis.call("SET", KEYS[2], tostring(wallet.balance), "EX", ARGV[2])

	return {tostring(wallet.balance), 1}
`)

// Debit reserves amount from the player's balance. Ref must be unique per
// settlement ("bet:<gameID>"); replaying a ref returns the balance the first
// application produced without moving funds again.
func (s *RedisService) Debit(ctx context.Context, userID int64, amount float64, ref string) (float64, error) {
	keys := []string{fmt.Sprintf(KeyWallet, userID), fmt.Sprintf(KeySettlement, ref)}

	res, err := debitScript.Run(ctx, s.client, keys, amount, int(TTLSettlement.Seconds())).Result()
	if err != nil {
		if strings.Contains(err.Error(), "insufficient balance") {
			return 0, fmt.Errorf("%w: balance below %.0f", ErrInsufficientFunds, amount)
		}
		return 0, fmt.Errorf("%w: debit failed: %v", ErrInternal, err)
	}

	balance, applied, err := parseSettlementReply(res)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if applied {
		s.recordTransaction(ctx, userID, -amount, balance, ref)
	}
	return balance, nil
}

// Credit pays amount into the player's balance, exactly once per ref.
func (s *RedisService) Credit(ctx context.Context, userID int64, amount float64, ref string) (float64, error) {
	keys := []string{fmt.Sprintf(KeyWallet, userID), fmt.Sprintf(KeySettlement, ref)}
	countWin := "0"
	if strings.HasPrefix(ref, "win:") {
		countWin = "1"
	}

	res, err := creditScript.Run(ctx, s.client, keys, amount, int(TTLSettlement.Seconds()), countWin).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: credit failed: %v", ErrInternal, err)
	}

	balance, applied, err := parseSettlementReply(res)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if applied {
		s.recordTransaction(ctx, userID, amount, balance, ref)
	}
	return balance, nil
}

func parseSettlementReply(res interface{}) (float64, bool, error) {
	reply, ok := res.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, false, fmt.Errorf("unexpected settlement reply %T", res)
	}

	raw, ok := reply[0].(string)
	if !ok {
		return 0, false, fmt.Errorf("unexpected balance reply %T", reply[0])
	}
	balance, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("unparsable balance %q", raw)
	}

	applied, _ := reply[1].(int64)
	return balance, applied == 1, nil
}

// recordTransaction writes the settlement to the Redis history and, when a
// ledger is attached, to Postgres. Failures here are logged, never surfaced:
// the money has already moved.
func (s *RedisService) recordTransaction(ctx context.Context, userID int64, amount, balanceAfter float64, ref string) {
	kind, gameID, _ := strings.Cut(ref, ":")

	txType := models.TransactionTypeBet
	description := fmt.Sprintf("Bet of %s placed", models.FormatCurrency(-amount))
	switch kind {
	case "win":
		txType = models.TransactionTypeWin
		description = fmt.Sprintf("Won %s", models.FormatCurrency(amount))
	case "refund":
		txType = models.TransactionTypeRefund
		description = fmt.Sprintf("Refund of %s", models.FormatCurrency(amount))
	}

	tx := &models.Transaction{
		ID:            models.GenerateTransactionID(),
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		BalanceBefore: balanceAfter - amount,
		BalanceAfter:  balanceAfter,
		GameID:        gameID,
		Ref:           ref,
		Description:   description,
		CreatedAt:     time.Now(),
	}

	if err := s.SaveTransaction(ctx, tx); err != nil {
		logger.Error(ctx).Err(err).Str("ref", ref).Msg("Failed to record transaction")
	}

	if s.ledger != nil {
		if err := s.ledger.Record(ctx, tx.LedgerEntry()); err != nil {
			logger.Error(ctx).Err(err).Str("ref", ref).Msg("Failed to write ledger entry")
		}
	}
}

func (s *RedisService) SaveGameSession(ctx context.Context, session *models.GameSession) error {
	sessionKey := fmt.Sprintf(KeyGameSession, session.ID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal game session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey, data, TTLGameSession).Err(); err != nil {
		return fmt.Errorf("failed to save game session: %w", err)
	}

	if session.Status == models.StatusActive {
		activeKey := fmt.Sprintf(KeyUserActiveGames, session.UserID)
		if err := s.client.SAdd(ctx, activeKey, session.ID).Err(); err != nil {
			return fmt.Errorf("failed to add to active games: %w", err)
		}
		s.client.Expire(ctx, activeKey, TTLGameSession)
	}

	return nil
}

func (s *RedisService) GetGameSession(ctx context.Context, gameID string) (*models.GameSession, error) {
	key := fmt.Sprintf(KeyGameSession, gameID)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get game session: %v", ErrInternal, err)
	}

	var session models.GameSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal game session: %v", ErrInternal, err)
	}

	return &session, nil
}

func (s *RedisService) UpdateGameSession(ctx context.Context, session *models.GameSession) error {
	key := fmt.Sprintf(KeyGameSession, session.ID)

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal game session: %w", err)
	}

	return s.client.Set(ctx, key, data, TTLGameSession).Err()
}

// CompleteGameSession moves a terminal session from the active set to the
// capped completed history.
func (s *RedisService) CompleteGameSession(ctx context.Context, userID int64, gameID string) error {
	activeKey := fmt.Sprintf(KeyUserActiveGames, userID)
	if err := s.client.SRem(ctx, activeKey, gameID).Err(); err != nil {
		return fmt.Errorf("failed to remove from active games: %w", err)
	}

	completedKey := fmt.Sprintf(KeyUserCompletedGames, userID)
	if err := s.client.ZAdd(ctx, completedKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: gameID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to completed games: %w", err)
	}

	// Keep only the most recent 100 games per player.
	s.client.ZRemRangeByRank(ctx, completedKey, 0, -101)

	return nil
}

func (s *RedisService) GetUserActiveGames(ctx context.Context, userID int64) ([]string, error) {
	key := fmt.Sprintf(KeyUserActiveGames, userID)

	games, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active games: %w", err)
	}

	return games, nil
}

func (s *RedisService) GetGameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	completedKey := fmt.Sprintf(KeyUserCompletedGames, userID)

	gameIDs, err := s.client.ZRevRange(ctx, completedKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get game IDs: %w", err)
	}

	var games []*models.GameSession
	for _, gameID := range gameIDs {
		game, err := s.GetGameSession(ctx, gameID)
		if err != nil {
			continue
		}
		games = append(games, game)
	}

	return games, nil
}

func (s *RedisService) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	txKey := fmt.Sprintf(KeyTransaction, tx.ID)

	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction: %w", err)
	}

	if err := s.client.Set(ctx, txKey, data, TTLTransaction).Err(); err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, tx.UserID)
	if err := s.client.ZAdd(ctx, userTxKey, redis.Z{
		Score:  float64(tx.CreatedAt.Unix()),
		Member: tx.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to user transactions: %w", err)
	}

	// Keep only last 100 transactions
	s.client.ZRemRangeByRank(ctx, userTxKey, 0, -101)

	return nil
}

func (s *RedisService) GetUserTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	userTxKey := fmt.Sprintf(KeyUserTransactions, userID)

	txIDs, err := s.client.ZRevRange(ctx, userTxKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction IDs: %w", err)
	}

	var transactions []*models.Transaction
	for _, txID := range txIDs {
		data, err := s.client.Get(ctx, fmt.Sprintf(KeyTransaction, txID)).Result()
		if err != nil {
			continue
		}

		var tx models.Transaction
		if err := json.Unmarshal([]byte(data), &tx); err != nil {
			continue
		}

		transactions = append(transactions, &tx)
	}

	return transactions, nil
}

func (s *RedisService) CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Test-cleanup helpers.

func (s *RedisService) DeleteWallet(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyWallet, userID)).Err()
}

func (s *RedisService) DeleteGameSession(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyGameSession, sessionID)).Err()
}

func (s *RedisService) DeleteSettlement(ctx context.Context, ref string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeySettlement, ref)).Err()
}

func (s *RedisService) ClearRateLimit(ctx context.Context, userID int64, action string) error {
	return s.client.Del(ctx, fmt.Sprintf(KeyRateLimit, userID, action)).Err()
}
