package models

import "time"

type TransactionType string

const (
	TransactionTypeBet    TransactionType = "bet"
	TransactionTypeWin    TransactionType = "win"
	TransactionTypeRefund TransactionType = "refund"
)

// Transaction is the hot-path settlement record kept in Redis alongside the
// wallet it touched. Ref ties it to the session transition that caused it,
// which is also the settlement idempotency key.
type Transaction struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        float64         `json:"amount"`
	BalanceBefore float64         `json:"balance_before"`
	BalanceAfter  float64         `json:"balance_after"`
	GameID        string          `json:"game_id,omitempty"`
	Ref           string          `json:"ref"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

// LedgerEntry is the durable copy of a Transaction, written to Postgres when
// a DSN is configured. The engine never reads it back; it exists for audit.
type LedgerEntry struct {
	ID            string    `gorm:"primaryKey;size:32"`
	UserID        int64     `gorm:"index"`
	Type          string    `gorm:"size:16"`
	Amount        float64   `gorm:""`
	BalanceBefore float64   `gorm:""`
	BalanceAfter  float64   `gorm:""`
	GameID        string    `gorm:"index;size:64"`
	Ref           string    `gorm:"uniqueIndex;size:96"`
	Description   string    `gorm:"size:255"`
	CreatedAt     time.Time `gorm:"index"`
}

func (t *Transaction) LedgerEntry() *LedgerEntry {
	return &LedgerEntry{
		ID:            t.ID,
		UserID:        t.UserID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		GameID:        t.GameID,
		Ref:           t.Ref,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
	}
}
