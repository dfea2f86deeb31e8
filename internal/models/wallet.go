package models

type Wallet struct {
	UserID       int64   `json:"user_id"`
	Balance      float64 `json:"balance"`
	TotalWagered float64 `json:"total_wagered"`
	TotalWon     float64 `json:"total_won"`

	// Provably fair seeds
	ClientSeed string `json:"client_seed"`
	Nonce      int64  `json:"nonce"`
}

type BalanceResponse struct {
	Balance      float64 `json:"balance"`
	TotalWagered float64 `json:"total_wagered"`
	TotalWon     float64 `json:"total_won"`
	ClientSeed   string  `json:"client_seed"`
	ServerHash   string  `json:"server_hash"`
	Nonce        int64   `json:"nonce"`
}
