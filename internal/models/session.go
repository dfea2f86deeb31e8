package models

import "time"

type GameType string

const (
	GameTypeMinefield GameType = "minefield"
	GameTypeDice      GameType = "dice"
)

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusLost      SessionStatus = "lost"
	StatusCashedOut SessionStatus = "cashed_out"
	StatusCleared   SessionStatus = "cleared"
)

// IsTerminal reports whether no further mutation of the session is allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == StatusLost || s == StatusCashedOut || s == StatusCleared
}

// TileState is the server-side view of a single tile. The client only ever
// sees hazard identity once the session has ended.
type TileState string

const (
	TileUnknown        TileState = "unknown"
	TileRevealedSafe   TileState = "safe"
	TileRevealedHazard TileState = "hazard"
)

// GameSession is the authoritative state of one wagering game, from bet to
// terminal outcome. It is only ever mutated under the session store's
// per-session lock and never serialized to a client as-is; handlers build
// response DTOs from engine results.
type GameSession struct {
	ID        string   `json:"id"`
	UserID    int64    `json:"user_id"`
	GameType  GameType `json:"game_type"`
	BetAmount float64  `json:"bet_amount"`

	BoardSize       int   `json:"board_size"`
	HazardCount     int   `json:"hazard_count"`
	HazardPositions []int `json:"hazard_positions"`
	// RevealedPositions keeps insertion order; payout depends only on the
	// count, the order is for audit and replay answers.
	RevealedPositions []int `json:"revealed_positions"`
	// HitPosition is the hazard that ended a lost session, -1 otherwise.
	HitPosition int `json:"hit_position"`

	// Provably-fair inputs for this session's draw.
	ClientSeed     string `json:"client_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	Nonce          int64  `json:"nonce"`

	// Dice only: the rolled value and the player's threshold.
	Roll     float64 `json:"roll,omitempty"`
	RollOver float64 `json:"roll_over,omitempty"`

	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`

	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
}

// IsHazard reports whether position is one of the session's hazards.
func (s *GameSession) IsHazard(position int) bool {
	for _, p := range s.HazardPositions {
		if p == position {
			return true
		}
	}
	return false
}

// RevealIndex returns the zero-based order in which position was revealed,
// or -1 if it has not been revealed.
func (s *GameSession) RevealIndex(position int) int {
	for i, p := range s.RevealedPositions {
		if p == position {
			return i
		}
	}
	return -1
}

// SafeTiles is the number of non-hazard tiles on the board.
func (s *GameSession) SafeTiles() int {
	return s.BoardSize - s.HazardCount
}

// Tiles returns the per-tile view of the board. While the session is active
// unrevealed tiles stay TileUnknown regardless of hazard identity.
func (s *GameSession) Tiles() []TileState {
	tiles := make([]TileState, s.BoardSize)
	for i := range tiles {
		tiles[i] = TileUnknown
	}
	for _, p := range s.RevealedPositions {
		tiles[p] = TileRevealedSafe
	}
	if s.Status.IsTerminal() {
		for _, p := range s.HazardPositions {
			tiles[p] = TileRevealedHazard
		}
	}
	return tiles
}

// Field renders the terminal board the way the front-end consumes it:
// index -> true when the tile is a hazard. Only meaningful once the
// session has ended.
func (s *GameSession) Field() []bool {
	field := make([]bool, s.BoardSize)
	for _, p := range s.HazardPositions {
		field[p] = true
	}
	return field
}
