package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"minefield-backend/internal/models"
	"minefield-backend/internal/services"
)

type GameHandler struct {
	engine       *services.Engine
	redisService *services.RedisService
}

func NewGameHandler(engine *services.Engine, redisService *services.RedisService) *GameHandler {
	return &GameHandler{
		engine:       engine,
		redisService: redisService,
	}
}

// respondError translates an engine failure kind into a status code and a
// stable error name the front-end can switch on. A failed request never
// changed state, so clients treat any of these as "nothing happened".
func respondError(c *gin.Context, err error) {
	type mapping struct {
		target error
		status int
		kind   string
	}

	mappings := []mapping{
		{services.ErrInvalidConfiguration, http.StatusBadRequest, "invalid_configuration"},
		{services.ErrInvalidPosition, http.StatusBadRequest, "invalid_position"},
		{services.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
		{services.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
		{services.ErrSessionNotActive, http.StatusConflict, "session_not_active"},
		{services.ErrNothingToCashOut, http.StatusConflict, "nothing_to_cash_out"},
	}

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.kind, "details": err.Error()})
			return
		}
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": err.Error()})
}

func (h *GameHandler) MinefieldBet(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.MinefieldBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_configuration", "details": err.Error()})
		return
	}

	start, err := h.engine.CreateMinefield(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MinefieldBetResponse{
		GameID:         start.Session.ID,
		CurrentBalance: start.NewBalance,
		ServerHash:     start.Session.ServerSeedHash,
		ClientSeed:     start.Session.ClientSeed,
		Nonce:          start.Session.Nonce,
	})
}

func (h *GameHandler) MinefieldClick(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.MinefieldClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_configuration", "details": err.Error()})
		return
	}

	outcome, err := h.engine.Reveal(c.Request.Context(), userID, req.GameID, *req.Position)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MinefieldClickResponse{
		GameID:          outcome.GameID,
		Success:         outcome.Safe,
		FlaggedPosition: outcome.Position,
		Multiplier:      outcome.Multiplier,
		RevealedCount:   outcome.RevealedCount,
		Status:          string(outcome.Status),
		Field:           outcome.Field,
		NewBalance:      outcome.NewBalance,
		Payout:          outcome.Payout,
	})
}

func (h *GameHandler) MinefieldCashout(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.MinefieldCashoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_configuration", "details": err.Error()})
		return
	}

	outcome, err := h.engine.Cashout(c.Request.Context(), userID, req.GameID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MinefieldCashoutResponse{
		GameID:     outcome.GameID,
		Multiplier: outcome.Multiplier,
		Payout:     outcome.Payout,
		NewBalance: outcome.NewBalance,
		Fields:     outcome.Field,
		Status:     string(outcome.Status),
	})
}

func (h *GameHandler) PlayDice(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.DicePlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_configuration", "details": err.Error()})
		return
	}

	outcome, err := h.engine.PlayDice(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.DicePlayResponse{
		GameID:          outcome.GameID,
		IsWin:           outcome.Win,
		Rolled:          outcome.Rolled,
		RollOver:        outcome.RollOver,
		Multiplier:      outcome.Multiplier,
		AmountWon:       outcome.Payout,
		StartingBalance: outcome.StartingBalance,
		NewBalance:      outcome.NewBalance,
	})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.redisService.Wallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": err.Error()})
		return
	}

	data, err := h.engine.VerificationData(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{
		Balance:      wallet.Balance,
		TotalWagered: wallet.TotalWagered,
		TotalWon:     wallet.TotalWon,
		ClientSeed:   wallet.ClientSeed,
		ServerHash:   data.ServerHash,
		Nonce:        wallet.Nonce,
	})
}

func (h *GameHandler) GetActiveGames(c *gin.Context) {
	userID := c.GetInt64("user_id")
	ctx := c.Request.Context()

	gameIDs, err := h.redisService.GetUserActiveGames(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": err.Error()})
		return
	}

	games := make([]gin.H, 0, len(gameIDs))
	for _, gameID := range gameIDs {
		session, err := h.engine.Session(ctx, userID, gameID)
		if err != nil || session.Status != models.StatusActive {
			continue
		}
		games = append(games, gin.H{
			"id":             session.ID,
			"game_type":      session.GameType,
			"bet_amount":     session.BetAmount,
			"hazard_count":   session.HazardCount,
			"revealed_count": len(session.RevealedPositions),
			"multiplier":     session.Multiplier,
			"status":         session.Status,
			"created_at":     session.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"games": games, "count": len(games)})
}

func (h *GameHandler) GetGameHistory(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	games, err := h.redisService.GetGameHistory(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": err.Error()})
		return
	}

	response := make([]gin.H, 0, len(games))
	for _, game := range games {
		result := "lose"
		if game.Status == models.StatusCashedOut || game.Status == models.StatusCleared {
			result = "win"
		}

		response = append(response, gin.H{
			"id":         game.ID,
			"game_type":  game.GameType,
			"bet_amount": game.BetAmount,
			"multiplier": game.Multiplier,
			"payout":     game.Payout,
			"result":     result,
			"status":     game.Status,
			"created_at": game.CreatedAt,
			"ended_at":   game.EndedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"games": response, "count": len(response)})
}

func (h *GameHandler) GetVerificationData(c *gin.Context) {
	userID := c.GetInt64("user_id")

	data, err := h.engine.VerificationData(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, data)
}

func (h *GameHandler) VerifyGame(c *gin.Context) {
	var req services.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_configuration", "details": err.Error()})
		return
	}

	result, err := h.engine.Verify(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
