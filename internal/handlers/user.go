package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"minefield-backend/internal/services"
	"minefield-backend/pkg/logger"
)

// AuthHandler mints guest identities. Real account management lives in an
// external collaborator; the engine only needs a player id it can trust,
// which the JWT middleware extracts from the tokens issued here.
type AuthHandler struct {
	jwtService   *services.JWTService
	redisService *services.RedisService
}

func NewAuthHandler(jwtService *services.JWTService, redisService *services.RedisService) *AuthHandler {
	return &AuthHandler{
		jwtService:   jwtService,
		redisService: redisService,
	}
}

func (h *AuthHandler) GuestToken(c *gin.Context) {
	userID := int64(uuid.New().ID())
	sessionID := uuid.New().String()

	token, err := h.jwtService.GenerateToken(userID, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": "failed to issue token"})
		return
	}

	// Provision the wallet now so the first bet doesn't race creation.
	wallet, err := h.redisService.Wallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": "failed to provision wallet"})
		return
	}

	logger.Info(c.Request.Context()).Int64("user_id", userID).Msg("Guest session issued")

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user_id": userID,
		"wallet": gin.H{
			"balance":     wallet.Balance,
			"client_seed": wallet.ClientSeed,
			"nonce":       wallet.Nonce,
		},
	})
}

type UserHandler struct {
	redisService *services.RedisService
	engine       *services.Engine
}

func NewUserHandler(redisService *services.RedisService, engine *services.Engine) *UserHandler {
	return &UserHandler{
		redisService: redisService,
		engine:       engine,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.redisService.Wallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"wallet": gin.H{
			"balance":       wallet.Balance,
			"total_wagered": wallet.TotalWagered,
			"total_won":     wallet.TotalWon,
			"client_seed":   wallet.ClientSeed,
			"nonce":         wallet.Nonce,
		},
	})
}

func (h *UserHandler) GetTransactions(c *gin.Context) {
	userID := c.GetInt64("user_id")

	transactions, err := h.redisService.GetUserTransactions(c.Request.Context(), userID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "count": len(transactions)})
}
