package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"minefield-backend/internal/config"
	"minefield-backend/internal/handlers"
	"minefield-backend/internal/middleware"
	"minefield-backend/internal/models"
	"minefield-backend/internal/services"
	"minefield-backend/pkg/logger"
)

func main() {
	ctx := context.Background()

	// No .env file is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if cfg.LogFile != "" {
		logger.InitWithFile(cfg.LogFile, cfg.LogLevel, cfg.LogFormat)
	} else {
		logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	}

	if err := models.SetSnowflakeNode(cfg.SnowflakeNode); err != nil {
		logger.Fatal(ctx).Err(err).Msg("Invalid snowflake node")
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		logger.Fatal(ctx).Err(err).Msg("Failed to connect to Redis")
	}
	defer redisService.Close()

	if cfg.PostgresDSN != "" {
		ledger, err := services.OpenLedger(cfg.PostgresDSN)
		if err != nil {
			logger.Fatal(ctx).Err(err).Msg("Failed to open ledger database")
		}
		redisService.AttachLedger(ledger)
		logger.Info(ctx).Msg("Durable ledger enabled")
	}

	jwtService := services.NewJWTService(cfg.JWTSecret)

	fairness := services.NewFairness(cfg.ServerSeed)
	logger.Info(ctx).Str("server_hash", fairness.ServerHash()).Msg("Server seed committed")

	store := services.NewSessionStore(redisService)

	wsHandler := handlers.NewWebSocketHandler()

	engineOpts := []services.EngineOption{
		services.WithBroadcaster(wsHandler),
		services.WithBoardSize(cfg.BoardSize),
	}
	if !cfg.EmptyCashoutRefund {
		engineOpts = append(engineOpts, services.WithStrictEmptyCashout())
	}
	engine := services.NewEngine(store, redisService, redisService, redisService, fairness, engineOpts...)

	authHandler := handlers.NewAuthHandler(jwtService, redisService)
	userHandler := handlers.NewUserHandler(redisService, engine)
	gameHandler := handlers.NewGameHandler(engine, redisService)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.POST("/auth/guest", authHandler.GuestToken)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(redisService))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.GET("/balance", gameHandler.GetBalance)
		protected.GET("/transactions", userHandler.GetTransactions)

		protected.GET("/ws", wsHandler.HandleWebSocket)

		games := protected.Group("/games")
		{
			games.GET("/active", gameHandler.GetActiveGames)
			games.GET("/history", gameHandler.GetGameHistory)

			games.GET("/verification", gameHandler.GetVerificationData)
			games.POST("/verify", gameHandler.VerifyGame)

			games.POST("/minefield", gameHandler.MinefieldBet)
			games.POST("/minefield/click", gameHandler.MinefieldClick)
			games.POST("/minefield/cashout", gameHandler.MinefieldCashout)

			games.POST("/dice", gameHandler.PlayDice)
		}
	}

	logger.Info(ctx).Str("port", cfg.Port).Str("env", cfg.Env).Msg("Server starting")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal(ctx).Err(err).Msg("Server exited")
	}
}
