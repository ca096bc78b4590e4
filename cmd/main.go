package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"commitfi/internal/auth"
	"commitfi/internal/blockchain"
	"commitfi/internal/config"
	"commitfi/internal/database"
	"commitfi/internal/events"
	"commitfi/internal/handlers"
	"commitfi/internal/jobs"
	"commitfi/internal/repository"
	"commitfi/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repository
	repo := repository.NewRepository(database.GetDB())

	// Initialize Solana client and custody contract
	solanaClient := blockchain.NewSolanaClient(
		cfg.Solana.Network,
		cfg.Solana.ServerWalletPrivateKey,
	)
	custodyContract := blockchain.NewCustodyContract(solanaClient, cfg.Solana.CustodyProgramID)

	// In-process update bus for live subscriptions
	bus := events.NewBus()

	// Initialize services
	authService := services.NewAuthService(database.GetDB())
	userService := services.NewUserService(database.GetDB(), repo)
	challengeService := services.NewChallengeService(repo, custodyContract, bus)
	stakeService := services.NewStakeService(repo, custodyContract, bus)
	verificationService := services.NewVerificationService(repo, bus)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)
	stakeHandler := handlers.NewStakeHandler(stakeService)
	verificationHandler := handlers.NewVerificationHandler(verificationService)
	streamHandler := handlers.NewStreamHandler(bus)

	// Start forfeiture job (checks every 10 minutes)
	forfeitJob := jobs.NewForfeitJob(repo, bus, cfg.App.ForfeitGrace, 10*time.Minute)
	go forfeitJob.Start()
	log.Println("Forfeiture job started")

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite dev server
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/wallet", authHandler.WalletLogin)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// Public challenge routes
	router.GET("/api/challenges", challengeHandler.ListChallenges)
	router.GET("/api/challenges/:id", challengeHandler.GetChallenge)
	router.GET("/api/challenges/:id/stakes", stakeHandler.ListStakes)
	router.GET("/api/challenges/:id/stream", streamHandler.StreamChallenge)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// User endpoints
		userRoutes := api.Group("/user")
		{
			userRoutes.GET("/profile", userHandler.GetProfile)
			userRoutes.PUT("/nickname", userHandler.UpdateNickname)
			userRoutes.GET("/statistics", userHandler.GetStatistics)
		}

		// Challenge endpoints
		api.POST("/challenges/custody", challengeHandler.ReserveCustody)
		api.POST("/challenges", challengeHandler.CreateChallenge)
		api.GET("/challenges/:id/requests", challengeHandler.ListJoinRequests)
		api.GET("/challenges/:id/custody", challengeHandler.ListCustodyTransactions)

		// Stake lifecycle endpoints
		api.POST("/challenges/:id/requests", stakeHandler.RequestJoin)
		api.POST("/requests/:id/decision", stakeHandler.DecideRequest)
		api.POST("/challenges/:id/join", stakeHandler.PayAndJoin)
		api.POST("/challenges/:id/proof", stakeHandler.SubmitProof)
		api.POST("/challenges/:id/settle", stakeHandler.Settle)
		api.GET("/challenges/:id/stake", stakeHandler.GetMyStake)
		api.GET("/stakes", stakeHandler.ListMyStakes)

		// Verification endpoints
		api.POST("/challenges/:id/votes", verificationHandler.CastVote)
		api.GET("/challenges/:id/submissions/:owner", verificationHandler.GetSubmissionState)
		api.POST("/challenges/:id/submissions/:owner/finalize", verificationHandler.Finalize)

		// Live update stream for the authenticated user
		api.GET("/stream", streamHandler.StreamMe)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)
		log.Printf("Wallet auth: POST http://localhost:%s/auth/wallet", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	forfeitJob.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
