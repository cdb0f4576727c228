package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/refearnapp/refearn_backend/config"
	"github.com/refearnapp/refearn_backend/controllers"
	"github.com/refearnapp/refearn_backend/middleware"
	"github.com/refearnapp/refearn_backend/repositories"
	"github.com/refearnapp/refearn_backend/routes"
	"github.com/refearnapp/refearn_backend/services"
	"github.com/refearnapp/refearn_backend/websocket"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Connect to Redis
	redisClient := config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()

	// Create WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	customValidator := &CustomValidator{validator: validator.New()}
	e.Validator = customValidator

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeaders())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Refearn Backend is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize repositories
	accountRepo := repositories.NewAccountRepository(client)
	edgeRepo := repositories.NewEdgeRepository(client)
	ledgerRepo := repositories.NewLedgerRepository(client)
	progressionRepo := repositories.NewProgressionRepository(client, accountRepo)
	auditRepo := repositories.NewFraudAuditRepository(client)

	// Burst counting prefers Redis; the edge store serves as fallback
	var burstCounter services.BurstCounter = edgeRepo
	var burstRecorder controllers.BurstRecorder
	if redisClient != nil {
		redisCounter := repositories.NewRedisBurstCounter(redisClient, 2*time.Hour)
		burstCounter = redisCounter
		burstRecorder = redisCounter
	}

	// Initialize the commission engine
	fraudGate := services.NewFraudGate(accountRepo, edgeRepo, burstCounter, auditRepo, nil, services.DefaultFraudConfig())
	referralGraph := services.NewReferralGraph(edgeRepo)
	ledger := services.NewCommissionLedger(ledgerRepo, edgeRepo, fraudGate, referralGraph, accountRepo)
	progression := services.NewTierProgression(progressionRepo)
	notifier := websocket.NewEngineNotifier(wsHub)
	orchestrator := services.NewOrchestrator(ledger, progression, notifier)

	// Initialize controllers
	authController := controllers.NewAuthController(accountRepo, edgeRepo, burstRecorder)
	activationController := controllers.NewActivationController(orchestrator)
	agentController := controllers.NewAgentController(accountRepo, edgeRepo, ledger, progression)

	// Register routes
	routes.RegisterAuthRoutes(e, authController)
	routes.RegisterPaymentRoutes(e, activationController)
	routes.RegisterAgentRoutes(e, agentController)
	routes.RegisterWebSocketRoutes(e, wsHub)

	// Start the token blacklist cleaner
	go middleware.CleanupBlacklist()

	// Sweep expired challenge windows in the background. Expiry is
	// idempotent, so overlapping sweeps across replicas are harmless.
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			transitions, err := progression.ExpireWindows(ctx)
			cancel()
			if err != nil {
				log.Printf("window expiry sweep failed: %v", err)
			}
			for _, transition := range transitions {
				notifier.TierChanged(transition.AgentID, transition)
			}
			time.Sleep(5 * time.Minute)
		}
	}()

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}
