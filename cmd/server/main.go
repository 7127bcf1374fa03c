package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"courtpay_api/internal/handlers"
	appMiddleware "courtpay_api/internal/middleware"
	"courtpay_api/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis (optional: reconciliation locks degrade to row
	// locking only when absent)
	var cache *services.RedisCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err = services.NewRedisCache(redisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer cache.Close()
	} else {
		log.Println("Warning: REDIS_URL not set, cross-instance locks disabled")
	}

	// Reference counter backend: postgres sequence by default, Redis INCR
	// when explicitly selected
	var sequences services.SequenceAllocator = services.NewGormSequenceAllocator(db)
	if os.Getenv("REFERENCE_COUNTER") == "redis" {
		if cache == nil {
			log.Fatal("REFERENCE_COUNTER=redis requires REDIS_URL")
		}
		sequences = services.NewRedisSequenceAllocator(cache)
	}

	// Wire services
	referenceService := services.NewReferenceService(sequences)
	duplicateValidator := services.NewDuplicatePaymentValidator(services.NewGormPaymentFinder(db))
	apportionService := services.NewFeePayApportionService(db)
	statusService := services.NewPaymentStatusService(db, apportionService, services.NewGovPayService(), cache)
	paymentService := services.NewPaymentService(db, referenceService, duplicateValidator,
		statusService, apportionService, services.NewAccountService(), services.NewGormCaseLocker(db))

	// Create Echo instance
	e := echo.New()
	e.HTTPErrorHandler = appMiddleware.JSONErrorHandler
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	paymentHandler := handlers.NewPaymentHandler(paymentService, statusService)
	groupHandler := handlers.NewPaymentGroupHandler(paymentService)
	maintenanceHandler := handlers.NewMaintenanceHandler(statusService)

	api := e.Group("")
	if token := os.Getenv("S2S_TOKEN"); token != "" {
		api.Use(appMiddleware.RequireServiceAuth(token))
	} else {
		log.Println("Warning: S2S_TOKEN not set, service auth disabled")
	}

	api.POST("/card-payments", paymentHandler.CreateCardPayment)
	api.POST("/credit-account-payments", paymentHandler.CreateCreditAccountPayment)
	api.GET("/payments/:reference", paymentHandler.GetPayment)
	api.PATCH("/payments/:reference/status", paymentHandler.UpdatePaymentStatus)

	api.POST("/payment-groups", groupHandler.CreatePaymentGroup)
	api.GET("/payment-groups/:reference", groupHandler.GetPaymentGroup)
	api.PUT("/payment-groups/:reference/fees", groupHandler.AttachFees)
	api.POST("/payment-groups/:reference/remissions", groupHandler.CreateRemission)

	api.PATCH("/jobs/card-payments-status-update", maintenanceHandler.UpdateCardPaymentStatuses)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "UP"})
	})

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
