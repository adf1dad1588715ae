package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/peerpay/backend/internal/config"
	"github.com/peerpay/backend/internal/database"
	"github.com/peerpay/backend/internal/events"
	"github.com/peerpay/backend/internal/handlers"
	"github.com/peerpay/backend/internal/ledger"
	mW "github.com/peerpay/backend/internal/middleware"
	"github.com/peerpay/backend/internal/services"
)

// @title PeerPay Backend API
// @version 1.0
// @description API for peer-to-peer balance transfers
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	config.Load()

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher := events.NewPublisher(config.KafkaBrokers(), config.TransferTopic())
	defer publisher.Close()

	ledgerCore := ledger.NewLedger(db)

	settlementService := services.NewSettlementService(redisClient)
	authService := services.NewAuthService(db, redisClient)
	balanceService := services.NewBalanceService(ledgerCore, settlementService)
	transferService := services.NewTransferService(ledgerCore, publisher)
	relationService := services.NewRelationService(ledgerCore)
	historyService := services.NewHistoryService(ledgerCore)
	qrService := services.NewQRService(redisClient)
	qrHandler := handlers.NewQRHandler(qrService, ledgerCore)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Settlement worker drains committed withdrawals in the background.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go settlementService.RunWorker(workerCtx)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link", "X-Idempotency-Replayed"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)
			r.Use(mW.Idempotency(redisClient))

			r.Get("/auth/account", authService.GetAccount)

			r.Get("/balance", balanceService.GetBalance)
			r.Post("/balance/credit", balanceService.Credit)
			r.Post("/balance/withdraw", balanceService.Withdraw)

			r.Post("/transfers", transferService.Transfer)
			r.Get("/transfers/sent", transferService.ListSent)

			r.Post("/relations", relationService.AddRelation)
			r.Get("/relations", relationService.ListRelations)

			r.Get("/operations", historyService.GetHistory)

			r.Post("/settlement/convert", settlementService.ConvertWithdrawal)

			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)
		})
	})

	port := viper.GetString("server.port")

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("server.shutdown_timeout"))
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
