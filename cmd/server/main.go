package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phishguard-backend/internal/config"
	"phishguard-backend/internal/database"
	"phishguard-backend/internal/delivery"
	"phishguard-backend/internal/handlers"
	"phishguard-backend/internal/middleware"
	"phishguard-backend/internal/notifier"
	"phishguard-backend/internal/provider"
	"phishguard-backend/internal/repository"
	"phishguard-backend/internal/router"
	"phishguard-backend/internal/simulation"
	"phishguard-backend/internal/websocket"
	"phishguard-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting PhishGuard Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	templateRepo := repository.NewTemplateRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	deliveryRepo := repository.NewDeliveryRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Step 5: Initialize Content Provider ────
	// No API key means every call runs on the simulated path.
	var contentProvider provider.ContentProvider
	if cfg.GeminiAPIKey != "" {
		geminiProvider, err := provider.NewGeminiProvider(
			cfg.GeminiAPIKey,
			cfg.GeminiConcurrentReqs,
			time.Duration(cfg.GeminiTimeoutSecs)*time.Second,
		)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer geminiProvider.Close()
		contentProvider = geminiProvider
		log.Println("✓ Gemini content provider initialized (simulated fallback armed)")
	} else {
		contentProvider = provider.NewSimulatedProvider()
		log.Println("⚠ No GEMINI_API_KEY set, using simulated content provider")
	}

	// ──── Initialize Core Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	sessionNotifier := notifier.NewRedisNotifier(redisClients.Queue)
	sessionManager := simulation.NewManager(sessionRepo, templateRepo, contentProvider, sessionNotifier)

	watchdog := simulation.NewWatchdog(sessionManager, sessionRepo, time.Duration(cfg.SessionTTLMinutes)*time.Minute)
	watchdog.Start()

	emailTransport := delivery.NewEmailTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	smsTransport := delivery.NewSMSTransport(cfg.SMSAPIURL, cfg.SMSAPIKey)
	dispatcher := delivery.NewDispatcher(cfg.DispatchWorkers, emailTransport, smsTransport)

	// ──── Initialize Handlers ────
	sessionHandler := handlers.NewSessionHandler(sessionManager)
	contentHandler := handlers.NewContentHandler(contentProvider)
	deliveryHandler := handlers.NewDeliveryHandler(dispatcher, jobRepo, redisClients.Queue)
	templateHandler := handlers.NewTemplateHandler(templateRepo)
	jobHandler := handlers.NewJobHandler(jobRepo, deliveryRepo)

	// ──── Step 6: Start Campaign Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		contentProvider,
		dispatcher,
		jobRepo,
		deliveryRepo,
		cfg.DispatchWorkers,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.DispatchWorkers)

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		sessionHandler,
		contentHandler,
		deliveryHandler,
		templateHandler,
		jobHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		watchdog.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ PhishGuard Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
