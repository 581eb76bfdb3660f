package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/factoidhq/factoid-gateway/internal/gateway/cache"
	"github.com/factoidhq/factoid-gateway/internal/gateway/costguard"
	"github.com/factoidhq/factoid-gateway/internal/gateway/factoid"
	"github.com/factoidhq/factoid-gateway/internal/gateway/handlers"
	"github.com/factoidhq/factoid-gateway/internal/gateway/providers"
	"github.com/factoidhq/factoid-gateway/internal/gateway/ratelimit"
	"github.com/factoidhq/factoid-gateway/internal/shared/config"
	"github.com/factoidhq/factoid-gateway/internal/shared/database"
	"github.com/factoidhq/factoid-gateway/internal/shared/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting Factoid Gateway on port %s (env: %s)", cfg.Port, cfg.Env)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✓ Connected to PostgreSQL")

	// Initialize Redis. Unlike the database it is optional: without it
	// the limiter and cost guard fall back to in-process state and the
	// catalog cache is process-local.
	var (
		limiter      ratelimit.Limiter
		guard        costguard.Guard
		catalogStore providers.CatalogStore
	)
	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("Redis unavailable, using in-memory rate limiter and cost guard: %v", err)
		limiter = ratelimit.NewMemoryLimiter()
		guard = costguard.NewMemoryGuard(cfg.ProfileBudgets)
	} else {
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient.Unwrap())
		guard = costguard.NewRedisGuard(redisClient.Unwrap(), cfg.ProfileBudgets, 24*time.Hour)
		catalogStore = cache.New(redisClient, time.Duration(cfg.CatalogCacheTTLSeconds)*time.Second)
		log.Println("✓ Connected to Redis")
	}

	// Initialize the OpenRouter client, model catalog, and resolver
	client := providers.NewClient(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL)
	catalog := providers.NewCatalog(cfg.OpenRouterAPIKey, cfg.OpenRouterBaseURL, catalogStore, time.Duration(cfg.CatalogCacheTTLSeconds)*time.Second)
	resolver := providers.NewResolver(catalog)
	if cfg.OpenRouterAPIKey == "" {
		log.Println("! OPENROUTER_API_KEY not set, serving placeholder factoids")
	} else {
		log.Println("✓ Initialized OpenRouter provider")
	}

	// Initialize the generation pipeline
	generator := factoid.NewGenerator(limiter, guard, resolver, catalog, client, db, cfg)

	// Initialize handlers
	factoidHandler := handlers.NewFactoidHandler(generator, limiter, db, cfg)
	chatHandler := handlers.NewChatHandler(client, limiter, db, cfg)
	middleware := handlers.NewMiddleware()

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(120 * time.Second))
	r.Use(middleware.CORSMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.FingerprintMiddleware)
		r.Use(middleware.ProfileMiddleware)

		r.Post("/factoids/generate", factoidHandler.HandleGenerate)
		r.Get("/factoids", factoidHandler.HandleListFactoids)
		r.Get("/factoids/{id}", factoidHandler.HandleGetFactoid)
		r.Post("/factoids/{id}/chat", chatHandler.HandleChat)
	})

	// HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("🚀 Server listening on http://localhost:%s", cfg.Port)
		log.Println("   POST /v1/factoids/generate  - Generate a factoid")
		log.Println("   GET  /v1/factoids           - List recent factoids")
		log.Println("   GET  /v1/factoids/{id}      - Fetch one factoid")
		log.Println("   POST /v1/factoids/{id}/chat - Chat about a factoid")
		log.Println("   GET  /health                - Health check")
		log.Println("")
		log.Println("Ready to accept requests!")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
