/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the points ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load TOML configuration (flags override)
  3. Initialize SQLite store
  4. Wire engine, ranking service, and handler
  5. Start weekly reset scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  TOML config file path (optional; defaults apply without one)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the weekly reset scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/baseapp.db"

  # Run with config file
  ./server -config=baseapp.toml

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: TOML configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fayed99/base-app/api"
	"github.com/Fayed99/base-app/config"
	"github.com/Fayed99/base-app/ledger"
	"github.com/Fayed99/base-app/metrics"
	"github.com/Fayed99/base-app/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "TOML config file path")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	// Configuration
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	cacheTTL, err := cfg.CacheTTL()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire engine and ranking
	engine := ledger.NewEngine(store, ledger.DefaultActivityCatalog(), ledger.DefaultRewardCatalog())
	if cfg.Engine.LegacyOneShot {
		engine.Rules = ledger.OneShotRules()
		log.Println("Legacy one-shot claim mode enabled")
	}

	ranking := ledger.NewRankingService(store, cacheTTL)
	ranking.OnRefresh = func() {
		metrics.LeaderboardRefreshes.Inc()
	}

	handler := api.NewHandler(engine, ranking, store)
	handler.LeaderboardLimit = cfg.Leaderboard.Limit

	// Weekly reset scheduler
	scheduler := api.NewWeeklyResetScheduler(store, ranking)
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://%s", cfg.Addr())
		log.Printf("API available at http://%s/api", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
