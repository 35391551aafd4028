/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the compensation engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Load the component catalog (persisted config, else built-in default)
  4. Create the lifecycle service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080)
  -db         SQLite database path (default: comp.db)
              Use ":memory:" for in-memory database
  -log-level  zerolog level: debug, info, warn, error (default: info)

Flags win over environment variables (PORT, DB_PATH, LOG_LEVEL); the
.env file only provides defaults.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/comp.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/api"
	"github.com/warp/comp-engine/comp"
	"github.com/warp/comp-engine/directory"
	"github.com/warp/comp-engine/factory"
	"github.com/warp/comp-engine/notify"
	"github.com/warp/comp-engine/store/sqlite"
)

func main() {
	// .env provides defaults; absence is not an error.
	_ = godotenv.Load()

	// Flags
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "comp.db"), "SQLite database path")
	logLevel := flag.String("log-level", envStr("LOG_LEVEL", "info"), "zerolog level")
	flag.Parse()

	log := newLogger(*logLevel)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Catalog: persisted admin config wins, else the built-in default.
	catalog, err := loadCatalog(context.Background(), store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load component catalog")
	}

	// Service and handler
	notifier := notify.NewLogDispatcher(log)
	service, err := comp.NewService(store, catalog, notifier)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create service")
	}
	handler := api.NewHandler(service, seedDirectory(), store, log)

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Str("db", *dbPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// loadCatalog returns the persisted catalog if an admin has saved one,
// otherwise seeds and returns the built-in default.
func loadCatalog(ctx context.Context, store comp.CatalogStore, log zerolog.Logger) (comp.Catalog, error) {
	configJSON, err := store.LoadCatalog(ctx)
	if err != nil {
		return comp.Catalog{}, err
	}
	if configJSON != "" {
		log.Info().Msg("using persisted component catalog")
		return factory.ParseCatalog(configJSON)
	}

	log.Info().Msg("no persisted catalog, seeding built-in default")
	if err := store.SaveCatalog(ctx, factory.DefaultCatalogJSON()); err != nil {
		log.Warn().Err(err).Msg("failed to persist default catalog")
	}
	return factory.DefaultCatalog(), nil
}

// seedDirectory returns a small in-memory employee directory. A real
// deployment replaces this with an HRIS-backed implementation.
func seedDirectory() directory.Directory {
	salary := func(v int64) *comp.Money {
		m := comp.Money{Value: decimal.NewFromInt(v)}
		return &m
	}
	return directory.NewMemory(
		&directory.Employee{
			ID: "emp-1001", Name: "Asha Nair",
			Department: "Engineering", Designation: "Senior Engineer",
			ExistingAnnualSalary: salary(1_200_000),
		},
		&directory.Employee{
			ID: "emp-1002", Name: "Rohan Mehta",
			Department: "Engineering", Designation: "Staff Engineer",
			ExistingAnnualSalary: salary(2_400_000),
		},
		&directory.Employee{
			ID: "emp-1003", Name: "Priya Iyer",
			Department: "Finance", Designation: "Analyst",
		},
	)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
