/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the work-order engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the YAML config
  2. Configure logging
  3. Initialize SQLite store, seed holidays on first start
  4. Build the calendar provider and the deadline monitor
  5. Create API handler and router, optionally load a demo scenario
  6. Start monitor and server with graceful shutdown

COMMAND-LINE FLAGS:
  -config    YAML config file (optional, see config/config.go)
  -port      HTTP server port (overrides server.port)
  -db        SQLite database path (overrides database.path)
             Use ":memory:" for in-memory database
  -scenario  Demo scenario to load at startup (resets orders)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the deadline monitor
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/workorders.db"

  # Run in memory with demo data
  ./server -db=":memory:" -scenario=shop-floor

  # Run with a config file
  ./server -config=config.yaml

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
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/workorder-engine/api"
	"github.com/warp/workorder-engine/config"
	"github.com/warp/workorder-engine/production"
	"github.com/warp/workorder-engine/store/sqlite"
	"github.com/warp/workorder-engine/worktime"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	scenario := flag.String("scenario", "", "demo scenario to load at startup")
	flag.Parse()

	log := logrus.StandardLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := config.ConfigureLogger(log, cfg.Log); err != nil {
		log.WithError(err).Fatal("Failed to configure logging")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatal("Invalid timezone")
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	if cfg.Calendar.SeedHolidays {
		seeded, err := store.SeedHolidays(context.Background(), worktime.DefaultHolidays())
		if err != nil {
			log.WithError(err).Warn("Failed to seed holidays")
		} else if seeded {
			log.Info("Seeded default holidays")
		}
	}

	// Calendar and deadline monitor
	calendar := worktime.NewProvider(store, loc, cfg.Calendar.CacheTTL)
	monitor := production.NewMonitor(store, api.NewLogNotifier(), loc)
	monitor.Interval = cfg.Monitor.Interval

	// Initialize handler
	handler := api.NewHandler(store, calendar, monitor)
	if *scenario != "" {
		if err := handler.LoadScenarioByID(context.Background(), *scenario); err != nil {
			log.WithError(err).Fatal("Failed to load scenario")
		}
		log.WithField("scenario", *scenario).Info("Scenario loaded")
	}

	if cfg.Monitor.Enabled {
		monitor.Start()
	}

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"port":     cfg.Server.Port,
			"db":       cfg.Database.Path,
			"timezone": loc.String(),
		}).Infof("Server starting on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	monitor.Stop()

	log.Info("Server stopped")
}
