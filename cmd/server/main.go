/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the upgrade automation server: the simulated
  world, its tick driver and the HTTP API. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load tuning (configs/tuning.yaml merged over defaults)
  3. Initialize SQLite store
  4. Restore the world: snapshot if present, else the start scenario
  5. Overlay persisted upgrade records and tank states
  6. Start the tick driver and the HTTP server

COMMAND-LINE FLAGS:
  -port      HTTP server port (default: 8080)
  -db        SQLite database path (default: upgrades.db)
             Use ":memory:" for in-memory database
  -tuning    Tuning file (default: configs/tuning.yaml, optional)
  -snapshot  Snapshot file read on start and written periodically
  -scenario  Scenario loaded when no snapshot exists

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the tick driver
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Write a final snapshot and close the database
  5. Exit

EXAMPLES:
  # Run with file database and snapshots
  ./server -db="./data/upgrades.db" -snapshot="./data/world.snap"

  # Run with in-memory database
  ./server -db=":memory:" -scenario=fluid-pump

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Tick driver
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/upgrade-engine/api"
	"github.com/warp/upgrade-engine/factory"
	"github.com/warp/upgrade-engine/store/sqlite"
	"github.com/warp/upgrade-engine/tuning"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "upgrades.db", "SQLite database path")
	tuningPath := flag.String("tuning", "configs/tuning.yaml", "Tuning file (optional)")
	snapshotPath := flag.String("snapshot", "", "Snapshot file (empty disables snapshots)")
	scenario := flag.String("scenario", "player-above-threshold", "Scenario loaded when no snapshot exists")
	flag.Parse()

	// Tuning
	t, err := tuning.Load(*tuningPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("No tuning file at %s, using defaults", *tuningPath)
		t = tuning.Default()
	} else if err != nil {
		log.Fatalf("Failed to load tuning: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, t)
	handler.SnapshotPath = *snapshotPath

	if err := restoreWorld(handler, *snapshotPath, *scenario, t); err != nil {
		log.Fatalf("Failed to restore world: %v", err)
	}
	if err := handler.RestoreFromStore(context.Background()); err != nil {
		log.Printf("Warning: Failed to restore persisted upgrades: %v", err)
	}

	driver := api.NewTickDriver(handler)
	driver.Start()

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
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	driver.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if *snapshotPath != "" {
		if _, err := handler.SaveSnapshot(); err != nil {
			log.Printf("Warning: Failed to write final snapshot: %v", err)
		}
	}
	handler.World.Unload()

	log.Println("Server stopped")
}

// restoreWorld loads the snapshot when one exists, else builds the start
// scenario with a store-less factory so persisted records win afterwards.
func restoreWorld(h *api.Handler, snapshotPath, scenario string, t tuning.Tuning) error {
	if snapshotPath != "" {
		err := h.LoadSnapshot(snapshotPath)
		if err == nil {
			log.Printf("Loaded snapshot %s at tick %d", snapshotPath, h.World.CurrentTick())
			return nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	s, err := api.BuildScenario(context.Background(), scenario, factory.NewUpgradeFactory(t, nil), t)
	if err != nil {
		return err
	}
	h.World.Replace(s)
	log.Printf("Loaded scenario %s", scenario)
	return nil
}
