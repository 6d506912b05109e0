/*
scheduler.go - World tick driver

PURPOSE:
  Advances the world at the configured tick rate, appends each tick's
  transfers to the ledger and periodically writes a snapshot.

DESIGN:
  - Runs a background goroutine with a ticker at 1s / tick_rate_hz
  - Every tick goes through Handler.Advance, which holds the world lock
  - Ledger and store errors are logged; the world keeps ticking
  - A snapshot is written every snapshot_every_ticks when a path is set

CONFIGURATION:
  - Interval: Derived from tuning.tick_rate_hz (default: 50ms)
  - Enabled: Whether the driver is active (default: true)

USAGE:
  driver := NewTickDriver(handler)
  driver.Start()
  // ... later
  driver.Stop()

SEE ALSO:
  - handlers.go: Advance, SaveSnapshot and the manual step endpoint
  - world/state.go: The tick itself
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// TickDriver advances the world on a fixed interval.
type TickDriver struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	// SnapshotEvery is the number of ticks between snapshots. 0 disables.
	SnapshotEvery int

	ticker  *time.Ticker
	stop    chan bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	elapsed int
}

// NewTickDriver creates a driver from the handler's tuning.
func NewTickDriver(h *Handler) *TickDriver {
	interval := time.Second / 20
	if h.Tuning.TickRateHz > 0 {
		interval = time.Second / time.Duration(h.Tuning.TickRateHz)
	}
	return &TickDriver{
		Handler:       h,
		Interval:      interval,
		Enabled:       true,
		SnapshotEvery: h.Tuning.SnapshotEveryTicks,
		stop:          make(chan bool),
	}
}

// Start begins ticking.
func (td *TickDriver) Start() {
	td.mu.Lock()
	defer td.mu.Unlock()

	if !td.Enabled {
		log.Println("[TickDriver] Disabled, not starting")
		return
	}

	td.ticker = time.NewTicker(td.Interval)
	td.wg.Add(1)

	go td.run()

	log.Printf("[TickDriver] Started with interval: %v", td.Interval)
}

// Stop stops ticking and waits for the current tick to finish.
func (td *TickDriver) Stop() {
	td.mu.Lock()
	defer td.mu.Unlock()

	if td.ticker != nil {
		td.ticker.Stop()
		close(td.stop)
		td.wg.Wait()
		td.ticker = nil
		log.Println("[TickDriver] Stopped")
	}
}

func (td *TickDriver) run() {
	defer td.wg.Done()

	for {
		select {
		case <-td.ticker.C:
			td.tick()
		case <-td.stop:
			return
		}
	}
}

func (td *TickDriver) tick() {
	ts, err := td.Handler.Advance(context.Background())
	if err != nil {
		log.Printf("[TickDriver] Error recording tick %d: %v", td.Handler.World.CurrentTick(), err)
	} else if len(ts) > 0 {
		log.Printf("[TickDriver] Tick %d: %d transfers", ts[0].Tick, len(ts))
	}

	if td.SnapshotEvery <= 0 || td.Handler.SnapshotPath == "" {
		return
	}
	td.elapsed++
	if td.elapsed < td.SnapshotEvery {
		return
	}
	td.elapsed = 0
	snap, err := td.Handler.SaveSnapshot()
	if err != nil {
		log.Printf("[TickDriver] Error writing snapshot: %v", err)
		return
	}
	log.Printf("[TickDriver] Snapshot written at tick %d", snap.Header.Tick)
}

// RunNow runs one tick immediately (for testing/admin).
func (td *TickDriver) RunNow() {
	td.tick()
}
