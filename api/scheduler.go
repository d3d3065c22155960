/*
scheduler.go - Automated weekly score reset

PURPOSE:
  Periodically checks whether an ISO-week boundary has passed and zeroes
  every account's weekly score when it has. The weekly leaderboard starts
  fresh each Monday 00:00 UTC without operator intervention.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Keyed by ISO week ("2026-W35"): a reset for a week that has already
    been recorded is skipped, so restarts and multiple instances are safe
  - All-time scores are never touched

CONFIGURATION:
  - CheckInterval: How often to check (default: 10 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewWeeklyResetScheduler(store, ranking)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: ResetWeekly endpoint (manual reset)
  - ledger/types.go: WeekKey
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Fayed99/base-app/ledger"
	"github.com/Fayed99/base-app/metrics"
)

// WeeklyResetScheduler zeroes weekly scores when an ISO-week boundary passes.
type WeeklyResetScheduler struct {
	Store         ledger.Store
	Ranking       *ledger.RankingService
	CheckInterval time.Duration
	Enabled       bool

	// Now is overridable for tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewWeeklyResetScheduler creates a new scheduler.
func NewWeeklyResetScheduler(store ledger.Store, ranking *ledger.RankingService) *WeeklyResetScheduler {
	return &WeeklyResetScheduler{
		Store:         store,
		Ranking:       ranking,
		CheckInterval: 10 * time.Minute,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ws *WeeklyResetScheduler) Start() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ws.ticker = time.NewTicker(ws.CheckInterval)
	ws.wg.Add(1)

	go ws.run()

	log.Printf("[Scheduler] Started with check interval: %v", ws.CheckInterval)
}

// Stop stops the scheduler.
func (ws *WeeklyResetScheduler) Stop() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.ticker != nil {
		ws.ticker.Stop()
		close(ws.stop)
		ws.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ws *WeeklyResetScheduler) run() {
	defer ws.wg.Done()

	// Run immediately on start
	ws.checkAndReset()

	for {
		select {
		case <-ws.ticker.C:
			ws.checkAndReset()
		case <-ws.stop:
			return
		}
	}
}

func (ws *WeeklyResetScheduler) checkAndReset() {
	ctx := context.Background()
	weekKey := ledger.WeekKey(ws.Now().UTC())

	last, err := ws.Store.LastWeeklyReset(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error reading last reset: %v", err)
		return
	}
	if last == weekKey {
		// Already reset for this week
		return
	}

	n, applied, err := ws.Store.ResetWeeklyPoints(ctx, weekKey)
	if err != nil {
		log.Printf("[Scheduler] Error resetting weekly scores for %s: %v", weekKey, err)
		return
	}
	if !applied {
		// Another resetter claimed this week between the check and here.
		return
	}

	metrics.WeeklyResets.Inc()
	if ws.Ranking != nil {
		ws.Ranking.Invalidate()
	}

	log.Printf("[Scheduler] Weekly reset %s: %d accounts zeroed", weekKey, n)
}

// RunNow triggers an immediate check (for testing/admin).
func (ws *WeeklyResetScheduler) RunNow() {
	ws.checkAndReset()
}
