package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// SweeperConfig holds configuration for the stale trade sweeper.
type SweeperConfig struct {
	// Interval is how often pending trades are re-validated.
	// Default: 10 minutes
	Interval time.Duration

	// BatchSize is the page size used while walking pending trades.
	// Default: 200
	BatchSize int

	// InitialDelay postpones the first run after Start.
	InitialDelay time.Duration
}

// DefaultSweeperConfig returns default sweeper configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:     10 * time.Minute,
		BatchSize:    200,
		InitialDelay: 1 * time.Minute,
	}
}

// StaleTradeSweeper periodically removes pending trades that reference assets
// that went missing, changed owner or stopped being tradeable.
type StaleTradeSweeper struct {
	trades    *TradeService
	config    SweeperConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	lastRun   time.Time
	lastCount int
	mu        sync.Mutex
}

// NewStaleTradeSweeper creates a new sweeper.
func NewStaleTradeSweeper(trades *TradeService, config SweeperConfig) *StaleTradeSweeper {
	defaults := DefaultSweeperConfig()
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize == 0 {
		config.BatchSize = defaults.BatchSize
	}

	return &StaleTradeSweeper{
		trades: trades,
		config: config,
		stopCh: make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *StaleTradeSweeper) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.config.Interval)
	s.mu.Unlock()

	log.Printf("[StaleTradeSweeper] Started - Interval: %v, Batch: %d", s.config.Interval, s.config.BatchSize)

	go func() {
		select {
		case <-time.After(s.config.InitialDelay):
			s.runSweep()
		case <-s.stopCh:
		}
	}()

	go s.run()
}

// run is the main sweep loop.
func (s *StaleTradeSweeper) run() {
	for {
		select {
		case <-s.ticker.C:
			s.runSweep()
		case <-s.stopCh:
			log.Printf("[StaleTradeSweeper] Stopped")
			return
		}
	}
}

func (s *StaleTradeSweeper) runSweep() {
	purged, err := s.RunNow(context.Background())
	if err != nil {
		log.Printf("[StaleTradeSweeper] Error during sweep: %v", err)
		return
	}

	if purged > 0 {
		log.Printf("[StaleTradeSweeper] Purged %d stale trades", purged)
	}
}

// RunNow triggers an immediate sweep and returns the number of trades purged.
func (s *StaleTradeSweeper) RunNow(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	purged, err := s.trades.PurgeStale(ctx, s.config.BatchSize)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastCount = purged
	s.mu.Unlock()

	return purged, err
}

// Stats reports the last run for the admin dashboard.
func (s *StaleTradeSweeper) Stats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]interface{}{
		"running":    s.isRunning,
		"interval":   s.config.Interval.String(),
		"batch_size": s.config.BatchSize,
		"last_purge": s.lastCount,
	}
	if !s.lastRun.IsZero() {
		stats["last_run"] = s.lastRun.UTC().Format(time.RFC3339)
	}
	return stats
}

// Stop stops the sweeper.
func (s *StaleTradeSweeper) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}
