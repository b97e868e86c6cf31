// Package scheduler runs full-tree verification in the background.
//
// The Scanner periodically verifies the whole export and, when auto-repair
// is enabled, attempts repair of every path that produced a violation.
// Repairs are throttled so a badly damaged tree does not turn a scan into a
// chmod storm against the backing filesystem.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittocheck/internal/logger"
	"github.com/marmos91/dittocheck/internal/ratelimiter"
	"github.com/marmos91/dittocheck/pkg/verifier"
)

const (
	DefaultInterval = time.Hour
	DefaultTimeout  = 10 * time.Minute
)

// Target is what a Scanner verifies and repairs. *verifier.Verifier
// satisfies it.
type Target interface {
	VerifyState() verifier.ValidationResult
	RepairCorruption(path string) bool
}

// Config contains configuration for the scanner.
type Config struct {
	// Enabled controls whether periodic scans run (default: false)
	Enabled bool

	// Interval is how often to scan (default: 1h)
	Interval time.Duration

	// Timeout bounds the repair phase of a periodic scan (default: 10m)
	Timeout time.Duration

	// AutoRepair attempts repair of every path with a violation
	AutoRepair bool

	// RepairsPerSecond throttles auto-repair; 0 means unthrottled
	RepairsPerSecond uint

	// RepairBurst is the number of repairs allowed back to back
	RepairBurst uint
}

// Scanner performs periodic verification of a Target.
//
// Thread Safety: Safe for concurrent use. Scans triggered through RunNow
// may overlap with a periodic scan.
type Scanner struct {
	target  Target
	config  Config
	limiter *ratelimiter.RateLimiter
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewScanner creates a scanner. It is initialized but not started.
//
// Parameters:
//   - target: Verification engine to scan and repair through
//   - config: Schedule, timeout and auto-repair settings; a zero interval or
//     timeout falls back to DefaultInterval / DefaultTimeout
//
// Returns:
//   - *Scanner: Initialized scanner (call Start to begin)
//   - error: If target is nil
func NewScanner(target Target, config Config) (*Scanner, error) {
	if target == nil {
		return nil, fmt.Errorf("scanner requires a verification target")
	}

	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &Scanner{
		target:  target,
		config:  config,
		limiter: ratelimiter.New(config.RepairsPerSecond, config.RepairBurst),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins background scanning. Subsequent calls are no-ops.
func (s *Scanner) Start() {
	if !s.config.Enabled {
		logger.Info("Background verification disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	logger.Info("Starting background verification: interval=%s auto_repair=%v repairs_per_second=%d",
		s.config.Interval, s.config.AutoRepair, s.config.RepairsPerSecond)

	go s.worker()
}

// Stop stops the scanner and waits for an in-progress scan to finish or ctx
// to expire. Safe to call multiple times.
func (s *Scanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	if !s.stopped {
		s.stopped = true
		logger.Info("Stopping background verification...")
		close(s.stopCh)
	}
	s.mu.Unlock()

	select {
	case <-s.doneCh:
		logger.Info("Background verification stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Background verification shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one scan immediately and blocks until it completes or ctx is
// done. The verification pass itself is not interruptible; ctx bounds the
// repair phase.
func (s *Scanner) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running verification scan (manual trigger)...")
	return s.scan(ctx)
}

func (s *Scanner) worker() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
			stats, err := s.scan(ctx)
			cancel()

			if err != nil {
				logger.Error("Verification scan failed: %v", err)
			} else {
				logger.Info("Verification scan completed: %s", stats.Summary())
			}

		case <-s.stopCh:
			return
		}
	}
}

// scan verifies the whole tree, then repairs failed paths if configured.
func (s *Scanner) scan(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	res := s.target.VerifyState()
	stats.Valid = res.Valid
	stats.ObjectsChecked = res.ObjectsChecked
	stats.InvariantsChecked = res.InvariantsChecked
	stats.EntriesTraversed = res.EntriesTraversed
	stats.Violations = len(res.Violations)

	for _, violation := range res.Violations {
		logger.Debug("Violation: %s", violation)
	}

	if res.Valid || !s.config.AutoRepair {
		stats.EndTime = time.Now()
		return stats, nil
	}

	paths := res.FailedPaths()
	logger.Info("Scan found %d violations on %d paths, repairing", stats.Violations, len(paths))

	for _, path := range paths {
		if err := s.limiter.Wait(ctx); err != nil {
			stats.EndTime = time.Now()
			return stats, fmt.Errorf("repair phase interrupted after %d repairs: %w", stats.RepairsAttempted, err)
		}

		stats.RepairsAttempted++
		if s.target.RepairCorruption(path) {
			stats.RepairsSucceeded++
		} else {
			stats.RepairsFailed++
		}
	}

	stats.EndTime = time.Now()
	return stats, nil
}

// Stats contains statistics from a scan.
type Stats struct {
	StartTime         time.Time // When the scan started
	EndTime           time.Time // When the scan ended
	Valid             bool      // Whether the tree satisfied every invariant
	ObjectsChecked    int       // Objects rules were applied to
	InvariantsChecked int       // Rule evaluations
	EntriesTraversed  int       // Directory entries visited
	Violations        int       // Violations found
	RepairsAttempted  int       // Failed paths handed to repair
	RepairsSucceeded  int       // Repairs that left the path healthy
	RepairsFailed     int       // Repairs after which corruption persisted
}

// Duration returns the total scan duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the scan.
func (s *Stats) Summary() string {
	return fmt.Sprintf("valid=%v objects=%d invariants=%d entries=%d violations=%d repaired=%d failed=%d duration=%s",
		s.Valid, s.ObjectsChecked, s.InvariantsChecked, s.EntriesTraversed, s.Violations,
		s.RepairsSucceeded, s.RepairsFailed, s.Duration())
}
