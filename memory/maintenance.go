package memory

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// MaintenanceConfig controls the optional scheduled sweep §4.5 allows:
// expired-entry pruning, low-importance pruning, importance decay, and
// orphan blob cleanup, run on a cron schedule rather than inline on every
// write.
type MaintenanceConfig struct {
	Schedule            string // standard 5-field cron expression; empty disables the scheduler
	ImportancePruneBelow float64
}

// Scheduler drives a Store's maintenance sweep on a cron schedule.
type Scheduler struct {
	store  *Store
	cfg    MaintenanceConfig
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler builds a scheduler for store. Start is a no-op if
// cfg.Schedule is empty.
func NewScheduler(store *Store, cfg MaintenanceConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{store: store, cfg: cfg, cron: cron.New(), logger: logger}
}

// Start registers and starts the maintenance job. Safe to call once;
// calling it again after Stop re-arms the same schedule.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Schedule == "" {
		s.logger.Info("memory maintenance schedule not configured, skipping")
		return nil
	}
	if _, err := cron.ParseStandard(s.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", s.cfg.Schedule, err)
	}

	if len(s.cron.Entries()) == 0 {
		if _, err := s.cron.AddFunc(s.cfg.Schedule, s.runSweep); err != nil {
			return fmt.Errorf("schedule maintenance sweep: %w", err)
		}
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("memory maintenance scheduler started", zap.String("schedule", s.cfg.Schedule))
	return nil
}

func (s *Scheduler) runSweep() {
	if err := s.store.PruneExpired(); err != nil {
		s.logger.Error("scheduled prune_expired failed", zap.Error(err))
	}
	if s.cfg.ImportancePruneBelow > 0 {
		if err := s.store.PruneImportance(s.cfg.ImportancePruneBelow); err != nil {
			s.logger.Error("scheduled prune_importance failed", zap.Error(err))
		}
	}
	if err := s.store.ApplyImportanceDecay(); err != nil {
		s.logger.Error("scheduled importance decay failed", zap.Error(err))
	}
	if err := s.store.CleanupOrphanBlobs(); err != nil {
		s.logger.Error("scheduled orphan blob cleanup failed", zap.Error(err))
	}
	s.logger.Debug("scheduled memory maintenance sweep completed")
}

// Stop stops the scheduler and waits for any in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("memory maintenance scheduler stopped")
	}
}

// IsRunning reports whether the cron loop is currently active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
