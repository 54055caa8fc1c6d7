package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FailurePurger deletes failed login attempts recorded before cutoff
type FailurePurger interface {
	PurgeFailuresBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically removes failed attempts older than the retention
// period. Lockouts and alerts are history and are never touched.
type CleanupManager struct {
	repo      FailurePurger
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	clock     func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	repo FailurePurger,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		repo:      repo,
		logger:    logger,
		interval:  interval,
		retention: retention,
		clock:     time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It blocks until Stop is called or ctx is done.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce purges failed attempts older than the retention period
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.clock().UTC().Add(-cm.retention)

	rowsDeleted, err := cm.repo.PurgeFailuresBefore(cleanupCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to purge old login failures", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("login failure cleanup completed",
			slog.Int64("rows_deleted", rowsDeleted),
			slog.Time("cutoff", cutoff),
		)
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
