package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/repositories"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	defaultAlertLimit   = 50
	maxAlertLimit       = 200
)

// LockoutAdminStore is the subset of the attempt store needed by LockoutAdminService.
type LockoutAdminStore interface {
	AttemptStore
	ListLockouts(ctx context.Context, identifier string, limit int) ([]*models.Lockout, error)
	ListAlerts(ctx context.Context, limit, offset int) ([]*models.SecurityAlert, error)
}

// UnlockAlerter is notified after an administrative unlock has been committed.
type UnlockAlerter interface {
	EmitUnlock(ctx context.Context, lockout *models.Lockout, actor string)
}

// LockoutStatus describes one identifier's lockout state for operators.
type LockoutStatus struct {
	Identifier string            `json:"identifier"`
	Locked     bool              `json:"locked"`
	Active     *models.Lockout   `json:"active_lockout"`
	History    []*models.Lockout `json:"history"`
}

// LockoutAdminService backs the operator endpoints: inspect, unlock, alerts.
type LockoutAdminService struct {
	store  LockoutAdminStore
	alerts UnlockAlerter
	clock  func() time.Time
	logger *slog.Logger
}

// NewLockoutAdminService creates a new LockoutAdminService. A nil clock means time.Now.
func NewLockoutAdminService(store LockoutAdminStore, alerts UnlockAlerter, clock func() time.Time, logger *slog.Logger) *LockoutAdminService {
	if clock == nil {
		clock = time.Now
	}
	return &LockoutAdminService{
		store:  store,
		alerts: alerts,
		clock:  clock,
		logger: logger,
	}
}

// Status returns the active lockout (if any) and recent lockout history.
func (s *LockoutAdminService) Status(ctx context.Context, identifier string, limit int) (*LockoutStatus, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, models.ErrIdentifierRequired
	}
	limit = clampLimit(limit, defaultHistoryLimit, maxHistoryLimit)

	history, err := s.store.ListLockouts(ctx, identifier, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list lockouts",
			pkglogger.IdentifierAttr(identifier),
			slog.Any("error", err),
		)
		return nil, &models.StoreError{Op: "list lockouts", Err: err}
	}

	now := s.clock().UTC()
	status := &LockoutStatus{Identifier: identifier, History: history}
	for _, l := range history {
		if l.IsActive(now) {
			status.Locked = true
			status.Active = l
			break
		}
	}
	return status, nil
}

// Unlock lifts the identifier's active lockout and clears its failure history.
// Returns models.ErrNotFound when no lockout is active.
func (s *LockoutAdminService) Unlock(ctx context.Context, identifier, actor string) (*models.Lockout, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, models.ErrIdentifierRequired
	}

	now := s.clock().UTC()

	var unlocked *models.Lockout
	err := s.store.WithIdentifierLock(ctx, identifier, func(tx repositories.AttemptTx) error {
		unlocked = nil

		active, err := tx.FindActiveLockout(ctx, identifier, now)
		if err != nil {
			return &models.StoreError{Op: "find active lockout", Err: err}
		}
		if active == nil {
			return models.ErrNotFound
		}

		if err := tx.MarkUnlocked(ctx, active.ID, now, actor); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return err
			}
			return &models.StoreError{Op: "mark unlocked", Err: err}
		}
		if _, err := tx.ClearFailures(ctx, identifier); err != nil {
			return &models.StoreError{Op: "clear failures", Err: err}
		}

		active.UnlockedAt = &now
		active.UnlockedBy = &actor
		unlocked = active
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		var storeErr *models.StoreError
		if !errors.As(err, &storeErr) {
			storeErr = &models.StoreError{Op: "transaction", Err: err}
		}
		s.logger.ErrorContext(ctx, "failed to unlock identifier",
			pkglogger.IdentifierAttr(identifier),
			slog.String("op", storeErr.Op),
			slog.Any("error", storeErr.Err),
		)
		return nil, storeErr
	}

	s.logger.InfoContext(ctx, "lockout lifted",
		pkglogger.IdentifierAttr(identifier),
		slog.String("actor", actor),
	)
	if s.alerts != nil {
		s.alerts.EmitUnlock(ctx, unlocked, actor)
	}

	return unlocked, nil
}

// RecentAlerts pages through stored security alerts, newest first.
func (s *LockoutAdminService) RecentAlerts(ctx context.Context, limit, offset int) ([]*models.SecurityAlert, error) {
	limit = clampLimit(limit, defaultAlertLimit, maxAlertLimit)
	if offset < 0 {
		offset = 0
	}

	alerts, err := s.store.ListAlerts(ctx, limit, offset)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list security alerts", slog.Any("error", err))
		return nil, &models.StoreError{Op: "list alerts", Err: err}
	}
	return alerts, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
