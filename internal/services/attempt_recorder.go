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

// AttemptStore is the durable boundary the recorder depends on. All mutable
// lockout state lives behind it.
type AttemptStore interface {
	WithIdentifierLock(ctx context.Context, identifier string, fn func(repositories.AttemptTx) error) error
}

// LockoutAlerter is notified after a lockout has been committed. It must not block.
type LockoutAlerter interface {
	EmitLockout(ctx context.Context, lockout *models.Lockout, report LoginReport)
}

// LoginReport is one reported login outcome
type LoginReport struct {
	Identifier  string
	Success     bool
	SourceIP    string
	ClientAgent string
}

// OutcomeKind enumerates the results of reporting a login
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNotLocked
	OutcomeLocked
)

// Outcome is the result of RecordOutcome. Locked is an ordinary result, not an error.
type Outcome struct {
	Kind              OutcomeKind
	LockedUntil       time.Time
	Reason            string
	AttemptsRemaining int
	Warning           bool
}

// RecorderConfig holds the recorder's tunables
type RecorderConfig struct {
	Policy       LockoutPolicy
	StoreTimeout time.Duration    // 0 disables the per-request deadline
	Clock        func() time.Time // nil means time.Now
}

// AttemptRecorder orchestrates a single "report login outcome" request. It
// keeps no state between calls.
type AttemptRecorder struct {
	store        AttemptStore
	alerts       LockoutAlerter
	policy       LockoutPolicy
	storeTimeout time.Duration
	clock        func() time.Time
	logger       *slog.Logger
}

// NewAttemptRecorder creates a new AttemptRecorder
func NewAttemptRecorder(store AttemptStore, alerts LockoutAlerter, config RecorderConfig, logger *slog.Logger) *AttemptRecorder {
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AttemptRecorder{
		store:        store,
		alerts:       alerts,
		policy:       config.Policy,
		storeTimeout: config.StoreTimeout,
		clock:        clock,
		logger:       logger,
	}
}

// Policy returns the active lockout policy
func (s *AttemptRecorder) Policy() LockoutPolicy {
	return s.policy
}

// RecordOutcome records one login outcome and returns the lock decision.
// The whole read-decide-write sequence runs under the identifier's store lock,
// so concurrent reports for one identifier behave as if serialized.
func (s *AttemptRecorder) RecordOutcome(ctx context.Context, report LoginReport) (*Outcome, error) {
	report.Identifier = strings.TrimSpace(report.Identifier)
	if report.Identifier == "" {
		return nil, models.ErrIdentifierRequired
	}

	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	now := s.clock().UTC()

	var (
		outcome *Outcome
		created *models.Lockout
	)

	err := s.store.WithIdentifierLock(ctx, report.Identifier, func(tx repositories.AttemptTx) error {
		outcome, created = nil, nil

		active, err := tx.FindActiveLockout(ctx, report.Identifier, now)
		if err != nil {
			return &models.StoreError{Op: "find active lockout", Err: err}
		}
		if active != nil {
			outcome = lockedOutcome(s.policy.Evaluate(0, active, now))
			return nil
		}

		if report.Success {
			if _, err := tx.ClearFailures(ctx, report.Identifier); err != nil {
				return &models.StoreError{Op: "clear failures", Err: err}
			}
			outcome = &Outcome{Kind: OutcomeSuccess}
			return nil
		}

		if err := tx.InsertFailure(ctx, &models.FailedAttempt{
			Identifier:  report.Identifier,
			OccurredAt:  now,
			SourceIP:    report.SourceIP,
			ClientAgent: report.ClientAgent,
		}); err != nil {
			return &models.StoreError{Op: "insert failure", Err: err}
		}

		count, err := tx.CountRecentFailures(ctx, report.Identifier, now.Add(-s.policy.Window))
		if err != nil {
			return &models.StoreError{Op: "count recent failures", Err: err}
		}

		// count includes the row just inserted; the policy adds it back
		decision := s.policy.Evaluate(count-1, nil, now)
		if decision.Kind != DecisionLockNow {
			outcome = &Outcome{
				Kind:              OutcomeNotLocked,
				AttemptsRemaining: decision.AttemptsRemaining,
				Warning:           decision.Warning,
			}
			return nil
		}

		lockout := &models.Lockout{
			Identifier:  report.Identifier,
			LockedAt:    now,
			LockedUntil: decision.LockedUntil,
			Reason:      decision.Reason,
		}
		if err := tx.CreateLockout(ctx, lockout); err != nil {
			return &models.StoreError{Op: "create lockout", Err: err}
		}
		created = lockout
		outcome = lockedOutcome(decision)
		return nil
	})
	if err != nil {
		var storeErr *models.StoreError
		if !errors.As(err, &storeErr) {
			storeErr = &models.StoreError{Op: "transaction", Err: err}
		}
		s.logger.ErrorContext(ctx, "failed to record login outcome",
			pkglogger.IdentifierAttr(report.Identifier),
			slog.String("op", storeErr.Op),
			slog.Bool("transient", storeErr.Transient()),
			slog.Any("error", storeErr.Err),
		)
		return nil, storeErr
	}

	if created != nil {
		s.logger.WarnContext(ctx, "account locked",
			pkglogger.IdentifierAttr(report.Identifier),
			slog.String("reason", created.Reason),
			slog.Time("locked_until", created.LockedUntil),
		)
		if s.alerts != nil {
			s.alerts.EmitLockout(ctx, created, report)
		}
	}

	return outcome, nil
}

func lockedOutcome(d Decision) *Outcome {
	return &Outcome{
		Kind:              OutcomeLocked,
		LockedUntil:       d.LockedUntil,
		Reason:            d.Reason,
		AttemptsRemaining: 0,
	}
}
