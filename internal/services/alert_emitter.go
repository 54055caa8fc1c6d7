package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
	"github.com/google/uuid"
)

// AlertRepository persists security alerts
type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *models.SecurityAlert) error
}

// Notifier forwards an alert outside the service (mail, message bus)
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert *models.SecurityAlert) error
}

// AlertEmitter records security alerts with a dual write: an immediate slog
// record and a store row written in the background together with any
// notifiers. Delivery failures are logged and swallowed.
type AlertEmitter struct {
	repo      AlertRepository
	notifiers []Notifier
	security  *pkglogger.SecurityLogger
	logger    *slog.Logger
	timeout   time.Duration

	wg sync.WaitGroup
}

// NewAlertEmitter creates a new AlertEmitter. timeout bounds each background delivery.
func NewAlertEmitter(repo AlertRepository, logger *slog.Logger, timeout time.Duration, notifiers ...Notifier) *AlertEmitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlertEmitter{
		repo:      repo,
		notifiers: notifiers,
		security:  pkglogger.NewSecurityLogger(logger),
		logger:    logger,
		timeout:   timeout,
	}
}

// EmitLockout records an account_locked alert for a freshly created lockout
func (e *AlertEmitter) EmitLockout(ctx context.Context, lockout *models.Lockout, report LoginReport) {
	alert := &models.SecurityAlert{
		Kind:        models.AlertKindAccountLocked,
		Severity:    models.AlertSeverityHigh,
		Description: fmt.Sprintf("Account locked after %s", lockout.Reason),
		Metadata: models.AlertMetadata{
			"identifier":   lockout.Identifier,
			"lockout_id":   lockout.ID,
			"locked_until": lockout.LockedUntil.UTC().Format(time.RFC3339),
			"reason":       lockout.Reason,
			"source_ip":    report.SourceIP,
			"client_agent": report.ClientAgent,
		},
		CreatedAt: lockout.LockedAt,
	}

	e.security.Log(ctx, pkglogger.SecurityEvent{
		EventType:   alert.Kind,
		Identifier:  lockout.Identifier,
		IPAddress:   report.SourceIP,
		UserAgent:   report.ClientAgent,
		Severity:    alert.Severity,
		LockedUntil: lockout.LockedUntil,
	})

	e.Emit(ctx, alert)
}

// EmitUnlock records an account_unlocked alert for an administrative unlock
func (e *AlertEmitter) EmitUnlock(ctx context.Context, lockout *models.Lockout, actor string) {
	alert := &models.SecurityAlert{
		Kind:        models.AlertKindAccountUnlocked,
		Severity:    models.AlertSeverityLow,
		Description: "Lockout lifted by administrator",
		Metadata: models.AlertMetadata{
			"identifier": lockout.Identifier,
			"lockout_id": lockout.ID,
			"actor":      actor,
		},
	}

	e.security.Log(ctx, pkglogger.SecurityEvent{
		EventType:  alert.Kind,
		Identifier: lockout.Identifier,
		Severity:   alert.Severity,
		Actor:      actor,
	})

	e.Emit(ctx, alert)
}

// Emit delivers alert in the background and returns immediately. The
// caller's cancellation does not reach the delivery.
func (e *AlertEmitter) Emit(ctx context.Context, alert *models.SecurityAlert) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	deliveryCtx := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				e.logger.Error("alert delivery panicked",
					slog.String("kind", alert.Kind),
					slog.Any("panic", p),
				)
			}
		}()

		ctx, cancel := context.WithTimeout(deliveryCtx, e.timeout)
		defer cancel()

		e.deliver(ctx, alert)
	}()
}

// Wait blocks until every in-flight delivery has finished
func (e *AlertEmitter) Wait() {
	e.wg.Wait()
}

func (e *AlertEmitter) deliver(ctx context.Context, alert *models.SecurityAlert) {
	if e.repo != nil {
		if err := e.repo.CreateAlert(ctx, alert); err != nil {
			// Non-critical: the lockout itself is already committed
			e.logger.ErrorContext(ctx, "failed to persist security alert",
				slog.String("kind", alert.Kind),
				slog.Any("error", err),
			)
		}
	}

	for _, n := range e.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			e.logger.WarnContext(ctx, "alert notifier failed",
				slog.String("notifier", n.Name()),
				slog.String("kind", alert.Kind),
				slog.Any("error", err),
			)
		}
	}
}
