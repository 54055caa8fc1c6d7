package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []*models.SecurityAlert
	ctxErr []error
	err    error
}

func (f *fakeAlertRepo) CreateAlert(ctx context.Context, alert *models.SecurityAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
	f.ctxErr = append(f.ctxErr, ctx.Err())
	return f.err
}

func (f *fakeAlertRepo) stored() []*models.SecurityAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.SecurityAlert(nil), f.alerts...)
}

type fakeNotifier struct {
	name  string
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Notify(ctx context.Context, alert *models.SecurityAlert) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLockout() *models.Lockout {
	return &models.Lockout{
		ID:          "lockout-1",
		Identifier:  "a@x.com",
		LockedAt:    testStart,
		LockedUntil: testStart.Add(30 * time.Minute),
		Reason:      "5 failed attempts",
	}
}

func TestAlertEmitter_EmitLockoutPersistsAndNotifies(t *testing.T) {
	repo := &fakeAlertRepo{}
	mail := &fakeNotifier{name: "ses"}
	bus := &fakeNotifier{name: "nats"}
	emitter := services.NewAlertEmitter(repo, discardLogger(), time.Second, mail, bus)

	emitter.EmitLockout(context.Background(), testLockout(), services.LoginReport{
		Identifier:  "a@x.com",
		SourceIP:    "203.0.113.9",
		ClientAgent: "curl/8.0",
	})
	emitter.Wait()

	stored := repo.stored()
	require.Len(t, stored, 1)
	alert := stored[0]
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, models.AlertKindAccountLocked, alert.Kind)
	assert.Equal(t, models.AlertSeverityHigh, alert.Severity)
	assert.Equal(t, testStart, alert.CreatedAt)
	assert.Equal(t, "a@x.com", alert.Metadata["identifier"])
	assert.Equal(t, "lockout-1", alert.Metadata["lockout_id"])
	assert.Equal(t, "203.0.113.9", alert.Metadata["source_ip"])
	assert.Equal(t, "curl/8.0", alert.Metadata["client_agent"])
	assert.Equal(t, testStart.Add(30*time.Minute).Format(time.RFC3339), alert.Metadata["locked_until"])
	assert.Contains(t, alert.Description, "5 failed attempts")

	assert.Equal(t, 1, mail.count())
	assert.Equal(t, 1, bus.count())
}

func TestAlertEmitter_FailuresAreSwallowed(t *testing.T) {
	repo := &fakeAlertRepo{err: errors.New("database is locked")}
	broken := &fakeNotifier{name: "ses", err: errors.New("throttled")}
	healthy := &fakeNotifier{name: "nats"}
	emitter := services.NewAlertEmitter(repo, discardLogger(), time.Second, broken, healthy)

	assert.NotPanics(t, func() {
		emitter.EmitLockout(context.Background(), testLockout(), services.LoginReport{})
		emitter.Wait()
	})

	// A failing sink does not stop the others
	assert.Len(t, repo.stored(), 1)
	assert.Equal(t, 1, broken.count())
	assert.Equal(t, 1, healthy.count())
}

func TestAlertEmitter_CallerCancellationDoesNotAbortDelivery(t *testing.T) {
	repo := &fakeAlertRepo{}
	emitter := services.NewAlertEmitter(repo, discardLogger(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	emitter.EmitLockout(ctx, testLockout(), services.LoginReport{})
	cancel()
	emitter.Wait()

	require.Len(t, repo.stored(), 1)
	assert.NoError(t, repo.ctxErr[0])
}

func TestAlertEmitter_EmitDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	slow := &fakeNotifier{name: "slow", block: block}
	emitter := services.NewAlertEmitter(nil, discardLogger(), 5*time.Second, slow)

	done := make(chan struct{})
	go func() {
		emitter.EmitLockout(context.Background(), testLockout(), services.LoginReport{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitLockout blocked on a slow notifier")
	}

	close(block)
	emitter.Wait()
	assert.Equal(t, 1, slow.count())
}

func TestAlertEmitter_DeliveryTimeout(t *testing.T) {
	stuck := &fakeNotifier{name: "stuck", block: make(chan struct{})}
	emitter := services.NewAlertEmitter(nil, discardLogger(), 50*time.Millisecond, stuck)

	emitter.EmitLockout(context.Background(), testLockout(), services.LoginReport{})

	waited := make(chan struct{})
	go func() {
		emitter.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery ignored its timeout")
	}
	assert.Equal(t, 0, stuck.count())
}

func TestAlertEmitter_EmitUnlock(t *testing.T) {
	repo := &fakeAlertRepo{}
	emitter := services.NewAlertEmitter(repo, discardLogger(), time.Second)

	emitter.EmitUnlock(context.Background(), testLockout(), "ops@example.com")
	emitter.Wait()

	stored := repo.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, models.AlertKindAccountUnlocked, stored[0].Kind)
	assert.Equal(t, models.AlertSeverityLow, stored[0].Severity)
	assert.Equal(t, "ops@example.com", stored[0].Metadata["actor"])
	assert.False(t, stored[0].CreatedAt.IsZero())
	assert.NotEmpty(t, stored[0].ID)
}
