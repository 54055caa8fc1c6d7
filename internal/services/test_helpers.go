package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/repositories"
)

// MockAttemptTx implements repositories.AttemptTx for testing
type MockAttemptTx struct {
	FindActiveLockoutFunc   func(ctx context.Context, identifier string, now time.Time) (*models.Lockout, error)
	CountRecentFailuresFunc func(ctx context.Context, identifier string, since time.Time) (int, error)
	InsertFailureFunc       func(ctx context.Context, attempt *models.FailedAttempt) error
	ClearFailuresFunc       func(ctx context.Context, identifier string) (int64, error)
	CreateLockoutFunc       func(ctx context.Context, lockout *models.Lockout) error
	MarkUnlockedFunc        func(ctx context.Context, lockoutID string, at time.Time, by string) error
}

func (m *MockAttemptTx) FindActiveLockout(ctx context.Context, identifier string, now time.Time) (*models.Lockout, error) {
	if m.FindActiveLockoutFunc != nil {
		return m.FindActiveLockoutFunc(ctx, identifier, now)
	}
	return nil, nil
}

func (m *MockAttemptTx) CountRecentFailures(ctx context.Context, identifier string, since time.Time) (int, error) {
	if m.CountRecentFailuresFunc != nil {
		return m.CountRecentFailuresFunc(ctx, identifier, since)
	}
	return 0, nil
}

func (m *MockAttemptTx) InsertFailure(ctx context.Context, attempt *models.FailedAttempt) error {
	if m.InsertFailureFunc != nil {
		return m.InsertFailureFunc(ctx, attempt)
	}
	return nil
}

func (m *MockAttemptTx) ClearFailures(ctx context.Context, identifier string) (int64, error) {
	if m.ClearFailuresFunc != nil {
		return m.ClearFailuresFunc(ctx, identifier)
	}
	return 0, nil
}

func (m *MockAttemptTx) CreateLockout(ctx context.Context, lockout *models.Lockout) error {
	if m.CreateLockoutFunc != nil {
		return m.CreateLockoutFunc(ctx, lockout)
	}
	return nil
}

func (m *MockAttemptTx) MarkUnlocked(ctx context.Context, lockoutID string, at time.Time, by string) error {
	if m.MarkUnlockedFunc != nil {
		return m.MarkUnlockedFunc(ctx, lockoutID, at, by)
	}
	return nil
}

// MockAttemptStore implements AttemptStore for testing. Without a
// WithIdentifierLockFunc it runs fn against Tx.
type MockAttemptStore struct {
	WithIdentifierLockFunc func(ctx context.Context, identifier string, fn func(repositories.AttemptTx) error) error
	Tx                     *MockAttemptTx
}

func (m *MockAttemptStore) WithIdentifierLock(ctx context.Context, identifier string, fn func(repositories.AttemptTx) error) error {
	if m.WithIdentifierLockFunc != nil {
		return m.WithIdentifierLockFunc(ctx, identifier, fn)
	}
	tx := m.Tx
	if tx == nil {
		tx = &MockAttemptTx{}
	}
	return fn(tx)
}

// FakeClock is a manually advanced clock
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock set to start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// RecordingAlerter implements LockoutAlerter and UnlockAlerter, keeping every call
type RecordingAlerter struct {
	mu       sync.Mutex
	Lockouts []*models.Lockout
	Reports  []LoginReport
	Unlocks  []*models.Lockout
	Actors   []string
}

func (a *RecordingAlerter) EmitLockout(ctx context.Context, lockout *models.Lockout, report LoginReport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Lockouts = append(a.Lockouts, lockout)
	a.Reports = append(a.Reports, report)
}

func (a *RecordingAlerter) EmitUnlock(ctx context.Context, lockout *models.Lockout, actor string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Unlocks = append(a.Unlocks, lockout)
	a.Actors = append(a.Actors, actor)
}

// LockoutCount returns the number of EmitLockout calls
func (a *RecordingAlerter) LockoutCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Lockouts)
}
