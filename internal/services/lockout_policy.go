package services

import (
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// Default lockout parameters
const (
	DefaultMaxAttempts  = 5
	DefaultWindow       = 15 * time.Minute
	DefaultLockDuration = 30 * time.Minute

	// warningThreshold is the remaining-attempts level at which callers are warned
	warningThreshold = 2
)

// DecisionKind is the state a single login report moves the identifier into
type DecisionKind int

const (
	// DecisionAllow keeps the identifier unlocked
	DecisionAllow DecisionKind = iota
	// DecisionLockNow means this failure crosses the threshold; a lockout must be created
	DecisionLockNow
	// DecisionLocked means an existing lockout is still active
	DecisionLocked
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionAllow:
		return "allow"
	case DecisionLockNow:
		return "lock_now"
	case DecisionLocked:
		return "locked"
	default:
		return fmt.Sprintf("DecisionKind(%d)", int(k))
	}
}

// Decision is the policy's verdict for one report
type Decision struct {
	Kind              DecisionKind
	LockedUntil       time.Time
	Reason            string
	AttemptsRemaining int
	Warning           bool
}

// LockoutPolicy decides, without I/O, whether a failure is allowed, locks the
// identifier now, or hits an existing lock.
type LockoutPolicy struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// DefaultLockoutPolicy returns 5 failures in 15 minutes -> 30 minute lock
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxAttempts:  DefaultMaxAttempts,
		Window:       DefaultWindow,
		LockDuration: DefaultLockDuration,
	}
}

// Evaluate applies the policy. recentFailures counts failures inside the
// window before the one being processed; the current failure is added here.
func (p LockoutPolicy) Evaluate(recentFailures int, active *models.Lockout, now time.Time) Decision {
	if active != nil {
		return Decision{
			Kind:        DecisionLocked,
			LockedUntil: active.LockedUntil,
			Reason:      active.Reason,
		}
	}

	if recentFailures < 0 {
		recentFailures = 0
	}
	attempts := recentFailures + 1

	if attempts >= p.MaxAttempts {
		return Decision{
			Kind:        DecisionLockNow,
			LockedUntil: now.Add(p.LockDuration),
			Reason:      failedAttemptsReason(attempts),
		}
	}

	remaining := p.MaxAttempts - attempts
	return Decision{
		Kind:              DecisionAllow,
		AttemptsRemaining: remaining,
		Warning:           remaining <= warningThreshold,
	}
}

func failedAttemptsReason(n int) string {
	if n == 1 {
		return "1 failed attempt"
	}
	return fmt.Sprintf("%d failed attempts", n)
}
