package models

import "time"

// FailedAttempt is one unsuccessful login for an identifier
type FailedAttempt struct {
	ID          string    `db:"id"`
	Identifier  string    `db:"identifier"`
	OccurredAt  time.Time `db:"occurred_at"`
	SourceIP    string    `db:"source_ip"`
	ClientAgent string    `db:"client_agent"`
}

// Lockout is one lock episode. Expiry is implicit: once LockedUntil has passed
// the row stays in storage but no longer counts as active.
type Lockout struct {
	ID          string     `db:"id" json:"id"`
	Identifier  string     `db:"identifier" json:"identifier"`
	LockedAt    time.Time  `db:"locked_at" json:"locked_at"`
	LockedUntil time.Time  `db:"locked_until" json:"locked_until"`
	Reason      string     `db:"reason" json:"reason"`
	UnlockedAt  *time.Time `db:"unlocked_at" json:"unlocked_at"`
	UnlockedBy  *string    `db:"unlocked_by" json:"unlocked_by,omitempty"`
}

// IsActive reports whether the lockout still blocks logins at now.
// LockedUntil is an exclusive bound.
func (l *Lockout) IsActive(now time.Time) bool {
	return l.UnlockedAt == nil && now.Before(l.LockedUntil)
}
