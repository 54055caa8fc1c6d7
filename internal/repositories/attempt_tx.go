package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
)

// AttemptTx is the set of attempt and lockout operations available while the
// per-identifier lock is held. Every call made through one AttemptTx belongs
// to the same transaction, so a read-count-then-write sequence cannot
// interleave with another request for the same identifier.
type AttemptTx interface {
	// FindActiveLockout returns nil, nil when no lockout covers now
	FindActiveLockout(ctx context.Context, identifier string, now time.Time) (*models.Lockout, error)
	CountRecentFailures(ctx context.Context, identifier string, since time.Time) (int, error)
	InsertFailure(ctx context.Context, attempt *models.FailedAttempt) error
	ClearFailures(ctx context.Context, identifier string) (int64, error)
	CreateLockout(ctx context.Context, lockout *models.Lockout) error
	MarkUnlocked(ctx context.Context, lockoutID string, at time.Time, by string) error
}

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}
