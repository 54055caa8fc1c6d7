package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LoginAttemptRepository is the PostgreSQL attempt store. Requests for the
// same identifier are serialized with a transaction-scoped advisory lock;
// different identifiers proceed in parallel.
type LoginAttemptRepository struct {
	db *database.DB
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// WithIdentifierLock runs fn in a transaction holding the identifier's
// advisory lock. The lock is released on commit or rollback.
func (r *LoginAttemptRepository) WithIdentifierLock(ctx context.Context, identifier string, fn func(AttemptTx) error) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, identifier); err != nil {
			return fmt.Errorf("failed to acquire identifier lock: %w", err)
		}
		return fn(&pgAttemptTx{tx: tx})
	})
}

// PurgeFailuresBefore deletes failed attempts older than cutoff. Lockouts are
// history and are left alone.
func (r *LoginAttemptRepository) PurgeFailuresBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM failed_login_attempts WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge failed attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListLockouts returns the most recent lockouts for an identifier, newest first
func (r *LoginAttemptRepository) ListLockouts(ctx context.Context, identifier string, limit int) ([]*models.Lockout, error) {
	query := `
		SELECT id::text, identifier, locked_at, locked_until, reason, unlocked_at, unlocked_by
		FROM account_lockouts
		WHERE identifier = $1
		ORDER BY locked_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lockouts: %w", err)
	}
	defer rows.Close()

	lockouts := make([]*models.Lockout, 0)
	for rows.Next() {
		l, err := scanPgLockout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lockout: %w", err)
		}
		lockouts = append(lockouts, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lockout rows: %w", err)
	}

	return lockouts, nil
}

// HealthCheck pings the pool
func (r *LoginAttemptRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

type pgAttemptTx struct {
	tx pgx.Tx
}

func (t *pgAttemptTx) FindActiveLockout(ctx context.Context, identifier string, now time.Time) (*models.Lockout, error) {
	query := `
		SELECT id::text, identifier, locked_at, locked_until, reason, unlocked_at, unlocked_by
		FROM account_lockouts
		WHERE identifier = $1 AND locked_until > $2 AND unlocked_at IS NULL
		ORDER BY locked_until DESC
		LIMIT 1
	`

	l, err := scanPgLockout(t.tx.QueryRow(ctx, query, identifier, now))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (t *pgAttemptTx) CountRecentFailures(ctx context.Context, identifier string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM failed_login_attempts
		WHERE identifier = $1 AND occurred_at >= $2
	`

	var count int
	err := t.tx.QueryRow(ctx, query, identifier, since).Scan(&count)
	return count, err
}

func (t *pgAttemptTx) InsertFailure(ctx context.Context, attempt *models.FailedAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}

	query := `
		INSERT INTO failed_login_attempts (id, identifier, occurred_at, source_ip, client_agent)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := t.tx.Exec(ctx, query,
		attempt.ID,
		attempt.Identifier,
		attempt.OccurredAt,
		attempt.SourceIP,
		attempt.ClientAgent,
	)
	return database.MapPostgresError(err)
}

func (t *pgAttemptTx) ClearFailures(ctx context.Context, identifier string) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM failed_login_attempts WHERE identifier = $1`, identifier)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgAttemptTx) CreateLockout(ctx context.Context, lockout *models.Lockout) error {
	if lockout.ID == "" {
		lockout.ID = uuid.NewString()
	}

	query := `
		INSERT INTO account_lockouts (id, identifier, locked_at, locked_until, reason)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := t.tx.Exec(ctx, query,
		lockout.ID,
		lockout.Identifier,
		lockout.LockedAt,
		lockout.LockedUntil,
		lockout.Reason,
	)
	return database.MapPostgresError(err)
}

func (t *pgAttemptTx) MarkUnlocked(ctx context.Context, lockoutID string, at time.Time, by string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE account_lockouts SET unlocked_at = $2, unlocked_by = $3 WHERE id = $1 AND unlocked_at IS NULL`,
		lockoutID, at, by,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanPgLockout(row rowScanner) (*models.Lockout, error) {
	var l models.Lockout
	err := row.Scan(&l.ID, &l.Identifier, &l.LockedAt, &l.LockedUntil, &l.Reason, &l.UnlockedAt, &l.UnlockedBy)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	l.LockedAt = l.LockedAt.UTC()
	l.LockedUntil = l.LockedUntil.UTC()
	if l.UnlockedAt != nil {
		u := l.UnlockedAt.UTC()
		l.UnlockedAt = &u
	}
	return &l, nil
}
