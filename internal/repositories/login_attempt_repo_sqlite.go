package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/database"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/google/uuid"
)

// SQLiteLoginAttemptRepository is the embedded attempt store. The underlying
// handle has a single connection, so every transaction (and therefore every
// identifier) is serialized.
type SQLiteLoginAttemptRepository struct {
	db *database.SQLiteDB
}

// NewSQLiteLoginAttemptRepository creates a new SQLiteLoginAttemptRepository
func NewSQLiteLoginAttemptRepository(db *database.SQLiteDB) *SQLiteLoginAttemptRepository {
	return &SQLiteLoginAttemptRepository{db: db}
}

func (r *SQLiteLoginAttemptRepository) WithIdentifierLock(ctx context.Context, identifier string, fn func(AttemptTx) error) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(&sqliteAttemptTx{tx: tx})
	})
}

func (r *SQLiteLoginAttemptRepository) PurgeFailuresBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.DB.ExecContext(ctx, `DELETE FROM failed_login_attempts WHERE occurred_at < ?`, toNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge failed attempts: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteLoginAttemptRepository) ListLockouts(ctx context.Context, identifier string, limit int) ([]*models.Lockout, error) {
	query := `
		SELECT id, identifier, locked_at, locked_until, reason, unlocked_at, unlocked_by
		FROM account_lockouts
		WHERE identifier = ?
		ORDER BY locked_at DESC
		LIMIT ?
	`

	rows, err := r.db.DB.QueryContext(ctx, query, identifier, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query lockouts: %w", err)
	}
	defer rows.Close()

	lockouts := make([]*models.Lockout, 0)
	for rows.Next() {
		l, err := scanSQLiteLockout(rows)
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

func (r *SQLiteLoginAttemptRepository) CreateAlert(ctx context.Context, alert *models.SecurityAlert) error {
	prepareAlert(alert)

	metadata, err := marshalMetadata(alert.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.DB.ExecContext(ctx,
		`INSERT INTO security_alerts (id, kind, severity, description, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.Kind, alert.Severity, alert.Description, metadata, toNanos(alert.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create security alert: %w", err)
	}
	return nil
}

func (r *SQLiteLoginAttemptRepository) ListAlerts(ctx context.Context, limit, offset int) ([]*models.SecurityAlert, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT id, kind, severity, description, metadata, created_at FROM security_alerts ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query security alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.SecurityAlert, 0)
	for rows.Next() {
		var (
			a       models.SecurityAlert
			raw     string
			created int64
		)
		if err := rows.Scan(&a.ID, &a.Kind, &a.Severity, &a.Description, &raw, &created); err != nil {
			return nil, fmt.Errorf("failed to scan security alert: %w", err)
		}
		if err := a.Metadata.Scan(raw); err != nil {
			return nil, fmt.Errorf("failed to decode alert metadata: %w", err)
		}
		a.CreatedAt = fromNanos(created)
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security alert rows: %w", err)
	}

	return alerts, nil
}

func (r *SQLiteLoginAttemptRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

type sqliteAttemptTx struct {
	tx *sql.Tx
}

func (t *sqliteAttemptTx) FindActiveLockout(ctx context.Context, identifier string, now time.Time) (*models.Lockout, error) {
	query := `
		SELECT id, identifier, locked_at, locked_until, reason, unlocked_at, unlocked_by
		FROM account_lockouts
		WHERE identifier = ? AND locked_until > ? AND unlocked_at IS NULL
		ORDER BY locked_until DESC
		LIMIT 1
	`

	l, err := scanSQLiteLockout(t.tx.QueryRowContext(ctx, query, identifier, toNanos(now)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (t *sqliteAttemptTx) CountRecentFailures(ctx context.Context, identifier string, since time.Time) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM failed_login_attempts WHERE identifier = ? AND occurred_at >= ?`,
		identifier, toNanos(since),
	).Scan(&count)
	return count, err
}

func (t *sqliteAttemptTx) InsertFailure(ctx context.Context, attempt *models.FailedAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO failed_login_attempts (id, identifier, occurred_at, source_ip, client_agent) VALUES (?, ?, ?, ?, ?)`,
		attempt.ID, attempt.Identifier, toNanos(attempt.OccurredAt), attempt.SourceIP, attempt.ClientAgent,
	)
	return err
}

func (t *sqliteAttemptTx) ClearFailures(ctx context.Context, identifier string) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM failed_login_attempts WHERE identifier = ?`, identifier)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqliteAttemptTx) CreateLockout(ctx context.Context, lockout *models.Lockout) error {
	if lockout.ID == "" {
		lockout.ID = uuid.NewString()
	}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO account_lockouts (id, identifier, locked_at, locked_until, reason) VALUES (?, ?, ?, ?, ?)`,
		lockout.ID, lockout.Identifier, toNanos(lockout.LockedAt), toNanos(lockout.LockedUntil), lockout.Reason,
	)
	return err
}

func (t *sqliteAttemptTx) MarkUnlocked(ctx context.Context, lockoutID string, at time.Time, by string) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE account_lockouts SET unlocked_at = ?, unlocked_by = ? WHERE id = ? AND unlocked_at IS NULL`,
		toNanos(at), by, lockoutID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanSQLiteLockout(row rowScanner) (*models.Lockout, error) {
	var (
		l                   models.Lockout
		lockedAt, lockedTil int64
		unlockedAt          sql.NullInt64
		unlockedBy          sql.NullString
	)

	if err := row.Scan(&l.ID, &l.Identifier, &lockedAt, &lockedTil, &l.Reason, &unlockedAt, &unlockedBy); err != nil {
		return nil, err
	}

	l.LockedAt = fromNanos(lockedAt)
	l.LockedUntil = fromNanos(lockedTil)
	if unlockedAt.Valid {
		t := fromNanos(unlockedAt.Int64)
		l.UnlockedAt = &t
	}
	if unlockedBy.Valid {
		by := unlockedBy.String
		l.UnlockedBy = &by
	}
	return &l, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
