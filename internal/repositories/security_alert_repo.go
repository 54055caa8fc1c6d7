package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/google/uuid"
)

// CreateAlert appends a security alert
func (r *LoginAttemptRepository) CreateAlert(ctx context.Context, alert *models.SecurityAlert) error {
	prepareAlert(alert)

	metadata, err := marshalMetadata(alert.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO security_alerts (id, kind, severity, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
	`

	if _, err := r.db.Pool.Exec(ctx, query,
		alert.ID, alert.Kind, alert.Severity, alert.Description, metadata, alert.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create security alert: %w", err)
	}
	return nil
}

// ListAlerts returns security alerts, newest first
func (r *LoginAttemptRepository) ListAlerts(ctx context.Context, limit, offset int) ([]*models.SecurityAlert, error) {
	query := `
		SELECT id::text, kind, severity, description, metadata::text, created_at
		FROM security_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query security alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*models.SecurityAlert, 0)
	for rows.Next() {
		var (
			a   models.SecurityAlert
			raw string
		)
		if err := rows.Scan(&a.ID, &a.Kind, &a.Severity, &a.Description, &raw, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan security alert: %w", err)
		}
		if err := a.Metadata.Scan(raw); err != nil {
			return nil, fmt.Errorf("failed to decode alert metadata: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security alert rows: %w", err)
	}

	return alerts, nil
}

func prepareAlert(alert *models.SecurityAlert) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.Metadata == nil {
		alert.Metadata = models.AlertMetadata{}
	}
}

func marshalMetadata(m models.AlertMetadata) (string, error) {
	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return "", fmt.Errorf("failed to encode alert metadata: %w", err)
	}
	return string(b), nil
}
