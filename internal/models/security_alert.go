package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Alert kinds
const (
	AlertKindAccountLocked   = "account_locked"
	AlertKindAccountUnlocked = "account_unlocked"
)

// Alert severities
const (
	AlertSeverityLow    = "low"
	AlertSeverityMedium = "medium"
	AlertSeverityHigh   = "high"
)

// SecurityAlert is an append-only audit record
type SecurityAlert struct {
	ID          string        `db:"id" json:"id"`
	Kind        string        `db:"kind" json:"kind"`
	Severity    string        `db:"severity" json:"severity"`
	Description string        `db:"description" json:"description"`
	Metadata    AlertMetadata `db:"metadata" json:"metadata"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// AlertMetadata holds additional context for an alert
type AlertMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB and TEXT columns
func (am *AlertMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AlertMetadata)
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*am = AlertMetadata(m)
	return nil
}

// Value implements driver.Valuer
func (am AlertMetadata) Value() (driver.Value, error) {
	if am == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]interface{}(am))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
