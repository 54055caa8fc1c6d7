package logger

import (
	"context"
	"log/slog"
	"time"
)

// SecurityEvent is a lockout-related event destined for the audit log stream
type SecurityEvent struct {
	EventType   string
	Identifier  string
	IPAddress   string
	UserAgent   string
	Severity    string
	LockedUntil time.Time
	Actor       string
	Metadata    map[string]string
}

// SecurityLogger writes security events as structured slog records
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger,
	}
}

// Log emits the event. High-severity events are logged at warn level.
func (sl *SecurityLogger) Log(ctx context.Context, event SecurityEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_type", event.EventType),
		IdentifierAttr(event.Identifier),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.Severity != "" {
		attrs = append(attrs, slog.String("severity", event.Severity))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if !event.LockedUntil.IsZero() {
		attrs = append(attrs, slog.String("locked_until", event.LockedUntil.UTC().Format(time.RFC3339)))
	}
	if event.Actor != "" {
		attrs = append(attrs, slog.String("actor", event.Actor))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if event.Severity == "high" {
		level = slog.LevelWarn
	}
	sl.logger.LogAttrs(ctx, level, "audit", attrs...)
}
