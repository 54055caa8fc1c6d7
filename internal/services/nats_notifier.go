package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/nats-io/nats.go"
)

// Publisher is satisfied by *nats.Conn
type Publisher interface {
	Publish(subject string, data []byte) error
}

// AlertEvent is the message published for every security alert
type AlertEvent struct {
	ID          string                 `json:"id"`
	Kind        string                 `json:"kind"`
	Severity    string                 `json:"severity"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
	Timestamp   time.Time              `json:"timestamp"`
}

// NATSAlertNotifier publishes alerts to a NATS subject
type NATSAlertNotifier struct {
	pub     Publisher
	subject string
}

// ConnectNATSAlertNotifier dials url and returns the notifier with its connection
func ConnectNATSAlertNotifier(url, subject string) (*NATSAlertNotifier, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("loginguard"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNATSAlertNotifier(nc, subject), nc, nil
}

// NewNATSAlertNotifier wraps an existing publisher
func NewNATSAlertNotifier(pub Publisher, subject string) *NATSAlertNotifier {
	return &NATSAlertNotifier{pub: pub, subject: subject}
}

func (n *NATSAlertNotifier) Name() string { return "nats" }

// Notify publishes the alert as JSON. Publishing is fire-and-forget on the
// NATS side; ctx is honoured only before the publish.
func (n *NATSAlertNotifier) Notify(ctx context.Context, alert *models.SecurityAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(AlertEvent{
		ID:          alert.ID,
		Kind:        alert.Kind,
		Severity:    alert.Severity,
		Description: alert.Description,
		Metadata:    alert.Metadata,
		Timestamp:   alert.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode alert event: %w", err)
	}

	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish alert event: %w", err)
	}
	return nil
}
