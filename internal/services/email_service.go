package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client the notifier uses
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlertNotifier mails security alerts to the security mailbox via AWS SES
type SESAlertNotifier struct {
	client      SESAPI
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewAWSSESAlertNotifier loads the default AWS config for region and builds a notifier
func NewAWSSESAlertNotifier(ctx context.Context, region, fromAddress, toAddress string, logger *slog.Logger) (*SESAlertNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESAlertNotifier(ses.NewFromConfig(cfg), fromAddress, toAddress, logger), nil
}

// NewSESAlertNotifier wraps an existing SES client
func NewSESAlertNotifier(client SESAPI, fromAddress, toAddress string, logger *slog.Logger) *SESAlertNotifier {
	return &SESAlertNotifier{
		client:      client,
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}
}

func (s *SESAlertNotifier) Name() string { return "ses" }

// Notify sends a plain-text alert summary
func (s *SESAlertNotifier) Notify(ctx context.Context, alert *models.SecurityAlert) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(fmt.Sprintf("[%s] Security alert: %s", strings.ToUpper(alert.Severity), alert.Kind)),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(alertEmailBody(alert)),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	s.logger.Info("security alert email sent",
		slog.String("kind", alert.Kind),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

func alertEmailBody(alert *models.SecurityAlert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n\n", alert.Description)
	fmt.Fprintf(&b, "Kind:     %s\n", alert.Kind)
	fmt.Fprintf(&b, "Severity: %s\n", alert.Severity)
	fmt.Fprintf(&b, "Time:     %s\n\n", alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))

	keys := make([]string, 0, len(alert.Metadata))
	for k := range alert.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, alert.Metadata[k])
	}

	b.WriteString("\nThis is an automated message from the login protection service.\n")
	return b.String()
}
