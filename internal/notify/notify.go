// Package notify delivers invoice status changes to downstream alerting.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"reconciler/internal/logger"
	"reconciler/internal/model"
)

// Log writes status changes to the structured log.
type Log struct {
	log zerolog.Logger
}

func NewLog() *Log {
	return &Log{log: logger.WithComponent("notify")}
}

func (l *Log) InvoiceStatusChanged(_ context.Context, ev model.InvoiceEvent) error {
	l.log.Info().
		Str("invoice_id", ev.InvoiceID).
		Str("previous", string(ev.Previous)).
		Str("status", string(ev.Status)).
		Str("outstanding", ev.OutstandingBalance.StringFixed(model.MoneyPlaces)).
		Msg("invoice status changed")
	return nil
}

// Slack posts status changes to an incoming webhook.
type Slack struct {
	webhookURL string
	client     *http.Client
}

func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Slack) InvoiceStatusChanged(ctx context.Context, ev model.InvoiceEvent) error {
	msg := &slack.WebhookMessage{
		Text: Message(ev),
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

func Message(ev model.InvoiceEvent) string {
	return fmt.Sprintf("Invoice %s (%s): %s -> %s, outstanding %s",
		ev.InvoiceID,
		ev.ClientReference,
		ev.Previous,
		ev.Status,
		ev.OutstandingBalance.StringFixed(model.MoneyPlaces),
	)
}
