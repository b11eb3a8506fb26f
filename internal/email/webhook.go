package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/metrics"
)

// =============================================================================
// Webhook Deliverer
// =============================================================================

// WebhookDeliverer POSTs submissions as JSON to an external endpoint.
// Only HTTP 200 counts as accepted; the response body is ignored.
type WebhookDeliverer struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// WebhookConfig configures a WebhookDeliverer.
type WebhookConfig struct {
	URL     string        // Endpoint receiving the submission
	Timeout time.Duration // Zero uses the transport default
}

// NewWebhookDeliverer creates a webhook deliverer.
func NewWebhookDeliverer(cfg WebhookConfig, logger *slog.Logger) (*WebhookDeliverer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookDeliverer{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Deliver sends the submission in a single POST.
func (d *WebhookDeliverer) Deliver(ctx context.Context, sub *domain.Submission) error {
	const op = "webhook.deliver"

	body, err := json.Marshal(sub)
	if err != nil {
		return domain.Internal(err, op, "failed to encode submission")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return domain.Internal(err, op, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	metrics.ObserveWebhook(time.Since(start))
	if err != nil {
		d.logger.Error("webhook request failed",
			"recipients", len(sub.EmailDetails.To),
			"error", err,
		)
		return domain.Unavailable(err, op, "The email service could not be reached. Please try again.")
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		d.logger.Error("webhook rejected submission",
			"status", resp.StatusCode,
			"recipients", len(sub.EmailDetails.To),
		)
		return domain.Unavailable(
			fmt.Errorf("webhook returned status %d", resp.StatusCode),
			op,
			"The email service rejected the submission. Please try again.",
		)
	}

	d.logger.Info("submission delivered",
		"recipients", len(sub.EmailDetails.To),
		"consignments", len(sub.ConsignmentDetails),
		"attachments", len(sub.Attachments),
	)
	return nil
}

var _ Deliverer = (*WebhookDeliverer)(nil)
