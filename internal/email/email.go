// Package email delivers completed information sheets.
//
// Two Deliverer implementations exist:
// - WebhookDeliverer: POSTs the JSON submission to an external endpoint that
//   performs the actual email delivery (production)
// - SMTPDeliverer: sends the generated HTML directly over SMTP (development
//   with Mailhog)
package email

import (
	"context"
	"fmt"

	"github.com/DukeRupert/soilsheet/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Deliverer hands a submission to whatever sends the email.
//
// A nil error means the submission was accepted. Deliverers never retry.
type Deliverer interface {
	Deliver(ctx context.Context, sub *domain.Submission) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       []string // Recipient addresses
	ReplyTo  string   // Optional Reply-To address
	Subject  string   // Email subject line
	HTMLBody string   // HTML content of the email
	TextBody string   // Plain text fallback content
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Sender email address
	FromName string // Sender display name
}

const (
	// DefaultFromEmail is the default sender for delivered sheets.
	DefaultFromEmail = "forms@soilhub.nz"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Soil Hub Forms"
)

// Subject returns the subject line for a submission.
func Subject(sub *domain.Submission) string {
	if sub.SiteInformation.SiteAddress == "" {
		return "Surplus Soil Information Sheet"
	}
	return fmt.Sprintf("Surplus Soil Information Sheet: %s", sub.SiteInformation.SiteAddress)
}
