package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net/smtp"
	"strings"

	"github.com/DukeRupert/soilsheet/internal/domain"
)

// =============================================================================
// SMTP Deliverer
// =============================================================================

// SMTPDeliverer sends the generated sheet straight to the recipients via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Any standard SMTP server with PLAIN auth
type SMTPDeliverer struct {
	config SMTPConfig
	logger *slog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPDeliverer creates an SMTP deliverer.
func NewSMTPDeliverer(config SMTPConfig, logger *slog.Logger) *SMTPDeliverer {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPDeliverer{
		config: config,
		logger: logger,
		send:   smtp.SendMail,
	}
}

// Deliver sends one message addressed to every recipient.
func (s *SMTPDeliverer) Deliver(ctx context.Context, sub *domain.Submission) error {
	const op = "smtp.deliver"

	if err := ctx.Err(); err != nil {
		return domain.Unavailable(err, op, "Submission was cancelled.")
	}

	email := Email{
		To:       sub.EmailDetails.To,
		ReplyTo:  sub.EmailDetails.ReplyTo,
		Subject:  Subject(sub),
		HTMLBody: withMessage(sub.HTMLContent, sub.EmailDetails.CustomMessage),
		TextBody: textBody(sub),
	}

	msg, err := s.buildMessage(email)
	if err != nil {
		return domain.Internal(err, op, "failed to build email")
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Create auth if credentials are provided (not needed for Mailhog)
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.send(addr, auth, s.config.From, email.To, msg); err != nil {
		s.logger.Error("failed to send email",
			"recipients", len(email.To),
			"subject", email.Subject,
			"error", err,
		)
		return domain.Unavailable(err, op, "The email could not be sent. Please try again.")
	}

	s.logger.Info("email sent",
		"recipients", len(email.To),
		"subject", email.Subject,
	)
	return nil
}

// buildMessage constructs the raw multipart/alternative message.
func (s *SMTPDeliverer) buildMessage(email Email) ([]byte, error) {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ", ")))
	if email.ReplyTo != "" {
		buf.WriteString(fmt.Sprintf("Reply-To: %s\r\n", email.ReplyTo))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")

	boundary := "===============SOILSHEET_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", email.TextBody},
		{"text/html; charset=utf-8", email.HTMLBody},
	}
	for _, part := range parts {
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString(fmt.Sprintf("Content-Type: %s\r\n", part.contentType))
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
		buf.WriteString("\r\n")

		qp := quotedprintable.NewWriter(&buf)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("\r\n")
	}

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return buf.Bytes(), nil
}

// withMessage places the sender's message at the top of the document body.
// The message is already sanitised HTML.
func withMessage(doc, message string) string {
	if strings.TrimSpace(message) == "" {
		return doc
	}
	block := "<div class=\"message\">" + message + "</div>\n"
	if i := strings.Index(doc, "<body>"); i >= 0 {
		at := i + len("<body>")
		return doc[:at] + "\n" + block + doc[at:]
	}
	return block + doc
}

func textBody(sub *domain.Submission) string {
	var b strings.Builder
	b.WriteString("Surplus Soil Information Sheet\n\n")
	fmt.Fprintf(&b, "Site Address: %s\n", sub.SiteInformation.SiteAddress)
	fmt.Fprintf(&b, "Site History: %s\n", sub.SiteInformation.SiteHistory)
	fmt.Fprintf(&b, "Expected Consignments: %d\n", sub.SiteInformation.ExpectedConsignments)
	for _, c := range sub.ConsignmentDetails {
		fmt.Fprintf(&b, "\nConsignment %d: %s\n", c.ConsignmentNumber, c.MaterialDescription)
		for _, row := range c.AnalyticalSummary {
			fmt.Fprintf(&b, "  %s: max %s, min %s, avg %s, leachable %s\n",
				row.Contaminant, row.Maximum, row.Minimum, row.Average, row.Leachable)
		}
	}
	if len(sub.Attachments) > 0 {
		b.WriteString("\nAttachments:\n")
		for _, a := range sub.Attachments {
			fmt.Fprintf(&b, "  %s: %s\n", a.Name, a.URL)
		}
	}
	b.WriteString("\nView this email in an HTML-capable client for the full sheet.\n")
	return b.String()
}

var _ Deliverer = (*SMTPDeliverer)(nil)
