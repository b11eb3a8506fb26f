package email

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSubmission() *domain.Submission {
	return &domain.Submission{
		EmailDetails: domain.EmailDetails{
			To:            []string{"ops@example.com", "lab@example.com"},
			ReplyTo:       "me@example.com",
			CustomMessage: "<p>Please review</p>",
		},
		SiteInformation: domain.SiteInformation{SiteAddress: "12 Example Rd", ExpectedConsignments: 1},
		ConsignmentDetails: []domain.SubmittedConsignment{{
			ConsignmentNumber:   1,
			MaterialDescription: "Clean fill",
			AnalyticalSummary:   []domain.AnalyticalRow{{ID: "r1", Contaminant: "Arsenic", Maximum: "10"}},
		}},
		Attachments: []domain.Attachment{{Name: "lab.pdf", URL: "https://files/lab.pdf"}},
		HTMLContent: "<html>\n<body>\n<h1>Sheet</h1>\n</body>\n</html>\n",
	}
}

func TestNewWebhookDeliverer_RequiresURL(t *testing.T) {
	_, err := NewWebhookDeliverer(WebhookConfig{}, testLogger())
	assert.Error(t, err)
}

func TestWebhookDeliverer_Accepted(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, err := NewWebhookDeliverer(WebhookConfig{URL: srv.URL}, testLogger())
	require.NoError(t, err)
	require.NoError(t, d.Deliver(context.Background(), testSubmission()))

	require.Contains(t, got, "emailDetails")
	require.Contains(t, got, "siteInformation")
	require.Contains(t, got, "consignmentDetails")
	require.Contains(t, got, "attachments")
	assert.Equal(t, testSubmission().HTMLContent, got["htmlContent"])

	details := got["emailDetails"].(map[string]any)
	assert.Equal(t, "me@example.com", details["replyTo"])
	assert.Len(t, details["to"], 2)

	attachments := got["attachments"].([]any)
	assert.NotContains(t, attachments[0], "key", "storage keys stay internal")
}

func TestWebhookDeliverer_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusInternalServerError},
		{"created is not accepted", http.StatusCreated},
		{"bad request", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			d, err := NewWebhookDeliverer(WebhookConfig{URL: srv.URL}, testLogger())
			require.NoError(t, err)

			err = d.Deliver(context.Background(), testSubmission())
			require.Error(t, err)
			assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
		})
	}
}

func TestWebhookDeliverer_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d, err := NewWebhookDeliverer(WebhookConfig{URL: url}, testLogger())
	require.NoError(t, err)

	err = d.Deliver(context.Background(), testSubmission())
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestSMTPDeliverer_Deliver(t *testing.T) {
	d := NewSMTPDeliverer(SMTPConfig{Host: "localhost", Port: 1025}, testLogger())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	d.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, a, "no auth without credentials")
		return nil
	}

	require.NoError(t, d.Deliver(context.Background(), testSubmission()))

	assert.Equal(t, "localhost:1025", gotAddr)
	assert.Equal(t, DefaultFromEmail, gotFrom)
	assert.Equal(t, []string{"ops@example.com", "lab@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "To: ops@example.com, lab@example.com\r\n")
	assert.Contains(t, msg, "Reply-To: me@example.com\r\n")
	assert.Contains(t, msg, "Subject: Surplus Soil Information Sheet: 12 Example Rd\r\n")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "Please review")
	assert.Contains(t, msg, "Arsenic: max 10")
}

func TestSMTPDeliverer_SendFailure(t *testing.T) {
	d := NewSMTPDeliverer(SMTPConfig{Host: "localhost", Port: 1025}, testLogger())
	d.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := d.Deliver(context.Background(), testSubmission())
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

func TestWithMessage(t *testing.T) {
	doc := "<html>\n<body>\n<h1>Sheet</h1>\n</body>\n</html>\n"

	assert.Equal(t, doc, withMessage(doc, "  "))
	assert.Equal(t,
		"<html>\n<body>\n<div class=\"message\"><p>Hi</p></div>\n\n<h1>Sheet</h1>\n</body>\n</html>\n",
		withMessage(doc, "<p>Hi</p>"),
	)
	assert.Equal(t, "<div class=\"message\">Hi</div>\nplain", withMessage("plain", "Hi"))
}
