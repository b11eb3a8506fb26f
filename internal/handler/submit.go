package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/middleware"
	"github.com/DukeRupert/soilsheet/internal/submission"
)

// previewCSP lets the generated email render its inline styles and remote
// plan image while running no script.
const previewCSP = "default-src 'none'; style-src 'unsafe-inline'; img-src * data:; frame-ancestors 'none'"

// SubmitHandler sends the information sheet and reports the outcome.
type SubmitHandler struct {
	renderer *Renderer
	logger   *slog.Logger
}

// NewSubmitHandler creates a new SubmitHandler.
func NewSubmitHandler(renderer *Renderer, logger *slog.Logger) *SubmitHandler {
	return &SubmitHandler{renderer: renderer, logger: logger}
}

// RegisterRoutes registers the submission routes. limit wraps the send
// route with the submit rate limiter.
func (h *SubmitHandler) RegisterRoutes(mux *http.ServeMux, withSession, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /submit", limit(withSession(http.HandlerFunc(h.Submit))))
	mux.Handle("GET /notice", withSession(http.HandlerFunc(h.Notice)))
	mux.Handle("POST /notice/dismiss", withSession(http.HandlerFunc(h.Dismiss)))
	mux.Handle("GET /preview", withSession(http.HandlerFunc(h.Preview)))
}

// Submit runs the submission pipeline with the request's recipients,
// reply-to address and message. Rejected submissions leave the pipeline
// untouched and answer with an error notice; delivery failures render the
// pipeline's own error notice.
func (h *SubmitHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("submit", "Invalid form data"))
		return
	}

	planURL, _ := s.Plan()
	req := submission.Request{
		Recipients:    r.PostForm["recipients"],
		ReplyTo:       r.PostForm.Get("replyTo"),
		CustomMessage: r.PostForm.Get("customMessage"),
		PlanImageURL:  planURL,
	}

	// Delivery outlives the request so closing the tab does not abort a send.
	err := s.Pipeline.Submit(context.WithoutCancel(r.Context()), s.Store, req)
	switch domain.ErrorCode(err) {
	case domain.EINVALID, domain.ECONFLICT:
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err != nil {
		h.logger.Warn("submission not delivered", "session", s.ID, "error", err)
	}

	h.renderer.RenderPartial(w, "notice", newNoticeData(s.Pipeline))
}

// Notice renders the current submission notice. The success notice polls
// this to clear itself.
func (h *SubmitHandler) Notice(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	h.renderer.RenderPartial(w, "notice", newNoticeData(s.Pipeline))
}

// Dismiss clears the current notice.
func (h *SubmitHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	s.Pipeline.Dismiss()
	h.renderer.RenderPartial(w, "notice", newNoticeData(s.Pipeline))
}

// Preview serves the email HTML exactly as it would be sent.
func (h *SubmitHandler) Preview(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	planURL, _ := s.Plan()

	w.Header().Set("Content-Security-Policy", previewCSP)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(s.Store.EmailHTML(planURL)))
}
