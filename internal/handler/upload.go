package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/form"
	"github.com/DukeRupert/soilsheet/internal/middleware"
	"github.com/DukeRupert/soilsheet/internal/service"
)

// maxAttachmentFiles bounds how many files one upload request may carry.
const maxAttachmentFiles = 10

// UploadHandler accepts the drawn site plan and supporting attachments.
type UploadHandler struct {
	renderer  *Renderer
	uploads   service.UploadService
	logger    *slog.Logger
	maxUpload int64
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(renderer *Renderer, uploads service.UploadService, logger *slog.Logger, maxUpload int64) *UploadHandler {
	return &UploadHandler{
		renderer:  renderer,
		uploads:   uploads,
		logger:    logger,
		maxUpload: maxUpload,
	}
}

// RegisterRoutes registers the upload routes. limit wraps the routes with
// the upload rate limiter.
func (h *UploadHandler) RegisterRoutes(mux *http.ServeMux, withSession, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/upload-plan", limit(withSession(http.HandlerFunc(h.UploadPlan))))
	mux.Handle("POST /attachments", limit(withSession(http.HandlerFunc(h.UploadAttachments))))
	mux.Handle("DELETE /attachments/{id}/{name}", withSession(http.HandlerFunc(h.RemoveAttachment)))
}

// =============================================================================
// POST /api/upload-plan - Site Plan
// =============================================================================

type uploadPlanRequest struct {
	Image string `json:"image"`
}

type uploadPlanResponse struct {
	URL string `json:"url"`
}

// UploadPlan stores the drawing tool's exported image and makes it the
// session's plan. The image replaced by this upload is deleted.
func (h *UploadHandler) UploadPlan(w http.ResponseWriter, r *http.Request) {
	const op = "upload.plan"
	s := middleware.GetSession(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxPlanDataURLSize+1024)

	var req uploadPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, r, h.logger, domain.TooLarge(op, "Plan image is too large"))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid request body"))
		return
	}
	if req.Image == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No image provided"))
		return
	}

	url, key, err := h.uploads.UploadPlan(r.Context(), req.Image)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if previous := s.SetPlan(url, key); previous != "" {
		if err := h.uploads.Delete(r.Context(), previous); err != nil {
			h.logger.Warn("failed to delete replaced plan", "key", previous, "error", err)
		}
	}

	h.logger.Info("plan uploaded", "session", s.ID, "key", key)
	writeJSON(w, http.StatusOK, uploadPlanResponse{URL: url})
}

// =============================================================================
// Attachments
// =============================================================================

// UploadAttachments stores the "files" parts of a multipart request and
// appends them to the form's attachments. Files that fail are reported in
// the re-rendered list while the rest are kept.
func (h *UploadHandler) UploadAttachments(w http.ResponseWriter, r *http.Request) {
	const op = "upload.attachments"
	s := middleware.GetSession(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload*maxAttachmentFiles)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ErrorResponse(w, r, h.logger, domain.TooLarge(op, "Upload is too large"))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) > maxAttachmentFiles {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Too many files in one upload"))
		return
	}

	uploaded, uploadErr := h.uploads.UploadAttachments(r.Context(), files)
	if len(uploaded) == 0 && uploadErr != nil && domain.ErrorCode(uploadErr) == domain.EINVALID {
		ErrorResponse(w, r, h.logger, uploadErr)
		return
	}

	var data AttachmentsData
	err := s.Do(func() error {
		attachments := append(s.Store.Get().Attachments, uploaded...)
		if err := s.Store.Set(form.FieldAttachments, attachments); err != nil {
			return err
		}
		data = AttachmentsData{Files: attachments, MaxBytes: h.maxUpload}
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	data.Errors = errorMessages(uploadErr)

	h.logger.Info("attachments uploaded", "session", s.ID, "count", len(uploaded), "failed", len(data.Errors))
	h.renderer.RenderPartial(w, "attachments", data)
}

// RemoveAttachment drops an attachment from the form and deletes the
// stored object.
func (h *UploadHandler) RemoveAttachment(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	key := "attachments/" + r.PathValue("id") + "/" + r.PathValue("name")

	var (
		data    AttachmentsData
		removed bool
	)
	err := s.Do(func() error {
		attachments := s.Store.Get().Attachments
		i := slices.IndexFunc(attachments, func(a domain.Attachment) bool { return a.Key == key })
		if i >= 0 {
			attachments = slices.Delete(attachments, i, i+1)
			if err := s.Store.Set(form.FieldAttachments, attachments); err != nil {
				return err
			}
			removed = true
		}
		data = AttachmentsData{Files: attachments, MaxBytes: h.maxUpload}
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if removed {
		if err := h.uploads.Delete(r.Context(), key); err != nil {
			h.logger.Warn("failed to delete attachment", "key", key, "error", err)
		}
	}
	h.renderer.RenderPartial(w, "attachments", data)
}

// errorMessages flattens a joined error into user-facing messages.
func errorMessages(err error) []string {
	if err == nil {
		return nil
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, domain.ErrorMessage(e))
	}
	return messages
}
