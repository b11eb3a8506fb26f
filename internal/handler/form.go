// Package handler contains HTTP handlers for the information sheet.
//
// This file implements the form page and the htmx endpoints that edit it.
// Every edit runs under the form session's edit lock and writes through the
// session's form store.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/DukeRupert/soilsheet/internal/csrf"
	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/form"
	"github.com/DukeRupert/soilsheet/internal/middleware"
	"github.com/DukeRupert/soilsheet/internal/report"
	"github.com/DukeRupert/soilsheet/internal/session"
)

// MaxConsignments bounds the consignment count accepted from the page.
const MaxConsignments = 50

// consignmentFields lists the editable scalar fields of a consignment.
var consignmentFields = []domain.ConsignmentField{
	domain.FieldMaterialDescription,
	domain.FieldExpectedDeliveryDate,
	domain.FieldExpectedDuration,
	domain.FieldExpectedFrequency,
	domain.FieldExpectedVolume,
	domain.FieldSamplesTaken,
	domain.FieldSampleMethod,
	domain.FieldOtherSampleMethod,
	domain.FieldSampleMethodAdditionalInfo,
	domain.FieldSoilCategorization,
	domain.FieldOtherSoilCategorization,
	domain.FieldSoilCategorizationAdditionalInfo,
}

var rowFields = []domain.RowField{
	domain.RowFieldMaximum,
	domain.RowFieldMinimum,
	domain.RowFieldAverage,
	domain.RowFieldLeachable,
}

// =============================================================================
// Handler
// =============================================================================

// FormHandler serves the information sheet page and its field edits.
type FormHandler struct {
	renderer      *Renderer
	sessions      *session.Manager
	logger        *slog.Logger
	secureCookies bool
	maxUpload     int64
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(renderer *Renderer, sessions *session.Manager, logger *slog.Logger, secureCookies bool, maxUpload int64) *FormHandler {
	return &FormHandler{
		renderer:      renderer,
		sessions:      sessions,
		logger:        logger,
		secureCookies: secureCookies,
		maxUpload:     maxUpload,
	}
}

// RegisterRoutes registers the form routes. withSession attaches the form
// session; every route here needs it.
func (h *FormHandler) RegisterRoutes(mux *http.ServeMux, withSession func(http.Handler) http.Handler) {
	mux.Handle("GET /{$}", withSession(http.HandlerFunc(h.Show)))
	mux.Handle("POST /site", withSession(http.HandlerFunc(h.UpdateSite)))
	mux.Handle("POST /consignments/count", withSession(http.HandlerFunc(h.UpdateCount)))
	mux.Handle("GET /consignments/{n}", withSession(http.HandlerFunc(h.ShowConsignment)))
	mux.Handle("POST /consignments/{n}/fields", withSession(http.HandlerFunc(h.UpdateConsignment)))
	mux.Handle("POST /consignments/{n}/rows", withSession(http.HandlerFunc(h.AddRow)))
	mux.Handle("POST /consignments/{n}/rows/{id}", withSession(http.HandlerFunc(h.UpdateRow)))
	mux.Handle("DELETE /consignments/{n}/rows/{id}", withSession(http.HandlerFunc(h.RemoveRow)))
	mux.Handle("GET /consignments/{n}/suggestions", withSession(http.HandlerFunc(h.Suggest)))
	mux.HandleFunc("POST /reset", h.Reset)
}

// =============================================================================
// GET / - Information Sheet
// =============================================================================

// Show renders the full information sheet. Consignments up to the expected
// count are materialised here, seeding each one the first time it appears.
func (h *FormHandler) Show(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())

	token, err := csrf.EnsureToken(w, r, h.secureCookies)
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, "form.show", "Failed to start the form"))
		return
	}

	var data FormPageData
	err = s.Do(func() error {
		state := s.Store.Get()
		consignments, err := h.consignments(s, state.ExpectedConsignments)
		if err != nil {
			return err
		}
		planURL, _ := s.Plan()

		data = FormPageData{
			Title:                report.Title,
			CSRFToken:            token,
			SiteAddress:          state.SiteAddress,
			SiteHistory:          state.SiteHistory,
			SitePolicy:           domain.SiteCommitPolicy(),
			ExpectedConsignments: state.ExpectedConsignments,
			Consignments:         consignments,
			Plan:                 PlanData{URL: planURL},
			Attachments:          AttachmentsData{Files: state.Attachments, MaxBytes: h.maxUpload},
			Notice:               newNoticeData(s.Pipeline),
		}
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.renderer.RenderHTTP(w, "form", data)
}

// consignments opens an editor for each active consignment.
func (h *FormHandler) consignments(s *session.Session, count int) (ConsignmentsData, error) {
	items := make([]ConsignmentData, 0, count)
	for i := 0; i < count; i++ {
		e, err := s.Editor(i)
		if err != nil {
			return ConsignmentsData{}, err
		}
		items = append(items, newConsignmentData(e, TabDescription))
	}
	return ConsignmentsData{Items: items}, nil
}

// =============================================================================
// POST /site - Site Fields
// =============================================================================

// UpdateSite commits the site address and/or site history.
func (h *FormHandler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("form.site", "Invalid form data"))
		return
	}

	err := s.Do(func() error {
		for _, field := range []form.Field{form.FieldSiteAddress, form.FieldSiteHistory} {
			if values, ok := r.PostForm[string(field)]; ok && len(values) > 0 {
				if err := s.Store.Set(field, values[0]); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// POST /consignments/count - Expected Consignments
// =============================================================================

// UpdateCount sets the expected consignment count and re-renders the
// consignment sections. Lowering the count keeps the hidden consignments.
func (h *FormHandler) UpdateCount(w http.ResponseWriter, r *http.Request) {
	const op = "form.count"
	s := middleware.GetSession(r.Context())

	n, err := strconv.Atoi(strings.TrimSpace(r.FormValue(string(form.FieldExpectedConsignments))))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Expected consignments must be a whole number"))
		return
	}
	n = min(domain.ClampConsignments(n), MaxConsignments)

	var data ConsignmentsData
	err = s.Do(func() error {
		if err := s.Store.Set(form.FieldExpectedConsignments, n); err != nil {
			return err
		}
		data, err = h.consignments(s, n)
		return err
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.renderer.RenderPartial(w, "consignments", data)
}

// =============================================================================
// Consignment Endpoints
// =============================================================================

// consignmentIndex resolves the {n} path value to an active consignment index.
func consignmentIndex(r *http.Request, s *session.Session) (int, error) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 || n > s.Store.Get().ExpectedConsignments {
		return 0, domain.NotFound("form.consignment", "consignment", r.PathValue("n"))
	}
	return n - 1, nil
}

// withEditor runs fn with the editor for the request's consignment under
// the session's edit lock.
func (h *FormHandler) withEditor(r *http.Request, fn func(e *form.Editor) error) error {
	s := middleware.GetSession(r.Context())
	return s.Do(func() error {
		index, err := consignmentIndex(r, s)
		if err != nil {
			return err
		}
		e, err := s.Editor(index)
		if err != nil {
			return err
		}
		return fn(e)
	})
}

// ShowConsignment renders one consignment section, switching to the tab
// named by the tab query parameter.
func (h *FormHandler) ShowConsignment(w http.ResponseWriter, r *http.Request) {
	var data ConsignmentData
	err := h.withEditor(r, func(e *form.Editor) error {
		data = newConsignmentData(e, r.URL.Query().Get("tab"))
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.renderer.RenderPartial(w, "consignment", data)
}

// UpdateConsignment commits the consignment fields present in the request.
// Changing an enumerated field re-renders the sampling panel so the
// companion "other" input appears or disappears.
func (h *FormHandler) UpdateConsignment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("form.consignment", "Invalid form data"))
		return
	}

	var (
		data        ConsignmentData
		enumChanged bool
	)
	err := h.withEditor(r, func(e *form.Editor) error {
		for _, field := range consignmentFields {
			values, ok := r.PostForm[string(field)]
			if !ok || len(values) == 0 {
				continue
			}
			if err := e.UpdateLocalState(field, values[0]); err != nil {
				return err
			}
			if field == domain.FieldSampleMethod || field == domain.FieldSoilCategorization {
				enumChanged = true
			}
		}
		data = newConsignmentData(e, TabSampling)
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !enumChanged {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.renderer.RenderPartial(w, "sampling", data)
}

// =============================================================================
// Analytical Rows
// =============================================================================

// AddRow adds the named contaminant and re-renders the analytical panel.
// Blank and duplicate names leave the rows unchanged.
func (h *FormHandler) AddRow(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("contaminant")

	var data AnalyticalData
	err := h.withEditor(r, func(e *form.Editor) error {
		added, err := e.Rows().AddRow(name)
		if err != nil {
			return err
		}
		if !added {
			h.logger.Debug("contaminant not added", "name", name, "consignment", e.Number())
		}
		data = newAnalyticalData(e, "")
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.renderer.RenderPartial(w, "analytical", data)
}

// UpdateRow commits the row value fields present in the request.
// An unknown row id is ignored.
func (h *FormHandler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("form.row", "Invalid form data"))
		return
	}
	id := r.PathValue("id")

	err := h.withEditor(r, func(e *form.Editor) error {
		for _, field := range rowFields {
			values, ok := r.PostForm[string(field)]
			if !ok || len(values) == 0 {
				continue
			}
			if _, err := e.Rows().UpdateRow(id, field, values[0]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveRow removes a row and re-renders the analytical panel.
func (h *FormHandler) RemoveRow(w http.ResponseWriter, r *http.Request) {
	var data AnalyticalData
	err := h.withEditor(r, func(e *form.Editor) error {
		if _, err := e.Rows().RemoveRow(r.PathValue("id")); err != nil {
			return err
		}
		data = newAnalyticalData(e, "")
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.renderer.RenderPartial(w, "analytical", data)
}

// Suggest renders catalog contaminants matching the query that are not
// already in the consignment.
func (h *FormHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("contaminant")

	var data SuggestionsData
	err := h.withEditor(r, func(e *form.Editor) error {
		data = SuggestionsData{Number: e.Number(), Suggestions: e.Rows().Suggest(query)}
		return nil
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	h.renderer.RenderPartial(w, "suggestions", data)
}

// =============================================================================
// POST /reset - Start Over
// =============================================================================

// Reset discards the form session and reloads the page with a blank sheet.
func (h *FormHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.sessions.Reset(w, r)
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
