// Package form holds the server-side state of one information sheet and the
// editors that mutate it.
//
// A Store is the single source of truth for a sheet. Editors never mutate
// the store's data in place: they hold a local copy of one consignment and
// write the complete record back on every change.
package form

import (
	"strconv"
	"sync"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/metrics"
)

// Field names a top-level field of the form state.
type Field string

const (
	FieldSiteAddress          Field = "siteAddress"
	FieldSiteHistory          Field = "siteHistory"
	FieldExpectedConsignments Field = "expectedConsignments"
	FieldConsignmentDetails   Field = "consignmentDetails"
	FieldAttachments          Field = "attachments"
)

// Generator renders the email HTML for a form snapshot and plan image URL.
// An empty URL means no plan is available.
type Generator func(state domain.FormState, planImageURL string) string

// Store owns a FormState and caches the email HTML generated from it.
//
// Every mutation goes through mutate, which bumps the version and drops the
// cached HTML, so EmailHTML never returns output for an older state.
type Store struct {
	mu       sync.RWMutex
	state    domain.FormState
	version  uint64
	generate Generator

	cache htmlCache
}

type htmlCache struct {
	valid   bool
	version uint64
	planURL string
	html    string
}

// NewStore creates a store holding a fresh form state.
func NewStore(generate Generator) *Store {
	return &Store{
		state:    domain.NewFormState(),
		generate: generate,
	}
}

// Get returns a deep copy of the current state.
func (s *Store) Get() domain.FormState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Version returns a counter that increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set replaces one top-level field. The value type must match the field:
// string for site fields, int for the consignment count, []ConsignmentDetail
// and []Attachment for the collections.
func (s *Store) Set(field Field, value any) error {
	const op = "form.set"

	switch field {
	case FieldSiteAddress, FieldSiteHistory:
		v, ok := value.(string)
		if !ok {
			return domain.Invalid(op, string(field)+" must be text")
		}
		s.mutate(func(st *domain.FormState) {
			if field == FieldSiteAddress {
				st.SiteAddress = v
			} else {
				st.SiteHistory = v
			}
		})
	case FieldExpectedConsignments:
		v, ok := value.(int)
		if !ok {
			return domain.Invalid(op, "expected consignments must be a whole number")
		}
		s.mutate(func(st *domain.FormState) {
			st.ExpectedConsignments = domain.ClampConsignments(v)
		})
	case FieldConsignmentDetails:
		v, ok := value.([]domain.ConsignmentDetail)
		if !ok {
			return domain.Invalid(op, "consignment details have the wrong type")
		}
		details := make([]domain.ConsignmentDetail, len(v))
		for i, c := range v {
			details[i] = c.Clone()
		}
		s.mutate(func(st *domain.FormState) {
			st.ConsignmentDetails = details
		})
	case FieldAttachments:
		v, ok := value.([]domain.Attachment)
		if !ok {
			return domain.Invalid(op, "attachments have the wrong type")
		}
		attachments := make([]domain.Attachment, len(v))
		copy(attachments, v)
		s.mutate(func(st *domain.FormState) {
			st.Attachments = attachments
		})
	default:
		return domain.Invalid(op, "unknown field: "+string(field))
	}
	return nil
}

// SetConsignment replaces the complete record at index. The index must
// already exist; use Ensure to materialise new consignments.
func (s *Store) SetConsignment(index int, detail domain.ConsignmentDetail) error {
	const op = "form.set_consignment"

	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.state.ConsignmentDetails) {
		return domain.NotFound(op, "consignment", strconv.Itoa(index+1))
	}
	s.state.ConsignmentDetails[index] = detail.Clone()
	s.invalidateLocked()
	return nil
}

// Ensure guarantees a consignment exists at index, appending seed() for
// every missing index up to and including it. It returns the record at
// index and whether any record was created. Existing records are never
// reseeded, even when their row collection is empty.
func (s *Store) Ensure(index int, seed func() domain.ConsignmentDetail) (domain.ConsignmentDetail, bool, error) {
	const op = "form.ensure"

	if index < 0 {
		return domain.ConsignmentDetail{}, false, domain.Invalid(op, "consignment index must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := false
	for len(s.state.ConsignmentDetails) <= index {
		s.state.ConsignmentDetails = append(s.state.ConsignmentDetails, seed())
		created = true
	}
	if created {
		s.invalidateLocked()
	}
	return s.state.ConsignmentDetails[index].Clone(), created, nil
}

// EmailHTML returns the generated email HTML for the current state, reusing
// the cached document when neither the state nor the plan URL has changed.
func (s *Store) EmailHTML(planImageURL string) string {
	_, html := s.Snapshot(planImageURL)
	return html
}

// Snapshot returns a copy of the state together with its email HTML, taken
// atomically.
func (s *Store) Snapshot(planImageURL string) (domain.FormState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cache
	if !c.valid || c.version != s.version || c.planURL != planImageURL {
		html := ""
		if s.generate != nil {
			html = s.generate(s.state.Clone(), planImageURL)
			metrics.EmailHTMLGenerated.Inc()
		}
		s.cache = htmlCache{valid: true, version: s.version, planURL: planImageURL, html: html}
	}
	return s.state.Clone(), s.cache.html
}

// mutate applies fn under the write lock and invalidates derived output.
func (s *Store) mutate(fn func(st *domain.FormState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.invalidateLocked()
}

func (s *Store) invalidateLocked() {
	s.version++
	s.cache = htmlCache{}
}
