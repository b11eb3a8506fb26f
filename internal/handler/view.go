package handler

import (
	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/form"
	"github.com/DukeRupert/soilsheet/internal/submission"
)

// =============================================================================
// Template Data
// =============================================================================

// Consignment tabs. They group fields for display only.
const (
	TabDescription = "description"
	TabSampling    = "sampling"
	TabAnalytical  = "analytical"
)

// Tabs lists the consignment tabs in display order.
var Tabs = []TabView{
	{ID: TabDescription, Label: "Description"},
	{ID: TabSampling, Label: "Sampling"},
	{ID: TabAnalytical, Label: "Analytical"},
}

// TabView is one consignment tab button.
type TabView struct {
	ID     string
	Label  string
	Active bool
}

// Option is one radio choice.
type Option struct {
	Value    string
	Label    string
	Selected bool
}

// FormPageData is everything the information sheet page renders.
type FormPageData struct {
	Title                string
	CSRFToken            string
	SiteAddress          string
	SiteHistory          string
	SitePolicy           domain.CommitPolicy
	ExpectedConsignments int
	Consignments         ConsignmentsData
	Plan                 PlanData
	Attachments          AttachmentsData
	Notice               NoticeData
}

// ConsignmentsData is the repeated consignment area.
type ConsignmentsData struct {
	Items []ConsignmentData
}

// ConsignmentData renders one consignment section.
type ConsignmentData struct {
	Number              int
	Tab                 string
	Tabs                []TabView
	Detail              domain.ConsignmentDetail
	SampleMethods       []Option
	SoilCategorizations []Option
	Analytical          AnalyticalData
}

// AnalyticalData renders a consignment's analytical summary table and the
// add-contaminant box.
type AnalyticalData struct {
	Number      int
	Rows        []domain.AnalyticalRow
	Suggestions []string
	Query       string
}

// SuggestionsData renders the add-contaminant suggestion list.
type SuggestionsData struct {
	Number      int
	Suggestions []string
}

// PlanData renders the site plan panel.
type PlanData struct {
	URL string
}

// AttachmentsData renders the uploaded file list.
type AttachmentsData struct {
	Files    []domain.Attachment
	Errors   []string
	MaxBytes int64
}

// NoticeData renders the submission notice area.
type NoticeData struct {
	Kind        string
	Message     string
	AutoDismiss bool
	Submitting  bool
}

// =============================================================================
// Builders
// =============================================================================

func newConsignmentData(e *form.Editor, tab string) ConsignmentData {
	detail := e.Detail()
	if !validTab(tab) {
		tab = TabDescription
	}

	tabs := make([]TabView, len(Tabs))
	copy(tabs, Tabs)
	for i := range tabs {
		tabs[i].Active = tabs[i].ID == tab
	}

	methods := make([]Option, 0, len(domain.SampleMethods))
	for _, m := range domain.SampleMethods {
		methods = append(methods, Option{Value: m.String(), Label: m.Label(), Selected: m == detail.SampleMethod})
	}
	categorizations := make([]Option, 0, len(domain.SoilCategorizations))
	for _, c := range domain.SoilCategorizations {
		categorizations = append(categorizations, Option{Value: c.String(), Label: c.Label(), Selected: c == detail.SoilCategorization})
	}

	return ConsignmentData{
		Number:              e.Number(),
		Tab:                 tab,
		Tabs:                tabs,
		Detail:              detail,
		SampleMethods:       methods,
		SoilCategorizations: categorizations,
		Analytical:          newAnalyticalData(e, ""),
	}
}

func newAnalyticalData(e *form.Editor, query string) AnalyticalData {
	rows := e.Rows()
	data := AnalyticalData{
		Number: e.Number(),
		Rows:   rows.Rows(),
		Query:  query,
	}
	if query != "" {
		data.Suggestions = rows.Suggest(query)
	}
	return data
}

func validTab(tab string) bool {
	switch tab {
	case TabDescription, TabSampling, TabAnalytical:
		return true
	}
	return false
}

func newNoticeData(p *submission.Pipeline) NoticeData {
	data := NoticeData{Submitting: p.State() == submission.StateSubmitting}
	if n := p.Notice(); n != nil {
		data.Kind = string(n.Kind)
		data.Message = n.Message
		data.AutoDismiss = n.AutoDismiss > 0
	}
	return data
}
