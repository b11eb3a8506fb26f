package domain

import (
	"net/mail"
	"strings"
)

// =============================================================================
// Submission Payload
// =============================================================================

// EmailDetails carries the delivery instructions for a submission.
type EmailDetails struct {
	To            []string `json:"to"`
	ReplyTo       string   `json:"replyTo"`
	CustomMessage string   `json:"customMessage"`
}

// SiteInformation is the site-level section of a submission.
type SiteInformation struct {
	SiteAddress          string `json:"siteAddress"`
	SiteHistory          string `json:"siteHistory"`
	ExpectedConsignments int    `json:"expectedConsignments"`
}

// SamplingDetails groups the sampling and categorisation answers of a consignment.
type SamplingDetails struct {
	SamplesTaken                     string `json:"samplesTaken"`
	SampleMethod                     string `json:"sampleMethod"`
	OtherSampleMethod                string `json:"otherSampleMethod,omitempty"`
	SampleMethodAdditionalInfo       string `json:"sampleMethodAdditionalInfo"`
	SoilCategorization               string `json:"soilCategorization"`
	OtherSoilCategorization          string `json:"otherSoilCategorization,omitempty"`
	SoilCategorizationAdditionalInfo string `json:"soilCategorizationAdditionalInfo"`
}

// SubmittedConsignment is the flattened form of a ConsignmentDetail sent downstream.
type SubmittedConsignment struct {
	ConsignmentNumber    int             `json:"consignmentNumber"`
	MaterialDescription  string          `json:"materialDescription"`
	ExpectedDeliveryDate string          `json:"expectedDeliveryDate"`
	ExpectedDuration     string          `json:"expectedDuration"`
	ExpectedFrequency    string          `json:"expectedFrequency"`
	ExpectedVolume       string          `json:"expectedVolume"`
	SamplingDetails      SamplingDetails `json:"samplingDetails"`
	AnalyticalSummary    []AnalyticalRow `json:"analyticalSummary"`
}

// Submission is the transient payload posted to the delivery webhook.
// It is built at submit time and never stored.
type Submission struct {
	EmailDetails       EmailDetails           `json:"emailDetails"`
	SiteInformation    SiteInformation        `json:"siteInformation"`
	ConsignmentDetails []SubmittedConsignment `json:"consignmentDetails"`
	Attachments        []Attachment           `json:"attachments"`
	HTMLContent        string                 `json:"htmlContent"`
}

// NewSubmission projects a form snapshot, delivery details and generated HTML
// into a Submission. Only active consignments are included.
func NewSubmission(state FormState, details EmailDetails, html string) *Submission {
	active := state.ActiveConsignments()
	consignments := make([]SubmittedConsignment, 0, len(active))
	for i, c := range active {
		rows := make([]AnalyticalRow, len(c.AnalyticalRows))
		copy(rows, c.AnalyticalRows)
		consignments = append(consignments, SubmittedConsignment{
			ConsignmentNumber:    i + 1,
			MaterialDescription:  c.MaterialDescription,
			ExpectedDeliveryDate: c.ExpectedDeliveryDate,
			ExpectedDuration:     c.ExpectedDuration,
			ExpectedFrequency:    c.ExpectedFrequency,
			ExpectedVolume:       c.ExpectedVolume,
			SamplingDetails: SamplingDetails{
				SamplesTaken:                     c.SamplesTaken,
				SampleMethod:                     c.SampleMethod.String(),
				OtherSampleMethod:                c.OtherSampleMethod,
				SampleMethodAdditionalInfo:       c.SampleMethodAdditionalInfo,
				SoilCategorization:               c.SoilCategorization.String(),
				OtherSoilCategorization:          c.OtherSoilCategorization,
				SoilCategorizationAdditionalInfo: c.SoilCategorizationAdditionalInfo,
			},
			AnalyticalSummary: rows,
		})
	}

	attachments := make([]Attachment, len(state.Attachments))
	copy(attachments, state.Attachments)

	return &Submission{
		EmailDetails: details,
		SiteInformation: SiteInformation{
			SiteAddress:          state.SiteAddress,
			SiteHistory:          state.SiteHistory,
			ExpectedConsignments: state.ExpectedConsignments,
		},
		ConsignmentDetails: consignments,
		Attachments:        attachments,
		HTMLContent:        html,
	}
}

// =============================================================================
// Recipients
// =============================================================================

// NormalizeRecipients splits, validates and de-duplicates recipient entries.
// Entries may hold several addresses separated by commas, semicolons or
// whitespace. Blank, unparsable and duplicate (case-insensitive) addresses
// are dropped; order of first appearance is preserved.
func NormalizeRecipients(entries []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, entry := range entries {
		fields := strings.FieldsFunc(entry, func(r rune) bool {
			return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\r' || r == '\t'
		})
		for _, field := range fields {
			addr, ok := ParseAddress(field)
			if !ok {
				continue
			}
			key := strings.ToLower(addr)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, addr)
		}
	}
	return out
}

// ParseAddress returns the bare address in s, or false if s is not a
// single valid email address.
func ParseAddress(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	parsed, err := mail.ParseAddress(s)
	if err != nil {
		return "", false
	}
	return parsed.Address, true
}
