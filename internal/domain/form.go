package domain

// =============================================================================
// Form State
// =============================================================================

// Attachment describes an uploaded supporting file.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	URL  string `json:"url"`

	// Key is the storage key of the uploaded object; never sent downstream.
	Key string `json:"-"`
}

// FormState is the whole information sheet: site-level fields plus one
// ConsignmentDetail per consignment, indexed positionally.
//
// ConsignmentDetails may be longer than ExpectedConsignments after the count
// is lowered; entries past the count are retained but not active.
type FormState struct {
	SiteAddress          string              `json:"siteAddress"`
	SiteHistory          string              `json:"siteHistory"`
	ExpectedConsignments int                 `json:"expectedConsignments"`
	ConsignmentDetails   []ConsignmentDetail `json:"consignmentDetails"`
	Attachments          []Attachment        `json:"attachments"`
}

// MinConsignments is the lowest allowed expected consignment count.
const MinConsignments = 1

// NewFormState returns the initial state of an information sheet.
func NewFormState() FormState {
	return FormState{
		ExpectedConsignments: MinConsignments,
		ConsignmentDetails:   []ConsignmentDetail{},
		Attachments:          []Attachment{},
	}
}

// Clone returns a deep copy of the form state.
func (s FormState) Clone() FormState {
	out := s
	out.ConsignmentDetails = make([]ConsignmentDetail, len(s.ConsignmentDetails))
	for i, c := range s.ConsignmentDetails {
		out.ConsignmentDetails[i] = c.Clone()
	}
	out.Attachments = make([]Attachment, len(s.Attachments))
	copy(out.Attachments, s.Attachments)
	return out
}

// Consignment returns the consignment at index, or an empty ConsignmentDetail
// when the index is out of range.
func (s FormState) Consignment(index int) ConsignmentDetail {
	if index < 0 || index >= len(s.ConsignmentDetails) {
		return ConsignmentDetail{}
	}
	return s.ConsignmentDetails[index].Clone()
}

// ActiveConsignments returns the consignments that fall within
// ExpectedConsignments, in order.
func (s FormState) ActiveConsignments() []ConsignmentDetail {
	n := s.ExpectedConsignments
	if n > len(s.ConsignmentDetails) {
		n = len(s.ConsignmentDetails)
	}
	if n < 0 {
		n = 0
	}
	return s.ConsignmentDetails[:n]
}

// ClampConsignments normalises a requested consignment count.
func ClampConsignments(n int) int {
	if n < MinConsignments {
		return MinConsignments
	}
	return n
}

// SiteCommitPolicy returns the commit policy for the site-level text fields.
func SiteCommitPolicy() CommitPolicy {
	return CommitOnBlur
}
