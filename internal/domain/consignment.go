// Package domain contains core business types and interfaces.
//
// This file defines the consignment model: one discrete lot of surplus soil
// described by a repeated section of the information sheet, together with
// its analytical summary rows.
package domain

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// =============================================================================
// Sample Method
// =============================================================================

// SampleMethod records how the samples for a consignment were taken.
type SampleMethod string

const (
	// SampleMethodInSitu indicates samples were taken in place.
	SampleMethodInSitu SampleMethod = "inSitu"

	// SampleMethodStockpiles indicates samples were taken from stockpiles.
	SampleMethodStockpiles SampleMethod = "stockpiles"

	// SampleMethodOther indicates a free-text method in OtherSampleMethod.
	SampleMethodOther SampleMethod = "other"
)

// SampleMethods lists the selectable methods in display order.
var SampleMethods = []SampleMethod{SampleMethodInSitu, SampleMethodStockpiles, SampleMethodOther}

// String returns the string representation of the method.
func (m SampleMethod) String() string {
	return string(m)
}

// IsValid returns true if the method is a recognized value.
func (m SampleMethod) IsValid() bool {
	switch m {
	case SampleMethodInSitu, SampleMethodStockpiles, SampleMethodOther:
		return true
	}
	return false
}

// Label returns the human-readable label for the method.
// Unknown values are returned as-is.
func (m SampleMethod) Label() string {
	switch m {
	case SampleMethodInSitu:
		return "In-situ"
	case SampleMethodStockpiles:
		return "Stockpiles"
	case SampleMethodOther:
		return "Other"
	}
	return string(m)
}

// =============================================================================
// Soil Categorization
// =============================================================================

// SoilCategorization records the statistic used to categorise the soil.
type SoilCategorization string

const (
	// SoilCategorizationHighest categorises by the highest reported concentration.
	SoilCategorizationHighest SoilCategorization = "highestConcentration"

	// SoilCategorizationUCL95 categorises by the 95% upper confidence limit average.
	SoilCategorizationUCL95 SoilCategorization = "95UCL"

	// SoilCategorizationOther indicates a free-text value in OtherSoilCategorization.
	SoilCategorizationOther SoilCategorization = "other"
)

// SoilCategorizations lists the selectable categorisations in display order.
var SoilCategorizations = []SoilCategorization{SoilCategorizationHighest, SoilCategorizationUCL95, SoilCategorizationOther}

// String returns the string representation of the categorisation.
func (c SoilCategorization) String() string {
	return string(c)
}

// IsValid returns true if the categorisation is a recognized value.
func (c SoilCategorization) IsValid() bool {
	switch c {
	case SoilCategorizationHighest, SoilCategorizationUCL95, SoilCategorizationOther:
		return true
	}
	return false
}

// Label returns the human-readable label for the categorisation.
func (c SoilCategorization) Label() string {
	switch c {
	case SoilCategorizationHighest:
		return "Highest concentration"
	case SoilCategorizationUCL95:
		return "95%UCL average"
	case SoilCategorizationOther:
		return "Other"
	}
	return string(c)
}

// =============================================================================
// Analytical Rows
// =============================================================================

// AnalyticalRow is one contaminant's reported concentration statistics.
// The numeric columns are free text exactly as entered.
type AnalyticalRow struct {
	ID          string `json:"id"`
	Contaminant string `json:"contaminant"`
	Maximum     string `json:"maximum"`
	Minimum     string `json:"minimum"`
	Average     string `json:"average"`
	Leachable   string `json:"leachable"`
}

// RowField names an editable value column of an AnalyticalRow.
type RowField string

const (
	RowFieldMaximum   RowField = "maximum"
	RowFieldMinimum   RowField = "minimum"
	RowFieldAverage   RowField = "average"
	RowFieldLeachable RowField = "leachable"
)

// IsValid returns true if the field is an editable row column.
func (f RowField) IsValid() bool {
	switch f {
	case RowFieldMaximum, RowFieldMinimum, RowFieldAverage, RowFieldLeachable:
		return true
	}
	return false
}

// With returns a copy of the row with the named field replaced.
// Unknown fields leave the row unchanged.
func (r AnalyticalRow) With(field RowField, value string) AnalyticalRow {
	switch field {
	case RowFieldMaximum:
		r.Maximum = value
	case RowFieldMinimum:
		r.Minimum = value
	case RowFieldAverage:
		r.Average = value
	case RowFieldLeachable:
		r.Leachable = value
	}
	return r
}

// FoldContaminant returns the case-folded form of a contaminant name used for
// uniqueness checks and suggestion matching.
func FoldContaminant(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameContaminant reports whether two contaminant names are equal ignoring case.
func SameContaminant(a, b string) bool {
	return FoldContaminant(a) == FoldContaminant(b)
}

// HasContaminant reports whether rows already contain the named contaminant.
func HasContaminant(rows []AnalyticalRow, name string) bool {
	folded := FoldContaminant(name)
	for _, row := range rows {
		if FoldContaminant(row.Contaminant) == folded {
			return true
		}
	}
	return false
}

// NewRowID returns a fresh unique row id.
func NewRowID() string {
	return uuid.NewString()
}

// =============================================================================
// Consignment Detail
// =============================================================================

// ConsignmentDetail is the complete record for one consignment.
// When SampleMethod or SoilCategorization is "other", the companion
// Other* field carries the free-text value.
type ConsignmentDetail struct {
	MaterialDescription  string `json:"materialDescription"`
	ExpectedDeliveryDate string `json:"expectedDeliveryDate"`
	ExpectedDuration     string `json:"expectedDuration"`
	ExpectedFrequency    string `json:"expectedFrequency"`
	ExpectedVolume       string `json:"expectedVolume"`

	SamplesTaken                     string             `json:"samplesTaken"`
	SampleMethod                     SampleMethod       `json:"sampleMethod"`
	OtherSampleMethod                string             `json:"otherSampleMethod,omitempty"`
	SampleMethodAdditionalInfo       string             `json:"sampleMethodAdditionalInfo"`
	SoilCategorization               SoilCategorization `json:"soilCategorization"`
	OtherSoilCategorization          string             `json:"otherSoilCategorization,omitempty"`
	SoilCategorizationAdditionalInfo string             `json:"soilCategorizationAdditionalInfo"`

	AnalyticalRows []AnalyticalRow `json:"analyticalRows"`
}

// NewConsignmentDetail returns an empty consignment whose analytical rows are
// seeded with one empty row per default contaminant, in order. This is the
// only place rows are seeded.
func NewConsignmentDetail(defaults []string, newID func() string) ConsignmentDetail {
	if newID == nil {
		newID = NewRowID
	}
	rows := make([]AnalyticalRow, 0, len(defaults))
	for _, name := range defaults {
		if name == "" || HasContaminant(rows, name) {
			continue
		}
		rows = append(rows, AnalyticalRow{ID: newID(), Contaminant: name})
	}
	return ConsignmentDetail{AnalyticalRows: rows}
}

// Clone returns a deep copy of the consignment.
func (c ConsignmentDetail) Clone() ConsignmentDetail {
	if c.AnalyticalRows != nil {
		rows := make([]AnalyticalRow, len(c.AnalyticalRows))
		copy(rows, c.AnalyticalRows)
		c.AnalyticalRows = rows
	}
	return c
}

// ShowsOtherSampleMethod reports whether the free-text sample method applies.
func (c ConsignmentDetail) ShowsOtherSampleMethod() bool {
	return c.SampleMethod == SampleMethodOther
}

// ShowsOtherSoilCategorization reports whether the free-text categorisation applies.
func (c ConsignmentDetail) ShowsOtherSoilCategorization() bool {
	return c.SoilCategorization == SoilCategorizationOther
}

// ConsignmentField names a scalar field of ConsignmentDetail.
type ConsignmentField string

const (
	FieldMaterialDescription              ConsignmentField = "materialDescription"
	FieldExpectedDeliveryDate             ConsignmentField = "expectedDeliveryDate"
	FieldExpectedDuration                 ConsignmentField = "expectedDuration"
	FieldExpectedFrequency                ConsignmentField = "expectedFrequency"
	FieldExpectedVolume                   ConsignmentField = "expectedVolume"
	FieldSamplesTaken                     ConsignmentField = "samplesTaken"
	FieldSampleMethod                     ConsignmentField = "sampleMethod"
	FieldOtherSampleMethod                ConsignmentField = "otherSampleMethod"
	FieldSampleMethodAdditionalInfo       ConsignmentField = "sampleMethodAdditionalInfo"
	FieldSoilCategorization               ConsignmentField = "soilCategorization"
	FieldOtherSoilCategorization          ConsignmentField = "otherSoilCategorization"
	FieldSoilCategorizationAdditionalInfo ConsignmentField = "soilCategorizationAdditionalInfo"
)

// With returns a copy of the consignment with the named field replaced.
// Enumerated fields reject unknown values with EINVALID.
func (c ConsignmentDetail) With(field ConsignmentField, value string) (ConsignmentDetail, error) {
	const op = "consignment.set"

	switch field {
	case FieldMaterialDescription:
		c.MaterialDescription = value
	case FieldExpectedDeliveryDate:
		c.ExpectedDeliveryDate = value
	case FieldExpectedDuration:
		c.ExpectedDuration = value
	case FieldExpectedFrequency:
		c.ExpectedFrequency = value
	case FieldExpectedVolume:
		c.ExpectedVolume = value
	case FieldSamplesTaken:
		c.SamplesTaken = value
	case FieldSampleMethod:
		m := SampleMethod(value)
		if value != "" && !m.IsValid() {
			return c, Invalid(op, "unknown sample method: "+value)
		}
		c.SampleMethod = m
	case FieldOtherSampleMethod:
		c.OtherSampleMethod = value
	case FieldSampleMethodAdditionalInfo:
		c.SampleMethodAdditionalInfo = value
	case FieldSoilCategorization:
		sc := SoilCategorization(value)
		if value != "" && !sc.IsValid() {
			return c, Invalid(op, "unknown soil categorization: "+value)
		}
		c.SoilCategorization = sc
	case FieldOtherSoilCategorization:
		c.OtherSoilCategorization = value
	case FieldSoilCategorizationAdditionalInfo:
		c.SoilCategorizationAdditionalInfo = value
	default:
		return c, Invalid(op, "unknown consignment field: "+string(field))
	}
	return c, nil
}

// =============================================================================
// Commit Policy
// =============================================================================

// CommitPolicy controls when an input's value is written to the form store.
type CommitPolicy string

const (
	// CommitOnBlur writes the value when the input loses focus.
	CommitOnBlur CommitPolicy = "blur"

	// CommitImmediate writes the value on every change.
	CommitImmediate CommitPolicy = "immediate"
)

// CommitPolicyFor returns the commit policy for a consignment field.
// Top-level description fields commit on blur; sampling and categorisation
// fields commit immediately.
func CommitPolicyFor(field ConsignmentField) CommitPolicy {
	switch field {
	case FieldMaterialDescription, FieldExpectedDeliveryDate, FieldExpectedDuration,
		FieldExpectedFrequency, FieldExpectedVolume:
		return CommitOnBlur
	}
	return CommitImmediate
}
