package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/a-h/templ"
)

// =============================================================================
// Document
// =============================================================================

// Document returns the email document as a templ component.
func Document(state domain.FormState, planImageURL string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}

		p.raw("<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
		p.text(Title)
		p.raw("</title>\n<style>\n")
		p.raw(stylesheet())
		p.raw("</style>\n</head>\n<body>\n")

		p.raw("<h1>")
		p.text(Title)
		p.raw("</h1>\n")

		siteSection(p, state)
		planSection(p, planImageURL)

		for i, c := range state.ActiveConsignments() {
			consignmentSection(p, i+1, c)
		}

		p.raw("</body>\n</html>\n")
		return p.err
	})
}

func stylesheet() string {
	return fmt.Sprintf(`body { font-family: Arial, sans-serif; line-height: 1.6; color: %s; }
h1 { color: %s; border-bottom: 2px solid %s; padding-bottom: 10px; }
h2 { color: %s; margin-top: 20px; }
table { border-collapse: collapse; width: 100%%; margin-top: 10px; }
th, td { border: 1px solid %s; padding: 8px; text-align: left; }
th { background-color: %s; }
.section { margin-bottom: 20px; }
`, Palette.Text, Palette.Heading, Palette.Accent, Palette.Subheading, Palette.Border, Palette.HeaderFill)
}

func siteSection(p *printer, state domain.FormState) {
	p.raw("<div class=\"section\">\n<h2>Site Information</h2>\n")
	p.field("Site Address", state.SiteAddress)
	p.field("Site History", state.SiteHistory)
	p.field("Expected Consignments", strconv.Itoa(state.ExpectedConsignments))
	p.raw("</div>\n")
}

func planSection(p *printer, planImageURL string) {
	p.raw("<div class=\"section\">\n<h2>Plan of Proposed Works</h2>\n")
	if planImageURL == "" {
		p.raw("<p>")
		p.text(NoPlanText)
		p.raw("</p>\n")
	} else {
		p.raw("<img src=\"")
		p.text(string(templ.URL(planImageURL)))
		p.raw("\" alt=\"Plan of Proposed Works\" style=\"max-width: 100%; height: auto;\">\n")
	}
	p.raw("</div>\n")
}

func consignmentSection(p *printer, number int, c domain.ConsignmentDetail) {
	p.raw("<div class=\"section\">\n<h2>")
	p.text(fmt.Sprintf("Consignment %d Details", number))
	p.raw("</h2>\n")

	p.field("Material Description", c.MaterialDescription)
	p.field("Expected Delivery Date", c.ExpectedDeliveryDate)
	p.field("Expected Duration", c.ExpectedDuration)
	p.field("Expected Frequency", c.ExpectedFrequency)
	p.field("Expected Volume", c.ExpectedVolume)

	p.raw("<h3>Sampling Information</h3>\n")
	p.field("Number of Samples Taken", c.SamplesTaken)
	p.field("Sample Method", enumLabel(c.SampleMethod.String(), c.SampleMethod.Label()))
	if c.ShowsOtherSampleMethod() {
		p.field("Other Sample Method", c.OtherSampleMethod)
	}
	p.field("Additional Sampling Information", c.SampleMethodAdditionalInfo)
	p.field("Soil Categorization", enumLabel(c.SoilCategorization.String(), c.SoilCategorization.Label()))
	if c.ShowsOtherSoilCategorization() {
		p.field("Other Soil Categorization", c.OtherSoilCategorization)
	}
	p.field("Additional Soil Categorization Information", c.SoilCategorizationAdditionalInfo)

	p.raw("<h3>Analytical Summary</h3>\n")
	analyticalTable(p, c.AnalyticalRows)

	p.raw("</div>\n")
}

func analyticalTable(p *printer, rows []domain.AnalyticalRow) {
	if len(rows) == 0 {
		p.raw("<p>")
		p.text(NoAnalyticalDataText)
		p.raw("</p>\n")
		return
	}

	p.raw("<table>\n<tr>")
	for _, h := range []string{"Contaminant", "Maximum (mg/kg)", "Minimum (mg/kg)", "Average (mg/kg)", "Leachable (mg/L)"} {
		p.raw("<th>")
		p.text(h)
		p.raw("</th>")
	}
	p.raw("</tr>\n")

	for _, row := range rows {
		p.raw("<tr>")
		for _, v := range []string{row.Contaminant, row.Maximum, row.Minimum, row.Average, row.Leachable} {
			p.raw("<td>")
			p.text(v)
			p.raw("</td>")
		}
		p.raw("</tr>\n")
	}
	p.raw("</table>\n")
}

// enumLabel shows the display label for a selected value and nothing when
// no value was chosen.
func enumLabel(value, label string) string {
	if value == "" {
		return ""
	}
	return label
}

// =============================================================================
// Printer
// =============================================================================

// printer writes markup and escaped text, keeping the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) field(label, value string) {
	p.raw("<p><strong>")
	p.text(label)
	p.raw(":</strong> ")
	p.text(value)
	p.raw("</p>\n")
}
