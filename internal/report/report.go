// Package report renders the information sheet email document.
//
// Generate is pure: it performs no network or disk I/O and returns
// byte-identical output for identical inputs. All user text is HTML escaped.
package report

import (
	"bytes"
	"context"

	"github.com/DukeRupert/soilsheet/internal/domain"
)

// Title is the heading of the generated document.
const Title = "Surplus Soil Information Sheet"

// NoPlanText is shown in place of the plan image when none was uploaded.
const NoPlanText = "No plan uploaded. Please draw a plan using the site plan drawing tool."

// NoAnalyticalDataText is shown for a consignment with no analytical rows.
const NoAnalyticalDataText = "No analytical data available for this consignment."

// Palette holds the colours used by the email stylesheet.
var Palette = struct {
	Text       string
	Heading    string
	Subheading string
	Accent     string
	Border     string
	HeaderFill string
}{
	Text:       "#333333",
	Heading:    "#2c3e50",
	Subheading: "#2980b9",
	Accent:     "#3498db",
	Border:     "#dddddd",
	HeaderFill: "#f2f2f2",
}

// Generate renders the email HTML for state. An empty planImageURL renders
// the no-plan placeholder. Only the active consignments are included.
func Generate(state domain.FormState, planImageURL string) string {
	var buf bytes.Buffer
	// Rendering into a bytes.Buffer cannot fail.
	_ = Document(state, planImageURL).Render(context.Background(), &buf)
	return buf.String()
}
