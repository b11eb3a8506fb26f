package handler

import (
	"encoding/json"
	"fmt"
	"html/template"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/soilsheet/internal/csrf"
	"github.com/DukeRupert/soilsheet/internal/domain"
)

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// cn merges Tailwind class lists; later classes win conflicts.
		"cn": func(classes ...string) string {
			return twmerge.Merge(classes...)
		},
		"title": func(v any) string {
			// Casers are stateful; one per call.
			return cases.Title(language.English).String(fmt.Sprint(v))
		},

		// JSON encoding for attribute values such as hx-vals and hx-headers
		"json": func(v any) string {
			b, err := json.Marshal(v)
			if err != nil {
				return "{}"
			}
			return string(b)
		},
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			dict := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil
				}
				dict[key] = values[i+1]
			}
			return dict
		},

		"formatBytes": formatBytes,

		"csrfHeaders": func(token string) string {
			b, _ := json.Marshal(map[string]string{csrf.HeaderName: token})
			return string(b)
		},

		// hxTrigger maps a commit policy onto the htmx trigger that applies it.
		"hxTrigger": func(policy domain.CommitPolicy) string {
			if policy == domain.CommitImmediate {
				return "input changed"
			}
			return "change"
		},
		"consignmentTrigger": func(field string) string {
			if domain.CommitPolicyFor(domain.ConsignmentField(field)) == domain.CommitImmediate {
				return "input changed"
			}
			return "change"
		},
	}
}

// formatBytes renders a byte count for the attachment list.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
