package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	want := []string{"Arsenic", "Cadmium", "Copper", "Chromium", "Mercury", "Nickel", "Zinc", "Asbestos P/A"}
	if diff := cmp.Diff(want, c.Defaults()); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, c.All(), 30)
	assert.Equal(t, "Barium", c.All()[8])
	assert.Equal(t, "PCBs", c.All()[29])
}

func TestParse_DropsBlankAndDuplicates(t *testing.T) {
	c, err := Parse([]byte("defaults: [Zinc, ' ', zinc]\nadditional: [ZINC, Lead]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Zinc"}, c.Defaults())
	assert.Equal(t, []string{"Zinc", "Lead"}, c.All())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("defaults: [unterminated"))
	assert.Error(t, err)

	_, err = Parse([]byte("defaults: []\n"))
	assert.Error(t, err)
}

func TestSuggest(t *testing.T) {
	c := New([]string{"Arsenic", "Zinc", "Asbestos P/A"}, []string{"Friable Asbestos", "Non-friable Asbestos", "Benzene"})

	tests := []struct {
		name    string
		query   string
		exclude func(string) bool
		want    []string
	}{
		{"blank query", "   ", nil, []string{}},
		{"substring in catalog order", "asb", nil, []string{"Asbestos P/A", "Friable Asbestos", "Non-friable Asbestos"}},
		{"case-insensitive", "ZIN", nil, []string{"Zinc"}},
		{"excludes present names", "asb", func(n string) bool { return n == "Asbestos P/A" }, []string{"Friable Asbestos", "Non-friable Asbestos"}},
		{"no match", "lead", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Suggest(tt.query, tt.exclude)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Suggest(%q) mismatch (-want +got):\n%s", tt.query, diff)
			}
		})
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	c := New([]string{"Zinc"}, nil)
	c.Defaults()[0] = "Lead"
	c.All()[0] = "Lead"

	assert.Equal(t, []string{"Zinc"}, c.Defaults())
	assert.Equal(t, []string{"Zinc"}, c.All())
}
