// Package catalog provides the reference list of contaminants offered in the
// analytical summary of each consignment.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed contaminants.yaml
var contaminantsYAML []byte

// Catalog is an ordered, duplicate-free list of contaminant names. The first
// len(Defaults()) names are the defaults seeded into new consignments.
type Catalog struct {
	defaults []string
	all      []string
}

type catalogFile struct {
	Defaults   []string `yaml:"defaults"`
	Additional []string `yaml:"additional"`
}

// Parse builds a Catalog from YAML with "defaults" and "additional" lists.
// Blank and duplicate (case-insensitive) names are dropped.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{}
	seen := make(map[string]bool)
	add := func(name string) bool {
		name = strings.TrimSpace(name)
		key := domain.FoldContaminant(name)
		if name == "" || seen[key] {
			return false
		}
		seen[key] = true
		c.all = append(c.all, name)
		return true
	}

	for _, name := range f.Defaults {
		if add(name) {
			c.defaults = append(c.defaults, strings.TrimSpace(name))
		}
	}
	for _, name := range f.Additional {
		add(name)
	}

	if len(c.all) == 0 {
		return nil, fmt.Errorf("parse catalog: no contaminants defined")
	}
	return c, nil
}

// New builds a Catalog directly from name lists.
func New(defaults, additional []string) *Catalog {
	c := &Catalog{}
	seen := make(map[string]bool)
	for i, list := range [][]string{defaults, additional} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			key := domain.FoldContaminant(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			c.all = append(c.all, name)
			if i == 0 {
				c.defaults = append(c.defaults, name)
			}
		}
	}
	return c
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded contaminant catalog.
// It panics if the embedded YAML is malformed.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(contaminantsYAML)
		if err != nil {
			panic("catalog: " + err.Error())
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Defaults returns the contaminants seeded into a new consignment.
func (c *Catalog) Defaults() []string {
	out := make([]string, len(c.defaults))
	copy(out, c.defaults)
	return out
}

// All returns every contaminant in catalog order.
func (c *Catalog) All() []string {
	out := make([]string, len(c.all))
	copy(out, c.all)
	return out
}

// Suggest returns catalog entries containing query (case-insensitive),
// excluding names for which exclude returns true, in catalog order.
// A blank query yields no suggestions.
func (c *Catalog) Suggest(query string, exclude func(name string) bool) []string {
	q := domain.FoldContaminant(query)
	if q == "" {
		return []string{}
	}

	out := []string{}
	for _, name := range c.all {
		if !strings.Contains(domain.FoldContaminant(name), q) {
			continue
		}
		if exclude != nil && exclude(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}
