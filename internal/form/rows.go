package form

import (
	"strings"

	"github.com/DukeRupert/soilsheet/internal/catalog"
	"github.com/DukeRupert/soilsheet/internal/domain"
)

// RowEditor edits the analytical rows of one consignment. Contaminant names
// are unique within the collection, compared case-insensitively.
//
// Every successful change hands the complete collection to onChange.
type RowEditor struct {
	rows     []domain.AnalyticalRow
	catalog  *catalog.Catalog
	newID    func() string
	onChange func(rows []domain.AnalyticalRow) error
}

// NewRowEditor creates a row editor over a copy of rows.
func NewRowEditor(rows []domain.AnalyticalRow, cat *catalog.Catalog, newID func() string, onChange func([]domain.AnalyticalRow) error) *RowEditor {
	if newID == nil {
		newID = domain.NewRowID
	}
	return &RowEditor{
		rows:     cloneRows(rows),
		catalog:  cat,
		newID:    newID,
		onChange: onChange,
	}
}

// Rows returns a copy of the current rows in display order.
func (e *RowEditor) Rows() []domain.AnalyticalRow {
	return cloneRows(e.rows)
}

// AddRow appends a row for name with empty values. A blank name, or one
// already present in any casing, is a no-op and returns false.
func (e *RowEditor) AddRow(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || domain.HasContaminant(e.rows, name) {
		return false, nil
	}

	next := append(cloneRows(e.rows), domain.AnalyticalRow{ID: e.newID(), Contaminant: name})
	return true, e.commit(next)
}

// UpdateRow replaces one value column of the row with the given id.
// An unknown id is a no-op and returns false.
func (e *RowEditor) UpdateRow(id string, field domain.RowField, value string) (bool, error) {
	const op = "rows.update"

	if !field.IsValid() {
		return false, domain.Invalid(op, "unknown row field: "+string(field))
	}

	i := e.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := cloneRows(e.rows)
	next[i] = next[i].With(field, value)
	return true, e.commit(next)
}

// RemoveRow deletes the row with the given id, preserving the order of the
// rest. An unknown id is a no-op and returns false.
func (e *RowEditor) RemoveRow(id string) (bool, error) {
	i := e.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := make([]domain.AnalyticalRow, 0, len(e.rows)-1)
	next = append(next, e.rows[:i]...)
	next = append(next, e.rows[i+1:]...)
	return true, e.commit(next)
}

// Suggest returns catalog contaminants matching query that are not already
// present in the rows.
func (e *RowEditor) Suggest(query string) []string {
	if e.catalog == nil {
		return []string{}
	}
	return e.catalog.Suggest(query, func(name string) bool {
		return domain.HasContaminant(e.rows, name)
	})
}

func (e *RowEditor) indexOf(id string) int {
	for i, row := range e.rows {
		if row.ID == id {
			return i
		}
	}
	return -1
}

func (e *RowEditor) commit(next []domain.AnalyticalRow) error {
	if e.onChange != nil {
		if err := e.onChange(cloneRows(next)); err != nil {
			return err
		}
	}
	e.rows = next
	return nil
}

func cloneRows(rows []domain.AnalyticalRow) []domain.AnalyticalRow {
	out := make([]domain.AnalyticalRow, len(rows))
	copy(out, rows)
	return out
}
