package form

import (
	"github.com/DukeRupert/soilsheet/internal/catalog"
	"github.com/DukeRupert/soilsheet/internal/domain"
)

// Editor edits one consignment. It keeps a local copy of the record and
// writes the whole record back to the store after every change.
type Editor struct {
	store   *Store
	index   int
	catalog *catalog.Catalog
	newID   func() string

	local domain.ConsignmentDetail
	rows  *RowEditor
}

// OpenEditor opens the consignment at index. If the store has no record at
// that index yet, one is created and seeded with the catalog defaults.
// Records that already exist are used as they are.
func OpenEditor(store *Store, index int, cat *catalog.Catalog, newID func() string) (*Editor, error) {
	if newID == nil {
		newID = domain.NewRowID
	}
	if cat == nil {
		cat = catalog.Default()
	}

	detail, _, err := store.Ensure(index, func() domain.ConsignmentDetail {
		return domain.NewConsignmentDetail(cat.Defaults(), newID)
	})
	if err != nil {
		return nil, err
	}

	e := &Editor{
		store:   store,
		index:   index,
		catalog: cat,
		newID:   newID,
		local:   detail,
	}
	e.rows = NewRowEditor(detail.AnalyticalRows, cat, newID, e.setRows)
	return e, nil
}

// Index returns the zero-based consignment index.
func (e *Editor) Index() int { return e.index }

// Number returns the one-based consignment number shown to the user.
func (e *Editor) Number() int { return e.index + 1 }

// Detail returns a copy of the editor's local record.
func (e *Editor) Detail() domain.ConsignmentDetail {
	return e.local.Clone()
}

// Rows returns the analytical row editor for this consignment.
func (e *Editor) Rows() *RowEditor { return e.rows }

// UpdateLocalState sets one field on the local record and writes the
// complete record to the store.
func (e *Editor) UpdateLocalState(field domain.ConsignmentField, value string) error {
	next, err := e.local.With(field, value)
	if err != nil {
		return err
	}
	if err := e.store.SetConsignment(e.index, next); err != nil {
		return err
	}
	e.local = next
	return nil
}

func (e *Editor) setRows(rows []domain.AnalyticalRow) error {
	next := e.local.Clone()
	next.AnalyticalRows = rows
	if err := e.store.SetConsignment(e.index, next); err != nil {
		return err
	}
	e.local = next
	return nil
}
