package movement

import "fmt"

// Entry is one element of a Collection: either a Table or any other value
// that is carried through every transform unchanged.
type Entry struct {
	Table *Table
	Other any
}

// TableEntry wraps a table.
func TableEntry(t *Table) Entry { return Entry{Table: t} }

// OtherEntry wraps a non-table value.
func OtherEntry(v any) Entry { return Entry{Other: v} }

// IsTable reports whether the entry holds a table.
func (e Entry) IsTable() bool { return e.Table != nil }

// Collection is an ordered sequence of entries, typically one per trial.
type Collection []Entry

// Tables wraps each table as an entry.
func Tables(ts ...*Table) Collection {
	c := make(Collection, len(ts))
	for i, t := range ts {
		c[i] = TableEntry(t)
	}
	return c
}

// TableList returns the tables of the collection in order, skipping others.
func (c Collection) TableList() []*Table {
	out := make([]*Table, 0, len(c))
	for _, e := range c {
		if e.IsTable() {
			out = append(out, e.Table)
		}
	}
	return out
}

// Transform is a per-table derivation.
type Transform func(*Table) (*Table, error)

// Map applies fn to every table in c, in order. Non-table entries are
// copied to the same position. The first error aborts the map and is
// wrapped with the failing table's index and name.
func Map(c Collection, fn Transform) (Collection, error) {
	out := make(Collection, len(c))
	for i, e := range c {
		if !e.IsTable() {
			out[i] = e
			continue
		}
		t, err := fn(e.Table)
		if err != nil {
			return nil, tableError(i, e.Table, err)
		}
		out[i] = TableEntry(t)
	}
	return out, nil
}

func tableError(i int, t *Table, err error) error {
	return fmt.Errorf("table %d %q: %w", i, t.Name, err)
}
