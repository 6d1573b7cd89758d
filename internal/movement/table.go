package movement

import (
	"errors"
	"fmt"
	"math"
)

// Column names shared by the ingest, storage and report layers.
const (
	ColDT           = "dT"
	ColDX           = "dx"
	ColDY           = "dy"
	ColX            = "x"
	ColY            = "y"
	ColDistance     = "distance"
	ColBearing      = "bearing"
	ColTurnAngle    = "turn_angle"
	ColTurnVelocity = "turn_velocity"
	ColVelocity     = "velocity"
)

// MillisPerSecond converts dT (milliseconds) to seconds.
const MillisPerSecond = 1000.0

// ErrMissingColumn is matched by every MissingColumnError.
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError reports a required column absent from a table.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}

// Is reports whether target is ErrMissingColumn.
func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// Value is a single numeric cell. Valid is false for a missing value.
// NaN and ±Inf are valid floats, not missing.
type Value struct {
	Float float64
	Valid bool
}

// Missing is the zero Value.
var Missing = Value{}

// Of wraps f as a present value.
func Of(f float64) Value {
	return Value{Float: f, Valid: true}
}

// Finite reports whether v is present and neither NaN nor infinite.
func (v Value) Finite() bool {
	return v.Valid && !math.IsNaN(v.Float) && !math.IsInf(v.Float, 0)
}

func (v Value) String() string {
	if !v.Valid {
		return "NA"
	}
	return fmt.Sprintf("%g", v.Float)
}

// Table is an ordered set of equal-length columns. Row i of every column
// belongs to the same sample; rows are in chronological order.
//
// Column slices handed out by Column are shared with the table and must
// be treated as read-only. Derivations build new slices and attach them
// to a copy of the table, so the input table is never modified.
type Table struct {
	Name string

	rows    int
	order   []string
	columns map[string][]Value
}

// NewTable returns an empty table with a fixed row count.
func NewTable(name string, rows int) *Table {
	return &Table{
		Name:    name,
		rows:    rows,
		columns: make(map[string][]Value),
	}
}

// FromFloats builds a table from plain float columns, all present.
// Columns are added in the order given by names.
func FromFloats(name string, names []string, cols map[string][]float64) (*Table, error) {
	rows := -1
	for _, n := range names {
		c, ok := cols[n]
		if !ok {
			return nil, &MissingColumnError{Column: n}
		}
		if rows >= 0 && len(c) != rows {
			return nil, fmt.Errorf("column %q has %d rows, want %d", n, len(c), rows)
		}
		rows = len(c)
	}
	if rows < 0 {
		rows = 0
	}

	t := NewTable(name, rows)
	for _, n := range names {
		vals := make([]Value, rows)
		for i, f := range cols[n] {
			vals[i] = Of(f)
		}
		if err := t.Set(n, vals); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns the named column or a *MissingColumnError.
func (t *Table) Column(name string) ([]Value, error) {
	c, ok := t.columns[name]
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	return c, nil
}

// Require returns the named columns in order, failing on the first absent one.
func (t *Table) Require(names ...string) ([][]Value, error) {
	out := make([][]Value, len(names))
	for i, n := range names {
		c, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Set adds or replaces a column. The slice is stored as is.
func (t *Table) Set(name string, vals []Value) error {
	if len(vals) != t.rows {
		return fmt.Errorf("column %q has %d rows, want %d", name, len(vals), t.rows)
	}
	if _, ok := t.columns[name]; !ok {
		t.order = append(t.order, name)
	}
	t.columns[name] = vals
	return nil
}

// Clone returns a table sharing column data but with its own column index,
// so columns can be added or replaced without touching t.
func (t *Table) Clone() *Table {
	c := &Table{
		Name:    t.Name,
		rows:    t.rows,
		order:   make([]string, len(t.order)),
		columns: make(map[string][]Value, len(t.columns)),
	}
	copy(c.order, t.order)
	for k, v := range t.columns {
		c.columns[k] = v
	}
	return c
}

// Row returns row i as a column-name map.
func (t *Table) Row(i int) map[string]Value {
	r := make(map[string]Value, len(t.order))
	for _, n := range t.order {
		r[n] = t.columns[n][i]
	}
	return r
}

// Filter returns a deep copy containing only rows where keep returns true.
// Derivations never call this; it exists for cleaning before derivation.
func (t *Table) Filter(keep func(i int) bool) *Table {
	idx := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	out := NewTable(t.Name, len(idx))
	for _, n := range t.order {
		src := t.columns[n]
		dst := make([]Value, len(idx))
		for j, i := range idx {
			dst[j] = src[i]
		}
		out.order = append(out.order, n)
		out.columns[n] = dst
	}
	return out
}
