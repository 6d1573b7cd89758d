// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the table builders and column assertions used
// by the movement, ingest, summary, storage and report tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/servosphere/internal/movement"
)

// Column is a named column for NewTable.
type Column struct {
	Name   string
	Values []movement.Value
}

// Vals builds a column from float64 or int cells; nil marks a missing cell.
func Vals(cells ...any) []movement.Value {
	out := make([]movement.Value, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case nil:
			out[i] = movement.Missing
		case float64:
			out[i] = movement.Of(v)
		case int:
			out[i] = movement.Of(float64(v))
		default:
			panic(fmt.Sprintf("testutil.Vals: unsupported cell %T", c))
		}
	}
	return out
}

// NewTable builds a table from columns, failing the test on length mismatch.
func NewTable(t *testing.T, name string, cols ...Column) *movement.Table {
	t.Helper()
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0].Values)
	}
	tbl := movement.NewTable(name, rows)
	for _, c := range cols {
		if err := tbl.Set(c.Name, c.Values); err != nil {
			t.Fatalf("building table %q: %v", name, err)
		}
	}
	return tbl
}

// Raw builds a recording table with only the dT, dx and dy columns.
func Raw(t *testing.T, name string, dt, dx, dy []float64) *movement.Table {
	t.Helper()
	tbl, err := movement.FromFloats(name,
		[]string{movement.ColDT, movement.ColDX, movement.ColDY},
		map[string][]float64{movement.ColDT: dt, movement.ColDX: dx, movement.ColDY: dy},
	)
	if err != nil {
		t.Fatalf("building table %q: %v", name, err)
	}
	return tbl
}

// valueOpts compares floats to 1e-9 and treats NaN as equal to NaN.
var valueOpts = cmp.Options{
	cmpopts.EquateApprox(0, 1e-9),
	cmpopts.EquateNaNs(),
}

// AssertColumn checks a column's cells against want.
func AssertColumn(t *testing.T, tbl *movement.Table, name string, want []movement.Value) {
	t.Helper()
	got, err := tbl.Column(name)
	if err != nil {
		t.Fatalf("column %q: %v", name, err)
	}
	if diff := cmp.Diff(want, got, valueOpts); diff != "" {
		t.Errorf("column %q mismatch (-want +got):\n%s", name, diff)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
