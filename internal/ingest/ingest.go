// Package ingest loads servosphere recordings into movement tables and
// writes derived tables back out.
//
// A recording is a CSV file with a header row. Every column must be
// numeric; empty cells, NA and NaN are read as missing. The dT, dx and dy
// columns are required.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/servosphere/internal/fsutil"
	"github.com/banshee-data/servosphere/internal/monitoring"
	"github.com/banshee-data/servosphere/internal/movement"
)

// RequiredColumns are the raw columns every recording must carry.
var RequiredColumns = []string{movement.ColDT, movement.ColDX, movement.ColDY}

// ParseError reports a cell that could not be read as a number.
type ParseError struct {
	Line   int
	Column string
	Value  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d column %q: invalid number %q", e.Line, e.Column, e.Value)
}

// ReadCSV loads one recording, naming the table after the file's base
// name without extension.
func ReadCSV(fsys fsutil.FileSystem, path string) (*movement.Table, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := Read(f, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadAll loads every path in order into a collection.
func ReadAll(fsys fsutil.FileSystem, paths []string) (movement.Collection, error) {
	c := make(movement.Collection, 0, len(paths))
	for _, p := range paths {
		t, err := ReadCSV(fsys, p)
		if err != nil {
			return nil, err
		}
		c = append(c, movement.TableEntry(t))
	}
	return c, nil
}

// Read parses CSV from r into a table called name.
func Read(r io.Reader, name string) (*movement.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty recording: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("header column %d is empty", i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		seen[h] = true
		names[i] = h
	}
	for _, req := range RequiredColumns {
		if !seen[req] {
			return nil, &movement.MissingColumnError{Column: req}
		}
	}

	cols := make([][]movement.Value, len(names))
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		line++
		for i, cell := range rec {
			v, err := parseCell(cell)
			if err != nil {
				return nil, &ParseError{Line: line, Column: names[i], Value: cell}
			}
			cols[i] = append(cols[i], v)
		}
	}

	t := movement.NewTable(name, line-1)
	for i, n := range names {
		if err := t.Set(n, cols[i]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func parseCell(s string) (movement.Value, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "NA", "NAN":
		return movement.Missing, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return movement.Missing, err
	}
	return movement.Of(f), nil
}

// Clean drops rows whose dT, dx or dy is missing or non-finite, and rows
// whose dT is not greater than minDT milliseconds. It is the only step
// allowed to change a table's row count and must run before derivation.
func Clean(t *movement.Table, minDT float64) (*movement.Table, error) {
	cols, err := t.Require(RequiredColumns...)
	if err != nil {
		return nil, err
	}
	dt, dx, dy := cols[0], cols[1], cols[2]
	out := t.Filter(func(i int) bool {
		return dt[i].Finite() && dx[i].Finite() && dy[i].Finite() && dt[i].Float > minDT
	})
	if dropped := t.Len() - out.Len(); dropped > 0 {
		monitoring.Logf("%s: dropped %d of %d rows while cleaning", t.Name, dropped, t.Len())
	}
	return out, nil
}

// CleanAll applies Clean to every table in c.
func CleanAll(c movement.Collection, minDT float64) (movement.Collection, error) {
	return movement.Map(c, func(t *movement.Table) (*movement.Table, error) {
		return Clean(t, minDT)
	})
}

// Write emits t as CSV with a header row. Missing cells are written as NA.
func Write(w io.Writer, t *movement.Table) error {
	cw := csv.NewWriter(w)
	names := t.Columns()
	if err := cw.Write(names); err != nil {
		return err
	}
	cols, err := t.Require(names...)
	if err != nil {
		return err
	}
	rec := make([]string, len(names))
	for i := 0; i < t.Len(); i++ {
		for j := range cols {
			rec[j] = formatCell(cols[j][i])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v movement.Value) string {
	if !v.Valid {
		return "NA"
	}
	return strconv.FormatFloat(v.Float, 'g', -1, 64)
}

// WriteCSV writes t to dir/<name>.csv.
func WriteCSV(fsys fsutil.FileSystem, dir string, t *movement.Table) (string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, t.Name+".csv")
	f, err := fsys.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, t); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
