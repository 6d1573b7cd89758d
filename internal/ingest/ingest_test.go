package ingest

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/servosphere/internal/fsutil"
	"github.com/banshee-data/servosphere/internal/movement"
	"github.com/banshee-data/servosphere/internal/testutil"
)

const sampleCSV = `stimulus,dT,dx,dy
1,1000,1,0
1,1000,0,1
2, 1000 ,-1,NA
`

func TestRead(t *testing.T) {
	t.Parallel()

	tbl, err := Read(strings.NewReader(sampleCSV), "trial-01")
	require.NoError(t, err)

	assert.Equal(t, "trial-01", tbl.Name)
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"stimulus", movement.ColDT, movement.ColDX, movement.ColDY}, tbl.Columns())
	testutil.AssertColumn(t, tbl, movement.ColDT, testutil.Vals(1000, 1000, 1000))
	testutil.AssertColumn(t, tbl, movement.ColDY, testutil.Vals(0, 1, nil))
	testutil.AssertColumn(t, tbl, "stimulus", testutil.Vals(1, 1, 2))
}

func TestRead_HeaderOnly(t *testing.T) {
	t.Parallel()

	tbl, err := Read(strings.NewReader("dT,dx,dy\n"), "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.True(t, tbl.Has(movement.ColDX))
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		check func(t *testing.T, err error)
	}{
		{
			name:  "empty input",
			input: "",
			check: func(t *testing.T, err error) { assert.ErrorContains(t, err, "no header") },
		},
		{
			name:  "missing dy",
			input: "dT,dx\n1,2\n",
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, movement.ErrMissingColumn) },
		},
		{
			name:  "duplicate column",
			input: "dT,dx,dy,dx\n",
			check: func(t *testing.T, err error) { assert.ErrorContains(t, err, "duplicate") },
		},
		{
			name:  "non-numeric cell",
			input: "dT,dx,dy\n1,2,3\n4,left,6\n",
			check: func(t *testing.T, err error) {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, 3, pe.Line)
				assert.Equal(t, movement.ColDX, pe.Column)
				assert.Equal(t, "left", pe.Value)
			},
		},
		{
			name:  "ragged row",
			input: "dT,dx,dy\n1,2\n",
			check: func(t *testing.T, err error) { assert.ErrorContains(t, err, "failed to read row") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Read(strings.NewReader(tt.input), "bad")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestReadAll(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	fs.Put("data/a.csv", []byte("dT,dx,dy\n10,1,1\n"))
	fs.Put("data/b.csv", []byte("dT,dx,dy\n10,1,1\n20,2,2\n"))

	c, err := ReadAll(fs, []string{"data/b.csv", "data/a.csv"})
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, "b", c[0].Table.Name)
	assert.Equal(t, 2, c[0].Table.Len())
	assert.Equal(t, "a", c[1].Table.Name)

	_, err = ReadAll(fs, []string{"data/missing.csv"})
	assert.ErrorContains(t, err, "failed to open recording")
}

func TestClean(t *testing.T) {
	t.Parallel()

	tbl := testutil.NewTable(t, "raw",
		testutil.Column{Name: movement.ColDT, Values: testutil.Vals(100, 0, nil, 100, 5, math.Inf(1))},
		testutil.Column{Name: movement.ColDX, Values: testutil.Vals(1, 2, 3, nil, 5, 6)},
		testutil.Column{Name: movement.ColDY, Values: testutil.Vals(1, 2, 3, 4, 5, 6)},
	)

	out, err := Clean(tbl, 0)
	require.NoError(t, err)
	testutil.AssertColumn(t, out, movement.ColDX, testutil.Vals(1, 5))

	out, err = Clean(tbl, 10)
	require.NoError(t, err)
	testutil.AssertColumn(t, out, movement.ColDX, testutil.Vals(1))

	assert.Equal(t, 6, tbl.Len())

	_, err = Clean(movement.NewTable("nothing", 0), 0)
	assert.ErrorIs(t, err, movement.ErrMissingColumn)
}

func TestCleanAll_PassThrough(t *testing.T) {
	t.Parallel()

	c := movement.Collection{
		movement.OtherEntry("header"),
		movement.TableEntry(testutil.Raw(t, "r", []float64{0, 10}, []float64{1, 1}, []float64{1, 1})),
	}
	out, err := CleanAll(c, 0)
	require.NoError(t, err)
	assert.Equal(t, "header", out[0].Other)
	assert.Equal(t, 1, out[1].Table.Len())
}

func TestWrite_RoundTrip(t *testing.T) {
	t.Parallel()

	tbl, err := Read(strings.NewReader(sampleCSV), "trial")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tbl))
	assert.Equal(t, "stimulus,dT,dx,dy\n1,1000,1,0\n1,1000,0,1\n2,1000,-1,NA\n", buf.String())

	again, err := Read(&buf, "trial")
	require.NoError(t, err)
	testutil.AssertColumn(t, again, movement.ColDY, testutil.Vals(0, 1, nil))
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	tbl := testutil.Raw(t, "trial-7", []float64{1.5}, []float64{-0.25}, []float64{1e-7})

	path, err := WriteCSV(fs, "out", tbl)
	require.NoError(t, err)

	data, ok := fs.Get(path)
	require.True(t, ok)
	assert.Equal(t, "dT,dx,dy\n1.5,-0.25,1e-07\n", string(data))
}
