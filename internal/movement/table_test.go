package movement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/servosphere/internal/movement"
	"github.com/banshee-data/servosphere/internal/testutil"
)

func TestFromFloats(t *testing.T) {
	t.Parallel()

	t.Run("builds columns in order", func(t *testing.T) {
		t.Parallel()
		tbl, err := movement.FromFloats("t", []string{"b", "a"}, map[string][]float64{
			"a": {1, 2},
			"b": {3, 4},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, tbl.Columns())
		assert.Equal(t, 2, tbl.Len())
		testutil.AssertColumn(t, tbl, "a", testutil.Vals(1, 2))
	})

	t.Run("rejects ragged columns", func(t *testing.T) {
		t.Parallel()
		_, err := movement.FromFloats("t", []string{"a", "b"}, map[string][]float64{
			"a": {1, 2},
			"b": {3},
		})
		assert.Error(t, err)
	})

	t.Run("rejects unknown column", func(t *testing.T) {
		t.Parallel()
		_, err := movement.FromFloats("t", []string{"a"}, map[string][]float64{})
		assert.ErrorIs(t, err, movement.ErrMissingColumn)
	})
}

func TestTable_Set(t *testing.T) {
	t.Parallel()

	tbl := movement.NewTable("t", 2)
	require.NoError(t, tbl.Set("a", testutil.Vals(1, 2)))
	require.NoError(t, tbl.Set("b", testutil.Vals(3, nil)))
	assert.Error(t, tbl.Set("c", testutil.Vals(1)))

	require.NoError(t, tbl.Set("a", testutil.Vals(5, 6)))
	assert.Equal(t, []string{"a", "b"}, tbl.Columns())
	testutil.AssertColumn(t, tbl, "a", testutil.Vals(5, 6))

	assert.False(t, tbl.Has("missing"))

	row := tbl.Row(1)
	assert.Equal(t, map[string]movement.Value{"a": movement.Of(6), "b": movement.Missing}, row)
}

func TestTable_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	orig := testutil.NewTable(t, "t", testutil.Column{Name: "a", Values: testutil.Vals(1)})
	c := orig.Clone()
	require.NoError(t, c.Set("b", testutil.Vals(2)))
	require.NoError(t, c.Set("a", testutil.Vals(9)))

	assert.Equal(t, []string{"a"}, orig.Columns())
	assert.Equal(t, []string{"a", "b"}, c.Columns())
	testutil.AssertColumn(t, orig, "a", testutil.Vals(1))
}

func TestTable_Filter(t *testing.T) {
	t.Parallel()

	tbl := testutil.NewTable(t, "t",
		testutil.Column{Name: "a", Values: testutil.Vals(1, 2, 3, 4)},
		testutil.Column{Name: "b", Values: testutil.Vals(nil, 20, 30, 40)},
	)
	even := tbl.Filter(func(i int) bool { return i%2 == 1 })

	assert.Equal(t, 2, even.Len())
	assert.Equal(t, "t", even.Name)
	testutil.AssertColumn(t, even, "a", testutil.Vals(2, 4))
	testutil.AssertColumn(t, even, "b", testutil.Vals(20, 40))
	assert.Equal(t, 4, tbl.Len())
}

func TestValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "NA", movement.Missing.String())
	assert.Equal(t, "1.5", movement.Of(1.5).String())
	assert.True(t, movement.Of(2).Finite())
	assert.False(t, movement.Missing.Finite())
}

func TestCollection_TableList(t *testing.T) {
	t.Parallel()

	a := movement.NewTable("a", 0)
	b := movement.NewTable("b", 0)
	c := movement.Collection{movement.TableEntry(a), movement.OtherEntry("x"), movement.TableEntry(b)}
	assert.Equal(t, []*movement.Table{a, b}, c.TableList())
}
