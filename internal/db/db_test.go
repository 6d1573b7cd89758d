package db

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/servosphere/internal/movement"
	"github.com/banshee-data/servosphere/internal/summary"
	"github.com/banshee-data/servosphere/internal/testutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func derivedTable(t *testing.T) *movement.Table {
	t.Helper()
	raw := testutil.Raw(t, "trial-01",
		[]float64{1000, 1000, 0, 1000},
		[]float64{1, 0, 2, -1},
		[]float64{0, 1, 0, 0},
	)
	require.NoError(t, raw.Set("stimulus", testutil.Vals(1, 1, nil, 2)))
	c, err := movement.NewPipeline().Run(context.Background(), movement.Tables(raw))
	require.NoError(t, err)
	return c[0].Table
}

func TestMigrations(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Already at latest.
	require.NoError(t, db.MigrateUp())

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='summaries'`).Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestOpenDB_NoSchema(t *testing.T) {
	t.Parallel()

	db, err := OpenDB(filepath.Join(t.TempDir(), "bare.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateForce(2))
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestSaveAndLoadRecording(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	tbl := derivedTable(t)

	rec, err := db.SaveRecording(ctx, tbl, "data/trial-01.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 4, rec.Rows)

	got, err := db.LoadRecording(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, tbl.Name, got.Name)
	assert.Equal(t, tbl.Len(), got.Len())
	assert.Equal(t, tbl.Columns(), got.Columns())

	for _, name := range tbl.Columns() {
		want, err := tbl.Column(name)
		require.NoError(t, err)
		testutil.AssertColumn(t, got, name, want)
	}

	// The zero dT row has an infinite velocity, which survives storage.
	vel, err := got.Column(movement.ColVelocity)
	require.NoError(t, err)
	assert.True(t, math.IsInf(vel[2].Float, 1))
}

func TestLoadRecording_NaNBecomesMissing(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	tbl := testutil.NewTable(t, "nan",
		testutil.Column{Name: movement.ColTurnVelocity, Values: testutil.Vals(math.NaN(), 3)},
	)
	rec, err := db.SaveRecording(ctx, tbl, "")
	require.NoError(t, err)

	got, err := db.LoadRecording(ctx, rec.ID)
	require.NoError(t, err)
	testutil.AssertColumn(t, got, movement.ColTurnVelocity, testutil.Vals(nil, 3))
}

func TestLoadRecording_ColumnNamesWithCommas(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	tbl := testutil.NewTable(t, "quoted",
		testutil.Column{Name: movement.ColDT, Values: testutil.Vals(100, 100)},
		testutil.Column{Name: movement.ColVelocity, Values: testutil.Vals(math.Inf(1), 2)},
		testutil.Column{Name: "a,b", Values: testutil.Vals(1, nil)},
	)
	rec, err := db.SaveRecording(ctx, tbl, "")
	require.NoError(t, err)

	stored, err := db.GetRecording(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{movement.ColDT, movement.ColVelocity, "a,b"}, stored.Columns)

	got, err := db.LoadRecording(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, tbl.Columns(), got.Columns())
	testutil.AssertColumn(t, got, "a,b", testutil.Vals(1, nil))
	testutil.AssertColumn(t, got, movement.ColVelocity, testutil.Vals(math.Inf(1), 2))
}

func TestListAndDeleteRecordings(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	a, err := db.SaveRecording(ctx, testutil.Raw(t, "a", []float64{1}, []float64{1}, []float64{1}), "a.csv")
	require.NoError(t, err)
	b, err := db.SaveRecording(ctx, testutil.Raw(t, "b", []float64{1}, []float64{1}, []float64{1}), "b.csv")
	require.NoError(t, err)

	list, err := db.ListRecordings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, "b.csv", list[1].Source)
	assert.Equal(t, []string{movement.ColDT, movement.ColDX, movement.ColDY}, list[1].Columns)
	assert.False(t, list[0].CreatedAt.IsZero())

	require.NoError(t, db.DeleteRecording(ctx, a.ID))
	assert.ErrorIs(t, db.DeleteRecording(ctx, a.ID), ErrNotFound)

	_, err = db.LoadRecording(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM samples WHERE recording_id = ?`, a.ID).Scan(&n))
	assert.Zero(t, n, "samples cascade on delete")

	list, err = db.ListRecordings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestSummaries(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	tbl := derivedTable(t)

	rec, err := db.SaveRecording(ctx, tbl, "")
	require.NoError(t, err)

	s, err := summary.Summarize(tbl)
	require.NoError(t, err)
	require.NoError(t, db.SaveSummary(ctx, rec.ID, s))

	got, err := db.GetSummary(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Name, got.Name)
	assert.Equal(t, s.Rows, got.Rows)
	assert.InDelta(t, s.TotalDistance, got.TotalDistance, 1e-12)
	assert.InDelta(t, s.MeanVelocity, got.MeanVelocity, 1e-12)

	// Replacing keeps one row and NaN round-trips through NULL.
	s.MeanTurnVelocity = math.NaN()
	s.Rows = 99
	require.NoError(t, db.SaveSummary(ctx, rec.ID, s))
	got, err = db.GetSummary(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, got.Rows)
	assert.True(t, math.IsNaN(got.MeanTurnVelocity))

	_, err = db.GetSummary(ctx, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
