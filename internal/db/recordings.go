package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/servosphere/internal/movement"
	"github.com/banshee-data/servosphere/internal/summary"
)

// ErrNotFound is returned when a recording does not exist.
var ErrNotFound = errors.New("recording not found")

// sampleColumns maps table columns to their dedicated samples columns.
// Any other table column is stored in sample_extras.
var sampleColumns = []struct {
	table string
	sql   string
}{
	{movement.ColDT, "dt_ms"},
	{movement.ColDX, "dx"},
	{movement.ColDY, "dy"},
	{movement.ColX, "x"},
	{movement.ColY, "y"},
	{movement.ColDistance, "distance"},
	{movement.ColBearing, "bearing"},
	{movement.ColTurnAngle, "turn_angle"},
	{movement.ColTurnVelocity, "turn_velocity"},
	{movement.ColVelocity, "velocity"},
}

// Recording is the stored metadata of one table.
type Recording struct {
	ID        string    `json:"recording_id"`
	Name      string    `json:"name"`
	Source    string    `json:"source_path"`
	Rows      int       `json:"row_count"`
	Columns   []string  `json:"columns"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveRecording stores t and all of its columns in one transaction under a
// new recording ID. SQLite has no NaN, so NaN cells come back as missing.
func (db *DB) SaveRecording(ctx context.Context, t *movement.Table, source string) (Recording, error) {
	rec := Recording{
		ID:      uuid.NewString(),
		Name:    t.Name,
		Source:  source,
		Rows:    t.Len(),
		Columns: t.Columns(),
	}

	columnsJSON, err := json.Marshal(rec.Columns)
	if err != nil {
		return Recording{}, fmt.Errorf("failed to encode columns: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Recording{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recordings (recording_id, name, source_path, row_count, columns) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Source, rec.Rows, string(columnsJSON),
	); err != nil {
		return Recording{}, fmt.Errorf("failed to insert recording: %w", err)
	}

	known := make(map[string]bool, len(sampleColumns))
	sqlCols := make([]string, 0, len(sampleColumns)+2)
	sqlCols = append(sqlCols, "recording_id", "seq")
	var data [][]movement.Value
	for _, sc := range sampleColumns {
		known[sc.table] = true
		if c, err := t.Column(sc.table); err == nil {
			sqlCols = append(sqlCols, sc.sql)
			data = append(data, c)
		}
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO samples (%s) VALUES (?%s)`,
		strings.Join(sqlCols, ", "), strings.Repeat(", ?", len(sqlCols)-1),
	))
	if err != nil {
		return Recording{}, err
	}
	defer stmt.Close()

	args := make([]any, len(sqlCols))
	for i := 0; i < t.Len(); i++ {
		args[0], args[1] = rec.ID, i
		for j, c := range data {
			args[j+2] = nullFloat(c[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return Recording{}, fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
	}

	extra, err := tx.PrepareContext(ctx,
		`INSERT INTO sample_extras (recording_id, seq, name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return Recording{}, err
	}
	defer extra.Close()

	for _, name := range rec.Columns {
		if known[name] {
			continue
		}
		c, _ := t.Column(name)
		for i, v := range c {
			if _, err := extra.ExecContext(ctx, rec.ID, i, name, nullFloat(v)); err != nil {
				return Recording{}, fmt.Errorf("failed to insert %s[%d]: %w", name, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Recording{}, err
	}
	return rec, nil
}

// GetRecording returns a recording's metadata.
func (db *DB) GetRecording(ctx context.Context, id string) (Recording, error) {
	row := db.QueryRowContext(ctx,
		`SELECT recording_id, name, source_path, row_count, columns, created_at
		 FROM recordings WHERE recording_id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListRecordings returns every recording, oldest first.
func (db *DB) ListRecordings(ctx context.Context) ([]Recording, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT recording_id, name, source_path, row_count, columns, created_at
		 FROM recordings ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (Recording, error) {
	var (
		rec     Recording
		columns string
	)
	if err := s.Scan(&rec.ID, &rec.Name, &rec.Source, &rec.Rows, &columns, &rec.CreatedAt); err != nil {
		return Recording{}, err
	}
	if err := json.Unmarshal([]byte(columns), &rec.Columns); err != nil {
		return Recording{}, fmt.Errorf("recording %s: bad column list: %w", rec.ID, err)
	}
	return rec, nil
}

// LoadRecording rebuilds the stored table with its original column order
// and row order.
func (db *DB) LoadRecording(ctx context.Context, id string) (*movement.Table, error) {
	rec, err := db.GetRecording(ctx, id)
	if err != nil {
		return nil, err
	}

	cols := make(map[string][]movement.Value, len(rec.Columns))
	for _, name := range rec.Columns {
		cols[name] = make([]movement.Value, rec.Rows)
	}

	sqlCols := make([]string, 0, len(sampleColumns))
	var targets [][]movement.Value
	for _, sc := range sampleColumns {
		if c, ok := cols[sc.table]; ok {
			sqlCols = append(sqlCols, sc.sql)
			targets = append(targets, c)
		}
	}
	if len(sqlCols) > 0 {
		if err := db.loadSamples(ctx, id, sqlCols, targets, rec.Rows); err != nil {
			return nil, err
		}
	}
	if err := db.loadExtras(ctx, id, cols, rec.Rows); err != nil {
		return nil, err
	}

	t := movement.NewTable(rec.Name, rec.Rows)
	for _, name := range rec.Columns {
		if err := t.Set(name, cols[name]); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (db *DB) loadSamples(ctx context.Context, id string, sqlCols []string, targets [][]movement.Value, n int) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT seq, %s FROM samples WHERE recording_id = ? ORDER BY seq`,
		strings.Join(sqlCols, ", ")), id)
	if err != nil {
		return err
	}
	defer rows.Close()

	vals := make([]sql.NullFloat64, len(sqlCols))
	dest := make([]any, len(sqlCols)+1)
	var seq int
	dest[0] = &seq
	for i := range vals {
		dest[i+1] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		if seq < 0 || seq >= n {
			return fmt.Errorf("sample seq %d out of range [0, %d)", seq, n)
		}
		for i, v := range vals {
			targets[i][seq] = fromNull(v)
		}
	}
	return rows.Err()
}

func (db *DB) loadExtras(ctx context.Context, id string, cols map[string][]movement.Value, n int) error {
	rows, err := db.QueryContext(ctx,
		`SELECT name, seq, value FROM sample_extras WHERE recording_id = ?`, id)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			seq  int
			v    sql.NullFloat64
		)
		if err := rows.Scan(&name, &seq, &v); err != nil {
			return err
		}
		c, ok := cols[name]
		if !ok || seq < 0 || seq >= n {
			return fmt.Errorf("unexpected extra sample %s[%d]", name, seq)
		}
		c[seq] = fromNull(v)
	}
	return rows.Err()
}

// DeleteRecording removes a recording with its samples and summary.
func (db *DB) DeleteRecording(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM recordings WHERE recording_id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveSummary stores or replaces the summary for a recording.
func (db *DB) SaveSummary(ctx context.Context, id string, s summary.Summary) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO summaries (
			recording_id, row_count, duration_s, total_distance, net_displacement,
			straightness, mean_velocity, velocity_sd, median_velocity, peak_velocity,
			mean_turn_velocity, stop_fraction, mean_bearing
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(recording_id) DO UPDATE SET
			row_count = excluded.row_count,
			duration_s = excluded.duration_s,
			total_distance = excluded.total_distance,
			net_displacement = excluded.net_displacement,
			straightness = excluded.straightness,
			mean_velocity = excluded.mean_velocity,
			velocity_sd = excluded.velocity_sd,
			median_velocity = excluded.median_velocity,
			peak_velocity = excluded.peak_velocity,
			mean_turn_velocity = excluded.mean_turn_velocity,
			stop_fraction = excluded.stop_fraction,
			mean_bearing = excluded.mean_bearing,
			updated_at = CURRENT_TIMESTAMP`,
		id, s.Rows,
		nanToNull(s.DurationSecs), nanToNull(s.TotalDistance), nanToNull(s.NetDisplacement),
		nanToNull(s.Straightness), nanToNull(s.MeanVelocity), nanToNull(s.VelocityStdDev),
		nanToNull(s.MedianVelocity), nanToNull(s.PeakVelocity), nanToNull(s.MeanTurnVelocity),
		nanToNull(s.StopFraction), nanToNull(s.MeanBearingDegrees),
	)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// GetSummary returns the stored summary, named after its recording.
func (db *DB) GetSummary(ctx context.Context, id string) (summary.Summary, error) {
	var (
		s summary.Summary
		f [11]sql.NullFloat64
	)
	err := db.QueryRowContext(ctx, `
		SELECT r.name, s.row_count, s.duration_s, s.total_distance, s.net_displacement,
			s.straightness, s.mean_velocity, s.velocity_sd, s.median_velocity,
			s.peak_velocity, s.mean_turn_velocity, s.stop_fraction, s.mean_bearing
		FROM summaries s JOIN recordings r ON r.recording_id = s.recording_id
		WHERE s.recording_id = ?`, id,
	).Scan(&s.Name, &s.Rows, &f[0], &f[1], &f[2], &f[3], &f[4], &f[5], &f[6], &f[7], &f[8], &f[9], &f[10])
	if errors.Is(err, sql.ErrNoRows) {
		return summary.Summary{}, fmt.Errorf("summary %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return summary.Summary{}, err
	}

	out := []*float64{
		&s.DurationSecs, &s.TotalDistance, &s.NetDisplacement, &s.Straightness,
		&s.MeanVelocity, &s.VelocityStdDev, &s.MedianVelocity, &s.PeakVelocity,
		&s.MeanTurnVelocity, &s.StopFraction, &s.MeanBearingDegrees,
	}
	for i, p := range out {
		*p = nullToNaN(f[i])
	}
	return s, nil
}

func nullFloat(v movement.Value) sql.NullFloat64 {
	if !v.Valid || math.IsNaN(v.Float) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v.Float, Valid: true}
}

func fromNull(v sql.NullFloat64) movement.Value {
	if !v.Valid {
		return movement.Missing
	}
	return movement.Of(v.Float64)
}

func nanToNull(f float64) sql.NullFloat64 {
	return nullFloat(movement.Of(f))
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
