package movement

import "math"

// Position adds x and y, the running sums of dx and dy. A missing
// displacement leaves that axis missing from that row onward.
func Position(t *Table) (*Table, error) {
	cols, err := t.Require(ColDX, ColDY)
	if err != nil {
		return nil, err
	}
	out := t.Clone()
	if err := out.Set(ColX, cumsum(cols[0])); err != nil {
		return nil, err
	}
	if err := out.Set(ColY, cumsum(cols[1])); err != nil {
		return nil, err
	}
	return out, nil
}

func cumsum(in []Value) []Value {
	out := make([]Value, len(in))
	var sum float64
	for i, v := range in {
		if !v.Valid {
			// NA poisons every later partial sum.
			break
		}
		sum += v.Float
		out[i] = Of(sum)
	}
	return out
}

// Distance adds the per-step displacement magnitude sqrt(dx²+dy²).
func Distance(t *Table) (*Table, error) {
	cols, err := t.Require(ColDX, ColDY)
	if err != nil {
		return nil, err
	}
	dx, dy := cols[0], cols[1]
	dist := make([]Value, t.Len())
	for i := range dist {
		if dx[i].Valid && dy[i].Valid {
			dist[i] = Of(math.Sqrt(dx[i].Float*dx[i].Float + dy[i].Float*dy[i].Float))
		}
	}
	out := t.Clone()
	if err := out.Set(ColDistance, dist); err != nil {
		return nil, err
	}
	return out, nil
}

// Bearing adds the direction of travel in degrees clockwise from the y
// axis, range [0, 360). The direction at row i is taken from the central
// difference of positions i-1 and i+1, so the first and last rows are
// always missing. A zero central difference gives 0.
func Bearing(t *Table) (*Table, error) {
	cols, err := t.Require(ColX, ColY)
	if err != nil {
		return nil, err
	}
	x, y := cols[0], cols[1]
	n := t.Len()
	bearing := make([]Value, n)
	for i := 1; i < n-1; i++ {
		prevX, nextX := x[i-1], x[i+1]
		prevY, nextY := y[i-1], y[i+1]
		if !prevX.Valid || !nextX.Valid || !prevY.Valid || !nextY.Valid {
			continue
		}
		// atan2(dx, dy) measures from the y axis rather than the x axis.
		rad := math.Atan2(nextX.Float-prevX.Float, nextY.Float-prevY.Float)
		bearing[i] = Of(normalizeDegrees(rad * 180 / math.Pi))
	}
	out := t.Clone()
	if err := out.Set(ColBearing, bearing); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeDegrees maps deg into [0, 360).
func normalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	// -1e-15 + 360 rounds to 360.
	if d >= 360 {
		d = 0
	}
	return d
}

// TurnAngle adds the signed difference between each present bearing and
// the previous present bearing. Rows with a missing bearing are skipped
// when looking back, so a pause does not break the comparison. The first
// present bearing has no turn angle. Differences are not wrapped.
func TurnAngle(t *Table) (*Table, error) {
	bearing, err := t.Column(ColBearing)
	if err != nil {
		return nil, err
	}
	turn := make([]Value, t.Len())
	prev := Missing
	for i, b := range bearing {
		if !b.Valid {
			continue
		}
		if prev.Valid {
			turn[i] = Of(b.Float - prev.Float)
		}
		prev = b
	}
	out := t.Clone()
	if err := out.Set(ColTurnAngle, turn); err != nil {
		return nil, err
	}
	return out, nil
}

// TurnVelocity adds |turn_angle| in degrees per second. A zero dT yields
// +Inf (or NaN for a zero turn); callers are expected to clean dT first.
func TurnVelocity(t *Table) (*Table, error) {
	cols, err := t.Require(ColTurnAngle, ColDT)
	if err != nil {
		return nil, err
	}
	turn, dt := cols[0], cols[1]
	tv := make([]Value, t.Len())
	for i := range tv {
		if turn[i].Valid && dt[i].Valid {
			tv[i] = Of(math.Abs(turn[i].Float) / (dt[i].Float / MillisPerSecond))
		}
	}
	out := t.Clone()
	if err := out.Set(ColTurnVelocity, tv); err != nil {
		return nil, err
	}
	return out, nil
}

// Velocity adds displacement per second. Zero displacement is exactly zero
// velocity regardless of dT.
func Velocity(t *Table) (*Table, error) {
	cols, err := t.Require(ColDX, ColDY, ColDT)
	if err != nil {
		return nil, err
	}
	dx, dy, dt := cols[0], cols[1], cols[2]
	vel := make([]Value, t.Len())
	for i := range vel {
		if !dx[i].Valid || !dy[i].Valid {
			continue
		}
		if dx[i].Float == 0 && dy[i].Float == 0 {
			vel[i] = Of(0)
			continue
		}
		if !dt[i].Valid {
			continue
		}
		d := math.Sqrt(dx[i].Float*dx[i].Float + dy[i].Float*dy[i].Float)
		vel[i] = Of(d / (dt[i].Float / MillisPerSecond))
	}
	out := t.Clone()
	if err := out.Set(ColVelocity, vel); err != nil {
		return nil, err
	}
	return out, nil
}

// CalcXY applies Position to every table in c.
func CalcXY(c Collection) (Collection, error) { return Map(c, Position) }

// CalcDistance applies Distance to every table in c.
func CalcDistance(c Collection) (Collection, error) { return Map(c, Distance) }

// CalcBearing applies Bearing to every table in c.
func CalcBearing(c Collection) (Collection, error) { return Map(c, Bearing) }

// CalcTurnAngle applies TurnAngle to every table in c.
func CalcTurnAngle(c Collection) (Collection, error) { return Map(c, TurnAngle) }

// CalcTurnVelocity applies TurnVelocity to every table in c.
func CalcTurnVelocity(c Collection) (Collection, error) { return Map(c, TurnVelocity) }

// CalcVelocity applies Velocity to every table in c.
func CalcVelocity(c Collection) (Collection, error) { return Map(c, Velocity) }
