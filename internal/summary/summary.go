// Package summary reduces a derived recording to per-trial statistics.
package summary

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/servosphere/internal/movement"
)

// RequiredColumns are the derived columns Summarize reads.
var RequiredColumns = []string{
	movement.ColDT,
	movement.ColX,
	movement.ColY,
	movement.ColDistance,
	movement.ColBearing,
	movement.ColTurnVelocity,
	movement.ColVelocity,
}

// Summary describes one recording. Statistics over an empty set of values
// are NaN.
type Summary struct {
	Name               string  `json:"name"`
	Rows               int     `json:"rows"`
	DurationSecs       float64 `json:"duration_s"`
	TotalDistance      float64 `json:"total_distance"`
	NetDisplacement    float64 `json:"net_displacement"`
	Straightness       float64 `json:"straightness"`
	MeanVelocity       float64 `json:"mean_velocity"`
	VelocityStdDev     float64 `json:"velocity_sd"`
	MedianVelocity     float64 `json:"median_velocity"`
	PeakVelocity       float64 `json:"peak_velocity"`
	MeanTurnVelocity   float64 `json:"mean_turn_velocity"`
	StopFraction       float64 `json:"stop_fraction"`
	MeanBearingDegrees float64 `json:"mean_bearing"`
}

// Summarize computes the statistics for a fully derived table.
func Summarize(t *movement.Table) (Summary, error) {
	cols, err := t.Require(RequiredColumns...)
	if err != nil {
		return Summary{}, err
	}
	dt, x, y, dist, bearing, turnVel, vel := cols[0], cols[1], cols[2], cols[3], cols[4], cols[5], cols[6]

	s := Summary{Name: t.Name, Rows: t.Len()}
	s.DurationSecs = floats.Sum(finite(dt)) / movement.MillisPerSecond
	s.TotalDistance = floats.Sum(finite(dist))

	// Net displacement from the origin to the last known position.
	for i := t.Len() - 1; i >= 0; i-- {
		if x[i].Finite() && y[i].Finite() {
			s.NetDisplacement = math.Hypot(x[i].Float, y[i].Float)
			break
		}
	}
	if s.TotalDistance > 0 {
		s.Straightness = s.NetDisplacement / s.TotalDistance
	}

	v := finite(vel)
	s.MeanVelocity, s.VelocityStdDev = meanStdDev(v)
	s.MedianVelocity = median(v)
	s.PeakVelocity = math.NaN()
	s.StopFraction = math.NaN()
	if len(v) > 0 {
		s.PeakVelocity = floats.Max(v)
		stops := 0
		for _, f := range v {
			if f == 0 {
				stops++
			}
		}
		s.StopFraction = float64(stops) / float64(len(v))
	}

	s.MeanTurnVelocity = mean(finite(turnVel))
	s.MeanBearingDegrees = circularMeanDegrees(finite(bearing))
	return s, nil
}

// SummarizeAll summarizes every table in c in order, skipping other entries.
func SummarizeAll(c movement.Collection) ([]Summary, error) {
	out := make([]Summary, 0, len(c))
	for _, t := range c.TableList() {
		s, err := Summarize(t)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func finite(col []movement.Value) []float64 {
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if v.Finite() {
			out = append(out, v.Float)
		}
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

func meanStdDev(v []float64) (float64, float64) {
	switch len(v) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return v[0], 0
	}
	return stat.MeanStdDev(v, nil)
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), v...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// circularMeanDegrees averages bearings on the circle, so 350 and 10
// average to 0 rather than 180. Result is in [0, 360).
func circularMeanDegrees(deg []float64) float64 {
	if len(deg) == 0 {
		return math.NaN()
	}
	rad := make([]float64, len(deg))
	for i, d := range deg {
		rad[i] = d * math.Pi / 180
	}
	m := stat.CircularMean(rad, nil) * 180 / math.Pi
	m = math.Mod(m, 360)
	if m < 0 {
		m += 360
	}
	if m >= 360 {
		m = 0
	}
	return m
}
