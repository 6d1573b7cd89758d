package summary

import (
	"encoding/json"
	"math"
	"strconv"
)

// jsonFloat encodes non-finite values as null, which encoding/json
// otherwise rejects.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// MarshalJSON writes statistics that have no value as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name               string    `json:"name"`
		Rows               int       `json:"rows"`
		DurationSecs       jsonFloat `json:"duration_s"`
		TotalDistance      jsonFloat `json:"total_distance"`
		NetDisplacement    jsonFloat `json:"net_displacement"`
		Straightness       jsonFloat `json:"straightness"`
		MeanVelocity       jsonFloat `json:"mean_velocity"`
		VelocityStdDev     jsonFloat `json:"velocity_sd"`
		MedianVelocity     jsonFloat `json:"median_velocity"`
		PeakVelocity       jsonFloat `json:"peak_velocity"`
		MeanTurnVelocity   jsonFloat `json:"mean_turn_velocity"`
		StopFraction       jsonFloat `json:"stop_fraction"`
		MeanBearingDegrees jsonFloat `json:"mean_bearing"`
	}{
		Name:               s.Name,
		Rows:               s.Rows,
		DurationSecs:       jsonFloat(s.DurationSecs),
		TotalDistance:      jsonFloat(s.TotalDistance),
		NetDisplacement:    jsonFloat(s.NetDisplacement),
		Straightness:       jsonFloat(s.Straightness),
		MeanVelocity:       jsonFloat(s.MeanVelocity),
		VelocityStdDev:     jsonFloat(s.VelocityStdDev),
		MedianVelocity:     jsonFloat(s.MedianVelocity),
		PeakVelocity:       jsonFloat(s.PeakVelocity),
		MeanTurnVelocity:   jsonFloat(s.MeanTurnVelocity),
		StopFraction:       jsonFloat(s.StopFraction),
		MeanBearingDegrees: jsonFloat(s.MeanBearingDegrees),
	})
}
