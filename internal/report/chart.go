package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/servosphere/internal/fsutil"
	"github.com/banshee-data/servosphere/internal/movement"
	"github.com/banshee-data/servosphere/internal/units"
)

// RenderVelocityChart writes an HTML line chart of velocity and turn
// velocity against elapsed seconds. Missing and non-finite cells are left
// as gaps.
func RenderVelocityChart(w io.Writer, t *movement.Table, unit string) error {
	cols, err := t.Require(movement.ColDT, movement.ColVelocity, movement.ColTurnVelocity)
	if err != nil {
		return err
	}
	dt, vel, turn := cols[0], cols[1], cols[2]

	elapsed := make([]string, t.Len())
	velData := make([]opts.LineData, t.Len())
	turnData := make([]opts.LineData, t.Len())
	var secs float64
	for i := 0; i < t.Len(); i++ {
		if dt[i].Finite() {
			secs += dt[i].Float / movement.MillisPerSecond
		}
		elapsed[i] = fmt.Sprintf("%.3f", secs)
		velData[i] = lineData(vel[i])
		turnData[i] = lineData(turn[i])
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: t.Name, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: t.Name, Subtitle: fmt.Sprintf("rows=%d", t.Len())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Elapsed (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: fmt.Sprintf("Velocity (%s)", units.SpeedLabel(unit))}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Turn velocity (deg/s)"})
	line.SetXAxis(elapsed).
		AddSeries("velocity", velData).
		AddSeries("turn velocity", turnData, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))

	return line.Render(w)
}

func lineData(v movement.Value) opts.LineData {
	if !v.Finite() {
		return opts.LineData{Value: "-"}
	}
	return opts.LineData{Value: v.Float}
}

// WriteVelocityChart renders the chart into dir and returns the file path.
func WriteVelocityChart(fsys fsutil.FileSystem, dir string, t *movement.Table, unit string) (string, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, t.Name+"_velocity.html")
	f, err := fsys.Create(path)
	if err != nil {
		return "", err
	}
	if err := RenderVelocityChart(f, t, unit); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
