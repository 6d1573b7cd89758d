// Package report renders derived recordings as images and HTML charts.
package report

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/servosphere/internal/fsutil"
	"github.com/banshee-data/servosphere/internal/movement"
	"github.com/banshee-data/servosphere/internal/units"
)

var (
	pathColor  = color.RGBA{R: 38, G: 130, B: 142, A: 255}
	startColor = color.RGBA{R: 53, G: 183, B: 121, A: 255}
	endColor   = color.RGBA{R: 200, G: 40, B: 40, A: 255}
)

// PathPlot builds a plot of the x/y path of a table carrying position
// columns. Rows with a missing or non-finite position are skipped.
func PathPlot(t *movement.Table, unit string) (*plot.Plot, error) {
	cols, err := t.Require(movement.ColX, movement.ColY)
	if err != nil {
		return nil, err
	}
	x, y := cols[0], cols[1]
	pts := make(plotter.XYs, 0, t.Len())
	for i := range x {
		if x[i].Finite() && y[i].Finite() {
			pts = append(pts, plotter.XY{X: x[i].Float, Y: y[i].Float})
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - path", t.Name)
	p.X.Label.Text = fmt.Sprintf("x (%s)", units.Label(unit))
	p.Y.Label.Text = fmt.Sprintf("y (%s)", units.Label(unit))
	p.Add(plotter.NewGrid())

	if len(pts) == 0 {
		return p, nil
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = pathColor
	line.Width = vg.Points(1)
	p.Add(line)

	ends, err := plotter.NewScatter(plotter.XYs{pts[0], pts[len(pts)-1]})
	if err != nil {
		return nil, err
	}
	ends.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		s := ends.GlyphStyle
		s.Radius = vg.Points(3)
		if i == 0 {
			s.Color = startColor
		} else {
			s.Color = endColor
		}
		return s
	}
	p.Add(ends)
	return p, nil
}

// WritePathPlot renders the path of t as a PNG in dir and returns its path.
func WritePathPlot(fsys fsutil.FileSystem, dir string, t *movement.Table, unit string) (string, error) {
	p, err := PathPlot(t, unit)
	if err != nil {
		return "", err
	}
	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return "", fmt.Errorf("failed to render plot: %w", err)
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, t.Name+"_path.png")
	f, err := fsys.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
