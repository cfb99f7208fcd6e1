package ecdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotThresholds renders the time-to-threshold ECDF figure, one curve
// per absolute EPSS threshold.
func PlotThresholds(series map[float64][]int, path string) error {
	return save(series, func(t float64) string {
		return fmt.Sprintf("EPSS ≥ %g", t)
	}, path)
}

// PlotGrowth renders the catch-up latency ECDF figure, one curve per
// growth factor over baseline.
func PlotGrowth(series map[float64][]int, path string) error {
	return save(series, func(g float64) string {
		return fmt.Sprintf("EPSS ≥ baseline × %d", int(g))
	}, path)
}

func save(series map[float64][]int, label func(float64) string, path string) error {
	p := plot.New()
	p.X.Label.Text = "Days since KEV inclusion date (dateAdded)"
	p.Y.Label.Text = "Cumulative share of KEV vulnerabilities"
	p.Y.Min, p.Y.Max = 0, 1
	p.Y.Tick.Marker = percentTicks{}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = true

	keys := make([]float64, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Float64s(keys)

	curve := 0
	for _, k := range keys {
		xs, ys := XY(series[k])
		if len(xs) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(xs))
		for i := range xs {
			pts[i].X = xs[i]
			pts[i].Y = ys[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = plotutil.Color(curve)
		p.Add(line)
		p.Legend.Add(label(k), line)
		curve++
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return p.Save(8.6*vg.Inch, 5*vg.Inch, path)
}

// percentTicks labels the y axis as percentages of the population.
type percentTicks struct{}

func (percentTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for v := 0.0; v <= max+1e-9; v += 0.2 {
		if v < min {
			continue
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf("%.0f%%", v*100)})
	}
	return ticks
}
