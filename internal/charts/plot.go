package charts

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/navada/insightlab/internal/analytics"
)

var (
	barColor   = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	accent     = color.RGBA{R: 220, G: 80, B: 60, A: 255}
	positiveC  = color.RGBA{R: 46, G: 160, B: 90, A: 255}
	negativeC  = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	trendColor = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// poundTicks labels a salary axis in whole pounds.
type poundTicks struct{}

func (poundTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = analytics.Pounds(ticks[i].Value)
		}
	}
	return ticks
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())
	return p
}

// barPlot draws one bar per label. Horizontal bars list the first label at the top.
func barPlot(title, valueLabel string, labels []string, values []float64, horizontal bool, c color.Color) (*plot.Plot, error) {
	if horizontal {
		labels = reversed(labels)
		values = reversed(values)
	}

	p := newPlot(title, "", "")
	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(18))
	if err != nil {
		return nil, err
	}
	bars.Color = c
	bars.LineStyle.Width = 0
	bars.Horizontal = horizontal
	p.Add(bars)

	if horizontal {
		p.NominalY(labels...)
		p.X.Label.Text = valueLabel
		p.X.Min = minZero(values)
	} else {
		p.NominalX(labels...)
		p.Y.Label.Text = valueLabel
		p.Y.Min = minZero(values)
	}
	return p, nil
}

// boxPlot draws one box per group with a pound-labelled value axis.
func boxPlot(title string, groups []analytics.Group) (*plot.Plot, error) {
	p := newPlot(title, "", "Salary (GBP)")
	names := make([]string, len(groups))
	for i, g := range groups {
		box, err := plotter.NewBoxPlot(vg.Points(40), float64(i), plotter.Values(g.Values))
		if err != nil {
			return nil, err
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
		names[i] = g.Label
	}
	p.NominalX(names...)
	p.Y.Tick.Marker = poundTicks{}
	return p, nil
}

func reversed[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func minZero(values []float64) float64 {
	m := 0.0
	for _, v := range values {
		if v < m {
			m = v
		}
	}
	return m
}
