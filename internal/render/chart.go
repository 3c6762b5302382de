package render

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	chartWidth  = 800
	chartHeight = 400
	maxXTicks   = 8
)

var lineColor = drawing.ColorFromHex("3366cc")

// ChartSVG draws the value-over-date line chart as SVG. Points are plotted in
// the order given; tick labels come from Chart.TickLabels.
func ChartSVG(c *Chart) ([]byte, error) {
	if c == nil || len(c.Values) == 0 {
		return nil, errors.New("chart has no points")
	}

	xs, ys := plotPoints(c.Values)

	graph := chart.Chart{
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Range: xRange(len(c.Values)),
			Ticks: xTicks(c.TickLabels),
		},
		YAxis: chart.YAxis{
			Range:          yRange(c.Values),
			ValueFormatter: chart.FloatValueFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "value",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render line chart: %w", err)
	}
	return buf.Bytes(), nil
}

// plotPoints places values at integer x positions. A lone point is widened
// into a short flat segment around x=0 since go-chart cannot draw a series
// with no x extent.
func plotPoints(values []float64) (xs, ys []float64) {
	if len(values) == 1 {
		return []float64{-0.5, 0.5}, []float64{values[0], values[0]}
	}
	xs = make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs, values
}

func xRange(n int) *chart.ContinuousRange {
	if n == 1 {
		return &chart.ContinuousRange{Min: -1, Max: 1}
	}
	return &chart.ContinuousRange{Min: 0, Max: float64(n - 1)}
}

// yRange pads the data extent so flat or single-point series still draw
func yRange(values []float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	if lo == hi {
		pad := math.Max(math.Abs(lo)*0.01, 1)
		return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
	}
	pad := (hi - lo) * 0.05
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

// xTicks picks at most maxXTicks evenly spaced labels
func xTicks(labels []string) []chart.Tick {
	n := len(labels)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []chart.Tick{{Value: 0, Label: tickText(labels[0])}}
	}

	k := maxXTicks
	if n < k {
		k = n
	}
	ticks := make([]chart.Tick, 0, k)
	last := -1
	for i := 0; i < k; i++ {
		idx := i * (n - 1) / (k - 1)
		if idx == last {
			continue
		}
		last = idx
		ticks = append(ticks, chart.Tick{Value: float64(idx), Label: tickText(labels[idx])})
	}
	return ticks
}

// tickText keeps only characters that can appear in a date label, since the
// SVG is embedded in the page verbatim.
func tickText(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
			return r
		case r == '-' || r == ':' || r == '/' || r == '.' || r == ' ':
			return r
		}
		return -1
	}, s)
}
