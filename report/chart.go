package report

import (
	"fmt"
	"io"
	"strconv"

	"gridmdp/reinforcement"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// DOWNSAMPLE_STRIDE keeps every 50th point of long per-episode series.
const DOWNSAMPLE_STRIDE = 50

// Series is a named line of a chart, indexed by episode or step.
type Series struct {
	Name   string
	Values []float64
}

type Point struct {
	X int
	Y float64
}

// Downsample keeps the points whose index is a multiple of stride. A stride below one keeps every point.
func Downsample(values []float64, stride int) []Point {
	if stride < 1 {
		stride = 1
	}
	points := make([]Point, 0, (len(values)+stride-1)/stride)
	for i := 0; i < len(values); i += stride {
		points = append(points, Point{X: i, Y: values[i]})
	}
	return points
}

// RewardSeries extracts the per-episode total reward.
func RewardSeries(name string, episodes []reinforcement.EpisodeResult) Series {
	values := make([]float64, len(episodes))
	for i, ep := range episodes {
		values[i] = ep.Reward
	}
	return Series{Name: name, Values: values}
}

// StepSeries extracts the per-episode step count.
func StepSeries(name string, episodes []reinforcement.EpisodeResult) Series {
	values := make([]float64, len(episodes))
	for i, ep := range episodes {
		values[i] = float64(ep.Steps)
	}
	return Series{Name: name, Values: values}
}

// ChartSpec names a chart and its axes.
type ChartSpec struct {
	Title  string
	XLabel string
	YLabel string
	Stride int
}

// RenderChart writes a self-contained html page holding one line chart of every series.
func RenderChart(w io.Writer, spec ChartSpec, series ...Series) error {
	if len(series) == 0 {
		return fmt.Errorf("render %q: no series", spec.Title)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: spec.Title,
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: spec.XLabel}),
		charts.WithYAxisOpts(opts.YAxis{Name: spec.YLabel}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	longest := 0
	sampled := make([][]Point, len(series))
	for i, s := range series {
		sampled[i] = Downsample(s.Values, spec.Stride)
		if len(sampled[i]) > len(sampled[longest]) {
			longest = i
		}
	}

	xAxis := make([]string, 0, len(sampled[longest]))
	for _, pt := range sampled[longest] {
		xAxis = append(xAxis, strconv.Itoa(pt.X))
	}
	line = line.SetXAxis(xAxis)

	for i, s := range series {
		items := make([]opts.LineData, 0, len(sampled[i]))
		for _, pt := range sampled[i] {
			items = append(items, opts.LineData{Value: pt.Y})
		}
		line.AddSeries(s.Name, items)
	}

	page := components.NewPage()
	page.AddCharts(line)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render %q: %w", spec.Title, err)
	}
	return nil
}
