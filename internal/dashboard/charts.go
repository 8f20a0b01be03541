package dashboard

import (
	"bytes"
	"fmt"
	"net/http"

	"codeberg.org/mutker/motortwin/internal/telemetry"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

type series struct {
	name  string
	value func(telemetry.Frame) float64
}

type chartGroup struct {
	title  string
	unit   string
	series []series
}

var chartGroups = []chartGroup{
	{"Speed", "rpm", []series{
		{"speed", func(f telemetry.Frame) float64 { return f.Speed }},
	}},
	{"Temperature", "°C", []series{
		{"temperature", func(f telemetry.Frame) float64 { return f.Temperature }},
	}},
	{"Current", "A", []series{
		{"U", func(f telemetry.Frame) float64 { return f.CurrentU }},
		{"V", func(f telemetry.Frame) float64 { return f.CurrentV }},
		{"W", func(f telemetry.Frame) float64 { return f.CurrentW }},
	}},
	{"Voltage", "V", []series{
		{"U", func(f telemetry.Frame) float64 { return f.VoltageU }},
		{"V", func(f telemetry.Frame) float64 { return f.VoltageV }},
		{"W", func(f telemetry.Frame) float64 { return f.VoltageW }},
	}},
	{"Vibration", "g", []series{
		{"X", func(f telemetry.Frame) float64 { return f.VibrationX }},
		{"Y", func(f telemetry.Frame) float64 { return f.VibrationY }},
		{"Z", func(f telemetry.Frame) float64 { return f.VibrationZ }},
	}},
}

func (s *Server) handleCharts(w http.ResponseWriter, _ *http.Request) {
	var frames []telemetry.Frame
	if t := s.last.Load(); t != nil {
		frames = t.Snapshot
	}

	page := components.NewPage()
	for _, g := range chartGroups {
		page.AddCharts(lineChart(g, frames))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func lineChart(g chartGroup, frames []telemetry.Frame) *charts.Line {
	x := make([]string, len(frames))
	for i, f := range frames {
		if f.Synthetic() {
			continue
		}
		x[i] = f.Timestamp.Format("15:04:05.000")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: g.title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(len(g.series) > 1)}),
		charts.WithYAxisOpts(opts.YAxis{Name: g.unit}),
	)
	line.SetXAxis(x)

	for _, sr := range g.series {
		data := make([]opts.LineData, len(frames))
		for i, f := range frames {
			data[i] = opts.LineData{Value: sr.value(f)}
		}
		line.AddSeries(sr.name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}

	return line
}
