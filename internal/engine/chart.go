package engine

import (
	"fmt"
	"strings"

	"salesdash/internal/models"
)

type ChartKind string

const (
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
	ChartPie  ChartKind = "pie"
)

// ChartKinds lists the selectable kinds; the first one is the initial state.
var ChartKinds = []ChartKind{ChartLine, ChartBar, ChartPie}

func ParseChartKind(s string) (ChartKind, error) {
	k := ChartKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case ChartLine, ChartBar, ChartPie:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChartKind, s)
}

// Chart is implemented only by LineChart, BarChart and PieChart.
type Chart interface {
	Kind() ChartKind
	chart()
}

type Point struct {
	Month models.Month `json:"month"`
	Sales int64        `json:"sales"`
}

type LineChart struct {
	Type   ChartKind `json:"type"`
	Title  string    `json:"title"`
	XAxis  string    `json:"x_axis"`
	YAxis  string    `json:"y_axis"`
	Color  string    `json:"color"`
	Points []Point   `json:"points"`
}

type BarChart struct {
	Type  ChartKind `json:"type"`
	Title string    `json:"title"`
	XAxis string    `json:"x_axis"`
	YAxis string    `json:"y_axis"`
	Color string    `json:"color"`
	Bars  []Point   `json:"bars"`
}

type Slice struct {
	Label   string  `json:"label"`
	Value   int64   `json:"value"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

type PieChart struct {
	Type   ChartKind `json:"type"`
	Title  string    `json:"title"`
	Slices []Slice   `json:"slices"`
}

func (LineChart) Kind() ChartKind { return ChartLine }
func (BarChart) Kind() ChartKind  { return ChartBar }
func (PieChart) Kind() ChartKind  { return ChartPie }

func (LineChart) chart() {}
func (BarChart) chart()  {}
func (PieChart) chart()  {}

const seriesColor = "#3b82f6"

var pieColors = []string{"#3b82f6", "#8b5cf6", "#10b981", "#f59e0b", "#ef4444"}

// BuildChart plots monthly sales of records as the requested kind. Records are
// rolled up per month first, so the payload is always in calendar order.
func BuildChart(kind ChartKind, title string, records []models.SalesRecord) (Chart, error) {
	series := MonthlySeries(records)
	points := make([]Point, len(series))
	for i, m := range series {
		points[i] = Point{Month: m.Month, Sales: m.Sales}
	}

	switch kind {
	case ChartLine:
		return LineChart{Type: ChartLine, Title: title, XAxis: "month", YAxis: "sales", Color: seriesColor, Points: points}, nil
	case ChartBar:
		return BarChart{Type: ChartBar, Title: title, XAxis: "month", YAxis: "sales", Color: seriesColor, Bars: points}, nil
	case ChartPie:
		var total int64
		for _, p := range points {
			total += p.Sales
		}
		slices := make([]Slice, len(points))
		for i, p := range points {
			pct := 0.0
			if total > 0 {
				pct = float64(p.Sales) / float64(total) * 100
			}
			slices[i] = Slice{
				Label:   p.Month.String(),
				Value:   p.Sales,
				Percent: pct,
				Color:   pieColors[i%len(pieColors)],
			}
		}
		return PieChart{Type: ChartPie, Title: title, Slices: slices}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidChartKind, kind)
}
