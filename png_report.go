/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart"
)

func lineStyle(colorIndex int) chart.Style {
	return chart.Style{
		StrokeColor: chart.GetDefaultColor(colorIndex).WithAlpha(255),
		DotWidth:    3.0,
		StrokeWidth: 3,
	}
}

func sortedKeys(m map[string]*ChartLine) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ScalingPNGChart max rps of every scenario by nodes amount
func ScalingPNGChart(path string) (*chart.Chart, error) {
	requests, err := parseScalingData(path)
	if err != nil {
		return nil, err
	}
	var series []chart.Series
	var allYValues []float64
	for colorIndex, key := range sortedKeys(requests) {
		value := requests[key]
		allYValues = append(allYValues, value.YValues...)
		series = append(series, chart.ContinuousSeries{
			Name:    key,
			Style:   lineStyle(colorIndex),
			XValues: value.XValues,
			YValues: value.YValues,
		})
	}
	chartData := &chart.Chart{
		XAxis: chart.XAxis{
			Name: "Nodes",
		},
		YAxis: chart.YAxis{
			Name: "Max RPS",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: MaxRPS(allYValues),
			},
		},
		Series: series,
	}
	chartData.Elements = []chart.Renderable{
		chart.LegendLeft(chartData),
	}
	return chartData, nil
}

// ResponsesChart response time percentiles and rps by test second
func ResponsesChart(chartTitle string, path string) (*chart.Chart, error) {
	percs, err := parsePercsData(path)
	if err != nil {
		return nil, err
	}
	var series []chart.Series
	for colorIndex, key := range sortedKeys(percs) {
		value := percs[key]
		line := chart.ContinuousSeries{
			Name:    key,
			Style:   lineStyle(colorIndex),
			XValues: value.XValues,
			YValues: value.YValues,
		}
		if key == "rps" {
			line.YAxis = chart.YAxisSecondary
		}
		series = append(series, line)
	}

	chartData := &chart.Chart{
		Title: chartTitle,
		Background: chart.Style{
			Padding: chart.Box{
				Top:  20,
				Left: 150,
			},
		},
		XAxis: chart.XAxis{
			Name: "Test time (Seconds)",
		},
		YAxis: chart.YAxis{
			Name: "Response time (Ms)",
		},
		YAxisSecondary: chart.YAxis{
			Name: "RPS",
		},
		Series: series,
		Width:  800,
		Height: 600,
	}
	chartData.Elements = []chart.Renderable{
		chart.LegendLeft(chartData),
	}
	return chartData, nil
}

// ReportScalingPNG generates scaling chart, data must be written in csv in format:
// ${scenario},${nodes},${max_rps}
func ReportScalingPNG(inputCsv, outputPng string) error {
	chartData, err := ScalingPNGChart(inputCsv)
	if err != nil {
		return errors.Wrap(err, "couldn't read and parse scaling data")
	}
	return RenderChart(chartData, outputPng)
}

func RenderChart(chartData *chart.Chart, fileName string) error {
	file, err := CreateFileOrReplace(fileName)
	if err != nil {
		return err
	}
	defer file.Close()
	return errors.Wrap(chartData.Render(chart.PNG, file), "failed to render png chart")
}
