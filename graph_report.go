/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/charts"
	"github.com/pkg/errors"
)

var (
	errMalformedCSV = errors.New("malformed csv")
	errEmptyCSV     = errors.New("empty csv, nothing to plot")
)

// percsSeries percentiles csv columns after label and tick, in order
var percsSeries = []string{"rps", "p50", "p90", "p95", "p99", "failed"}

type ChartLine struct {
	XValues []float64
	YValues []float64
}

// AppendScalingData appends ${scenario},${nodes},${max_rps} line to scaling csv
func AppendScalingData(path, scenario string, nodes int, maxRPS float64) error {
	f, err := CreateFileOrAppend(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{scenario, strconv.Itoa(nodes), strconv.FormatFloat(maxRPS, 'f', 2, 64)})
	w.Flush()
	return errors.Wrap(w.Error(), "failed to write scaling data")
}

// parseScalingData parses csv lines in format ${scenario},${nodes},${max_rps}
func parseScalingData(path string) (map[string]*ChartLine, error) {
	records, err := readCSV(path, false)
	if err != nil {
		return nil, err
	}
	requests := make(map[string]*ChartLine)
	for _, record := range records {
		if len(record) != 3 {
			return nil, errMalformedCSV
		}
		scenario := record[0]
		if _, ok := requests[scenario]; !ok {
			requests[scenario] = &ChartLine{}
		}
		nodes, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, err
		}
		maxRPS, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, err
		}
		requests[scenario].XValues = append(requests[scenario].XValues, nodes)
		requests[scenario].YValues = append(requests[scenario].YValues, maxRPS)
	}
	if len(requests) == 0 {
		return nil, errEmptyCSV
	}
	return requests, nil
}

// parsePercsData parses percentiles log written by Report
func parsePercsData(path string) (map[string]*ChartLine, error) {
	records, err := readCSV(path, true)
	if err != nil {
		return nil, err
	}
	series := percsSeries
	percs := make(map[string]*ChartLine, len(series))
	for _, s := range series {
		percs[s] = &ChartLine{}
	}
	for _, record := range records {
		if len(record) != len(PercsCsvHeader) {
			return nil, errMalformedCSV
		}
		second, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, err
		}
		for i, s := range series {
			y, err := strconv.ParseFloat(record[i+2], 64)
			if err != nil {
				return nil, err
			}
			percs[s].XValues = append(percs[s].XValues, second)
			percs[s].YValues = append(percs[s].YValues, y)
		}
	}
	if len(records) == 0 {
		return nil, errEmptyCSV
	}
	return percs, nil
}

func PercsChart(path string, title string) (*charts.Line, error) {
	d, err := parsePercsData(path)
	if err != nil {
		return nil, err
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.DataZoomOpts{},
		charts.TitleOpts{Title: title},
		charts.XAxisOpts{Name: "Time (sec)"},
		charts.YAxisOpts{Name: "Response (ms)"},
	)
	line.AddXAxis(d["rps"].XValues)
	for _, k := range percsSeries {
		line.AddYAxis(k, d[k].YValues, defaultMaxLabel(k)...)
	}
	return line, nil
}

func ScalingChart(path string, title string) (*charts.Line, error) {
	d, err := parseScalingData(path)
	if err != nil {
		return nil, err
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.TitleOpts{Title: title},
		charts.XAxisOpts{Name: "Nodes"},
		charts.YAxisOpts{Name: "RPS"},
	)
	for k, v := range d {
		line.AddXAxis(v.XValues)
		line.AddYAxis(k, v.YValues, defaultMaxLabel(k)...)
	}
	return line, nil
}

func RenderEChart(data *charts.Line, name string) error {
	f, err := CreateFileOrReplace(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return errors.Wrap(data.Render(f), "failed to render chart")
}

// ReportScaling scaling chart, data must be written in csv in format:
// ${scenario},${nodes},${max_rps}
func ReportScaling(inputCsv, outHtml string) error {
	chartData, err := ScalingChart(inputCsv, "scaling")
	if err != nil {
		return errors.Wrap(err, "couldn't read and parse scaling data")
	}
	return RenderEChart(chartData, outHtml)
}

// draws max label for every line
func defaultMaxLabel(metric string) []charts.SeriesOptser {
	return []charts.SeriesOptser{
		charts.MPNameTypeItem{Name: "max " + metric, Type: "max"},
		charts.MPStyleOpts{Label: charts.LabelTextOpts{Show: true}},
	}
}

func readCSV(path string, skipHeader bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	if skipHeader {
		if _, err := reader.Read(); err != nil {
			if err == io.EOF {
				return nil, errEmptyCSV
			}
			return nil, err
		}
	}
	return reader.ReadAll()
}
