/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SummaryCsvHeader header of the custom KPI summary
const SummaryCsvHeader = "#,Test Name,Unit,Fs Requirement,Current Expectation,Actual"

// KPIMetadata describes one line of the KPI summary
type KPIMetadata struct {
	TestNumber         string  `json:"testNumber" yaml:"testNumber"`
	TestName           string  `json:"testName" yaml:"testName"`
	Unit               string  `json:"unit" yaml:"unit"`
	MeasurementName    string  `json:"measurementName" yaml:"measurementName"`
	CurrentExpectation float64 `json:"currentExpectation" yaml:"currentExpectation"`
}

// MakeCustomSummaryReport renders KPI summary csv, one line per metadata entry.
// Lines which can't be evaluated are written with "-" as actual value and the first such error is returned.
func MakeCustomSummaryReport(metadata []KPIMetadata, thresholds map[string][]string, reg *MetricRegistry) (string, error) {
	lines := make([]string, 0, len(metadata)+1)
	lines = append(lines, SummaryCsvHeader)
	var firstErr error
	for _, kpi := range metadata {
		line, err := makeSummaryCsvLine(kpi, thresholds, reg)
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "kpi %s", kpi.TestNumber)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n", firstErr
}

func makeSummaryCsvLine(kpi KPIMetadata, thresholds map[string][]string, reg *MetricRegistry) (string, error) {
	expectation := strconv.FormatFloat(kpi.CurrentExpectation, 'f', -1, 64)
	line := func(limit, actual string) string {
		return fmt.Sprintf("%s,%s,%s,%s,%s,%s", kpi.TestNumber, kpi.TestName, kpi.Unit, limit, expectation, actual)
	}
	exprs := thresholds[kpi.MeasurementName]
	if len(exprs) == 0 {
		return line("-", "-"), errors.Errorf("no threshold for %s", kpi.MeasurementName)
	}
	th, err := ParseThreshold(exprs[0])
	if err != nil {
		return line("-", "-"), err
	}
	values, err := reg.Values(kpi.MeasurementName)
	if err != nil {
		return line(th.RawValue, "-"), err
	}
	actual, err := th.Actual(values)
	if err != nil {
		return line(th.RawValue, "-"), err
	}
	return line(th.RawValue, strconv.FormatFloat(actual, 'f', 3, 64)), nil
}
