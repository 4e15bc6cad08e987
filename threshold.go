/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

var thresholdRe = regexp.MustCompile(`^\s*([a-z]+(?:\(\d+(?:\.\d+)?\))?)\s*(<=|>=|==|!=|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`)

var knownAggregations = map[string]struct{}{
	AggAvg: {}, AggMin: {}, AggMed: {}, AggMax: {},
	AggP90: {}, AggP95: {}, AggP99: {}, AggP999: {}, "p(50)": {},
	AggCount: {}, AggRate: {}, AggValue: {}, AggPasses: {}, AggFails: {},
}

// Threshold parsed threshold expression, e.g. "avg <= 2600"
type Threshold struct {
	Source      string
	Aggregation string
	Operator    string
	// RawValue value as written in the expression
	RawValue string
	Value    float64
}

// ParseThreshold parses "<aggregation> <operator> <value>"
func ParseThreshold(expr string) (Threshold, error) {
	m := thresholdRe.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, errors.Errorf("malformed threshold: %q", expr)
	}
	if _, ok := knownAggregations[m[1]]; !ok {
		return Threshold{}, errors.Errorf("unsupported aggregation %s in threshold %q", m[1], expr)
	}
	v, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Threshold{}, errors.Wrapf(err, "threshold %q", expr)
	}
	return Threshold{
		Source:      expr,
		Aggregation: m[1],
		Operator:    m[2],
		RawValue:    m[3],
		Value:       v,
	}, nil
}

// Actual returns aggregated value the threshold is checked against
func (t Threshold) Actual(values map[string]float64) (float64, error) {
	agg := t.Aggregation
	if agg == "p(50)" {
		agg = AggMed
	}
	v, ok := values[agg]
	if !ok {
		return 0, errors.Errorf("no %s value for threshold %q", t.Aggregation, t.Source)
	}
	return v, nil
}

// Passes reports whether actual value satisfies the threshold
func (t Threshold) Passes(actual float64) bool {
	switch t.Operator {
	case "<":
		return actual < t.Value
	case "<=":
		return actual <= t.Value
	case ">":
		return actual > t.Value
	case ">=":
		return actual >= t.Value
	case "==":
		return actual == t.Value
	case "!=":
		return actual != t.Value
	}
	return false
}

// ThresholdResult result of one threshold expression
type ThresholdResult struct {
	Metric    string
	Threshold Threshold
	Actual    float64
	Passed    bool
	Err       error
}

// EvaluateThresholds checks every expression of every metric, returns results sorted by metric
// and false if any threshold failed or could not be evaluated
func EvaluateThresholds(reg *MetricRegistry, thresholds map[string][]string) ([]ThresholdResult, bool) {
	names := make([]string, 0, len(thresholds))
	for n := range thresholds {
		names = append(names, n)
	}
	sort.Strings(names)

	passed := true
	results := make([]ThresholdResult, 0)
	for _, name := range names {
		values, valuesErr := reg.Values(name)
		for _, expr := range thresholds[name] {
			res := ThresholdResult{Metric: name}
			th, err := ParseThreshold(expr)
			res.Threshold = th
			switch {
			case err != nil:
				res.Err = err
			case valuesErr != nil:
				res.Err = valuesErr
			default:
				res.Actual, res.Err = th.Actual(values)
				if res.Err == nil {
					res.Passed = th.Passes(res.Actual)
				}
			}
			if !res.Passed {
				passed = false
			}
			results = append(results, res)
		}
	}
	return results, passed
}
