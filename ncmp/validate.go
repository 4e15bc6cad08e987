/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/cps-perf/ncmploader"
)

const bodyPreviewLength = 500

// Checker records named checks, *ncmploader.MetricRegistry implements it
type Checker interface {
	Check(name string, ok bool) bool
}

// Recorder receives durations in milliseconds, *ncmploader.Trend implements it
type Recorder interface {
	Add(v float64)
}

type nopChecker struct{}

func (nopChecker) Check(_ string, ok bool) bool {
	return ok
}

// Validator checks responses and records durations of valid ones
type Validator struct {
	Checks Checker
	L      *ncmploader.Logger
}

func NewValidator(checks Checker, l *ncmploader.Logger) *Validator {
	if checks == nil {
		checks = nopChecker{}
	}
	if l == nil {
		l = ncmploader.NewNopLogger()
	}
	return &Validator{Checks: checks, L: l}
}

// ValidateResponseAndRecordMetric records duration when status matches and,
// if expectedArrayLength >= 0, the body is a json array of that length
func (v *Validator) ValidateResponseAndRecordMetric(resp Response, expectedStatus int, label string, expectedArrayLength int, trend Recorder) bool {
	if !v.validate(resp, expectedStatus, label, expectedArrayLength) {
		return false
	}
	trend.Add(toMillis(resp.Duration))
	return true
}

// ValidateResponseAndRecordMetricWithOverhead records duration minus the known dmi delay
func (v *Validator) ValidateResponseAndRecordMetricWithOverhead(resp Response, expectedStatus int, label string, delayMs int, trend Recorder) bool {
	if !v.validate(resp, expectedStatus, label, -1) {
		return false
	}
	trend.Add(toMillis(resp.Duration) - float64(delayMs))
	return true
}

func (v *Validator) validate(resp Response, expectedStatus int, label string, expectedArrayLength int) bool {
	statusOk := v.Checks.Check(fmt.Sprintf("%s status equals %d", label, expectedStatus), resp.Status == expectedStatus)
	if !statusOk {
		v.logFailure(resp, expectedStatus, label)
		return false
	}
	if expectedArrayLength < 0 {
		return true
	}
	n, err := resp.ArrayLength()
	lengthOk := v.Checks.Check(fmt.Sprintf("%s returned %d items", label, expectedArrayLength), err == nil && n == expectedArrayLength)
	if !lengthOk {
		if err != nil {
			v.L.Errorf("%s: %s, url: %s", label, err, resp.URL)
		} else {
			v.L.Errorf("%s: expected %d items, got %d, url: %s", label, expectedArrayLength, n, resp.URL)
		}
	}
	return lengthOk
}

func (v *Validator) logFailure(resp Response, expectedStatus int, label string) {
	v.L.Errorf("%s failed: %s (expected %d, got %d), url: %s, duration: %.0fms, details: %s",
		label, ncmploader.FailureCategory(resp.Status), expectedStatus, resp.Status, resp.URL, toMillis(resp.Duration), failureDetails(resp))
}

type errorBody struct {
	Message string `json:"message"`
	Details string `json:"details"`
}

func failureDetails(resp Response) string {
	if resp.Err != nil {
		return resp.Err.Error()
	}
	body := strings.TrimSpace(string(resp.Body))
	if body == "" {
		return "empty body"
	}
	var e errorBody
	if err := jsoniter.UnmarshalFromString(body, &e); err == nil && (e.Message != "" || e.Details != "") {
		return fmt.Sprintf("message: %s, details: %s", e.Message, e.Details)
	}
	if len(body) > bodyPreviewLength {
		return body[:bodyPreviewLength] + "..."
	}
	return body
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
