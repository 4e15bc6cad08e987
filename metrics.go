/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"time"

	"github.com/streadway/quantile"
)

// Metrics aggregated results of one tick, on a cluster client results of all nodes for that tick
type Metrics struct {
	Latencies LatencyMetrics
	// Requests results in tick, HTTP or not
	Requests uint64
	// Rate requests per second measured between first and last begin
	Rate float64
	// Success ratio of results that are not failed
	Success float64
	// Labels number of results per request label
	Labels map[string]uint64
	// Failures number of failed results per failure category
	Failures map[string]uint64

	first, last time.Time
	success     uint64
	latencies   *quantile.Estimator
}

type LatencyMetrics struct {
	Total time.Duration
	Mean  time.Duration
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{
		Labels:   make(map[string]uint64),
		Failures: make(map[string]uint64),
		latencies: quantile.New(
			quantile.Known(0.50, 0.01),
			quantile.Known(0.90, 0.005),
			quantile.Known(0.95, 0.001),
			quantile.Known(0.99, 0.0005),
		),
	}
}

func (m *Metrics) add(r AttackResult) {
	m.Requests++
	m.Labels[r.DoResult.RequestLabel]++
	elapsed := r.DoResult.Elapsed(r.Elapsed)
	m.Latencies.Total += elapsed
	m.latencies.Add(float64(elapsed))
	if elapsed > m.Latencies.Max {
		m.Latencies.Max = elapsed
	}
	if m.first.IsZero() || r.Begin.Before(m.first) {
		m.first = r.Begin
	}
	if r.Begin.After(m.last) {
		m.last = r.Begin
	}
	if r.DoResult.Failed() {
		m.Failures[r.DoResult.FailureCategory()]++
		return
	}
	m.success++
}

// update computes ratios and percentiles, called once all tick results are added
func (m *Metrics) update() {
	if m.Requests == 0 {
		return
	}
	n := float64(m.Requests)
	// single request or all started at once
	m.Rate = n
	if secs := m.last.Sub(m.first).Seconds(); secs > 0 {
		m.Rate = n / secs
	}
	m.Success = float64(m.success) / n
	m.Latencies.Mean = time.Duration(float64(m.Latencies.Total) / n)
	m.Latencies.P50 = time.Duration(m.latencies.Get(0.50))
	m.Latencies.P90 = time.Duration(m.latencies.Get(0.90))
	m.Latencies.P95 = time.Duration(m.latencies.Get(0.95))
	m.Latencies.P99 = time.Duration(m.latencies.Get(0.99))
}

func (m *Metrics) successPercent() float64 {
	if m.Success < 0 {
		return 0
	}
	return m.Success * 100
}

func (m *Metrics) failed() uint64 {
	var n uint64
	for _, v := range m.Failures {
		n += v
	}
	return n
}
