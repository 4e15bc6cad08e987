/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultPrometheusPort = 2112

var (
	scenarioLabel = []string{"scenario"}

	promTickSuccessRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ncmploader_tick_success_ratio",
		Help: "Success requests ratio",
	}, scenarioLabel)
	promTickP50 = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ncmploader_tick_p50",
		Help: "Response time 50 Percentile",
	}, scenarioLabel)
	promTickP95 = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ncmploader_tick_p95",
		Help: "Response time 95 Percentile",
	}, scenarioLabel)
	promTickP99 = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ncmploader_tick_p99",
		Help: "Response time 99 Percentile",
	}, scenarioLabel)
	promTickMax = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ncmploader_tick_max",
		Help: "Response time MAX",
	}, scenarioLabel)
	promRPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ncmploader_tick_rps",
		Help: "Requests per second rate",
	}, scenarioLabel)
	promFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ncmploader_failures_total",
		Help: "Failed requests by failure category",
	}, []string{"scenario", "category"})

	promServeOnce sync.Once
)

type PromReporter struct {
	Port int
}

// NewPromReporter serves /metrics once per process, all runners share registry
func NewPromReporter(port int) *PromReporter {
	if port == 0 {
		port = DefaultPrometheusPort
	}
	promServeOnce.Do(func() {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
		}()
	})
	return &PromReporter{Port: port}
}

func (m *PromReporter) reportTick(scenario string, tm *TickMetrics) {
	promTickP50.WithLabelValues(scenario).Set(float64(tm.Metrics.Latencies.P50.Milliseconds()))
	promTickP95.WithLabelValues(scenario).Set(float64(tm.Metrics.Latencies.P95.Milliseconds()))
	promTickP99.WithLabelValues(scenario).Set(float64(tm.Metrics.Latencies.P99.Milliseconds()))
	promTickMax.WithLabelValues(scenario).Set(float64(tm.Metrics.Latencies.Max.Milliseconds()))
	promTickSuccessRatio.WithLabelValues(scenario).Set(tm.Metrics.Success)
	promRPS.WithLabelValues(scenario).Set(tm.Metrics.Rate)
	for category, n := range tm.Metrics.Failures {
		promFailures.WithLabelValues(scenario, category).Add(float64(n))
	}
}
