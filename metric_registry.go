/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/streadway/quantile"
)

// Aggregation names reported by metrics
const (
	AggAvg    = "avg"
	AggMin    = "min"
	AggMed    = "med"
	AggMax    = "max"
	AggP90    = "p(90)"
	AggP95    = "p(95)"
	AggP99    = "p(99)"
	AggP999   = "p(99.9)"
	AggCount  = "count"
	AggRate   = "rate"
	AggValue  = "value"
	AggPasses = "passes"
	AggFails  = "fails"
)

const (
	MetricHTTPReqDuration   = "http_req_duration"
	MetricHTTPReqs          = "http_reqs"
	MetricHTTPReqFailed     = "http_req_failed"
	MetricIterations        = "iterations"
	MetricIterationDuration = "iteration_duration"
	MetricDataReceived      = "data_received"
	MetricDataSent          = "data_sent"
	MetricChecks            = "checks"
)

// ScenarioTagged returns metric name tagged with scenario, e.g. http_req_duration{scenario:cm_search_module}
func ScenarioTagged(metric, scenario string) string {
	return fmt.Sprintf("%s{scenario:%s}", metric, scenario)
}

type metric interface {
	values(elapsed time.Duration) map[string]float64
}

// Trend collects values and computes avg, min, med, max and percentiles
type Trend struct {
	mu    sync.Mutex
	count uint64
	sum   float64
	min   float64
	max   float64
	est   *quantile.Estimator
}

func newTrend() *Trend {
	return &Trend{
		est: quantile.New(
			quantile.Known(0.50, 0.01),
			quantile.Known(0.90, 0.005),
			quantile.Known(0.95, 0.001),
			quantile.Known(0.99, 0.0005),
			quantile.Known(0.999, 0.0001),
		),
	}
}

// Add adds a sample
func (t *Trend) Add(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 || v < t.min {
		t.min = v
	}
	if t.count == 0 || v > t.max {
		t.max = v
	}
	t.count++
	t.sum += v
	t.est.Add(v)
}

// AddDuration adds a duration sample in milliseconds
func (t *Trend) AddDuration(d time.Duration) {
	t.Add(float64(d) / float64(time.Millisecond))
}

func (t *Trend) values(_ time.Duration) map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return map[string]float64{AggCount: 0}
	}
	return map[string]float64{
		AggAvg:   t.sum / float64(t.count),
		AggMin:   t.min,
		AggMed:   t.est.Get(0.50),
		AggMax:   t.max,
		AggP90:   t.est.Get(0.90),
		AggP95:   t.est.Get(0.95),
		AggP99:   t.est.Get(0.99),
		AggP999:  t.est.Get(0.999),
		AggCount: float64(t.count),
	}
}

// Gauge keeps the last added value
type Gauge struct {
	mu    sync.Mutex
	set   bool
	value float64
	min   float64
	max   float64
}

// Add sets gauge value
func (g *Gauge) Add(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.set || v < g.min {
		g.min = v
	}
	if !g.set || v > g.max {
		g.max = v
	}
	g.value = v
	g.set = true
}

func (g *Gauge) values(_ time.Duration) map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.set {
		return map[string]float64{}
	}
	return map[string]float64{AggValue: g.value, AggMin: g.min, AggMax: g.max}
}

// Counter sums added values, rate is per second of the test
type Counter struct {
	mu    sync.Mutex
	count float64
}

// Add adds to the counter
func (c *Counter) Add(v float64) {
	c.mu.Lock()
	c.count += v
	c.mu.Unlock()
}

func (c *Counter) values(elapsed time.Duration) map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	rate := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rate = c.count / secs
	}
	return map[string]float64{AggCount: c.count, AggRate: rate}
}

// Rate tracks ratio of non-zero (passed) samples
type Rate struct {
	mu     sync.Mutex
	passes uint64
	fails  uint64
}

// Add adds a sample
func (r *Rate) Add(ok bool) {
	r.mu.Lock()
	if ok {
		r.passes++
	} else {
		r.fails++
	}
	r.mu.Unlock()
}

func (r *Rate) values(_ time.Duration) map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := r.passes + r.fails
	rate := 0.0
	if total > 0 {
		rate = float64(r.passes) / float64(total)
	}
	return map[string]float64{AggRate: rate, AggPasses: float64(r.passes), AggFails: float64(r.fails)}
}

// CheckResult amount of passed and failed checks with the same name
type CheckResult struct {
	Name   string
	Passes uint64
	Fails  uint64
}

// MetricRegistry holds all custom and builtin metrics of a test run
type MetricRegistry struct {
	mu       sync.Mutex
	started  time.Time
	finished time.Time
	metrics  map[string]metric
	checks   map[string]*CheckResult
}

func NewMetricRegistry() *MetricRegistry {
	return &MetricRegistry{
		started: time.Now(),
		metrics: make(map[string]metric),
		checks:  make(map[string]*CheckResult),
	}
}

func (r *MetricRegistry) getOrCreate(name string, create func() metric) metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	if !ok {
		m = create()
		r.metrics[name] = m
	}
	return m
}

// Trend returns trend by name, creating it when absent
func (r *MetricRegistry) Trend(name string) *Trend {
	m := r.getOrCreate(name, func() metric { return newTrend() })
	t, ok := m.(*Trend)
	if !ok {
		panic(fmt.Sprintf("metric %s already registered as %T", name, m))
	}
	return t
}

// Gauge returns gauge by name, creating it when absent
func (r *MetricRegistry) Gauge(name string) *Gauge {
	m := r.getOrCreate(name, func() metric { return &Gauge{} })
	g, ok := m.(*Gauge)
	if !ok {
		panic(fmt.Sprintf("metric %s already registered as %T", name, m))
	}
	return g
}

// Counter returns counter by name, creating it when absent
func (r *MetricRegistry) Counter(name string) *Counter {
	m := r.getOrCreate(name, func() metric { return &Counter{} })
	c, ok := m.(*Counter)
	if !ok {
		panic(fmt.Sprintf("metric %s already registered as %T", name, m))
	}
	return c
}

// Rate returns rate by name, creating it when absent
func (r *MetricRegistry) Rate(name string) *Rate {
	m := r.getOrCreate(name, func() metric { return &Rate{} })
	rt, ok := m.(*Rate)
	if !ok {
		panic(fmt.Sprintf("metric %s already registered as %T", name, m))
	}
	return rt
}

// Check records named check result and returns ok
func (r *MetricRegistry) Check(name string, ok bool) bool {
	r.Rate(MetricChecks).Add(ok)
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exists := r.checks[name]
	if !exists {
		c = &CheckResult{Name: name}
		r.checks[name] = c
	}
	if ok {
		c.Passes++
	} else {
		c.Fails++
	}
	return ok
}

// Checks returns all checks sorted by name
func (r *MetricRegistry) Checks() []CheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]CheckResult, 0, len(r.checks))
	for _, c := range r.checks {
		res = append(res, *c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Finish fixes test duration used for counter rates
func (r *MetricRegistry) Finish() {
	r.mu.Lock()
	r.finished = time.Now()
	r.mu.Unlock()
}

func (r *MetricRegistry) elapsed() time.Duration {
	if r.finished.IsZero() {
		return time.Since(r.started)
	}
	return r.finished.Sub(r.started)
}

// Values returns aggregated values of a metric
func (r *MetricRegistry) Values(name string) (map[string]float64, error) {
	r.mu.Lock()
	m, ok := r.metrics[name]
	elapsed := r.elapsed()
	r.mu.Unlock()
	if !ok {
		return nil, errors.Wrap(ErrUnknownMetric, name)
	}
	return m.values(elapsed), nil
}

// Names returns sorted metric names
func (r *MetricRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.metrics))
	for n := range r.metrics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
