/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/ratelimit"
)

const (
	DefaultResultsQueueCapacity = 100_000
	MetricsLogFile              = "requests_%s_%s_%d.csv"
	PercsLogFile                = "percs_%s_%s_%d.csv"
	ReportGraphFile             = "percs_%s_%s_%d.html"
	ReportPNGFile               = "percs_%s_%s_%d.png"
)

var (
	ResultsCsvHeader = []string{"RequestLabel", "BeginTimeNano", "EndTimeNano", "Elapsed", "StatusCode", "Error"}
	PercsCsvHeader   = []string{"RequestLabel", "Tick", "RPS", "P50", "P90", "P95", "P99", "Failed"}
)

// Controlled struct for adding test vars
type Controlled struct {
	Sleep int64
}

type ClusterTickMetrics struct {
	Samples [][]AttackResult
	Metrics *Metrics
}

type TickMetrics struct {
	Samples  []AttackResult
	Metrics  *Metrics
	Reported bool
}

type attackToken struct {
	TargetRPS int
	Step      int
	Tick      int
}

func (a attackToken) String() string {
	return fmt.Sprintf("targetRPS: %d, step: %d, tick: %d", a.TargetRPS, a.Step, a.Tick)
}

// Runner provides test context for attacking target with a scenario executor
type Runner struct {
	// Name of a runner
	Name string
	// Cfg runner config
	Cfg *RunnerConfig
	// prototype from which all attackers cloned
	attackerPrototype Attack
	// target RPS for step, changed every step
	targetRPS int
	// metrics for every received tick (completed requests)
	receivedTickMetricsMu *sync.Mutex
	receivedTickMetrics   map[int]*TickMetrics
	// ratelimiter for keeping constant rps inside test step
	rl ratelimit.Limiter
	// startedAt time when attackers started
	startedAt time.Time
	// TimeoutCtx test timeout ctx
	TimeoutCtx context.Context
	// test cancel func
	CancelFunc context.CancelFunc
	// next schedule chan to signal to attack
	next chan attackToken
	// attackers cloned for a prototype
	attackers []Attack

	// inner Results chan
	results chan AttackResult
	// outer Results chan, when called as a service, sends Results in batches
	OutResults chan []AttackResult
	// uniq error messages
	uniqErrors map[string]int
	// Failed means there some errors in test
	Failed int64
	// Report data
	Report *Report
	// data used to control attackers in test
	controlled Controlled
	// TestData data shared between attackers during test
	TestData     interface{}
	PromReporter *PromReporter
	// Metrics registry where builtin http_* and iteration metrics are recorded
	Metrics *MetricRegistry
	L       *Logger
}

// NewRunner creates new runner with attackers cloned from a prototype
func NewRunner(cfg *RunnerConfig, a Attack, data interface{}) (*Runner, error) {
	cfg.DefaultCfgValues()
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, errors.Wrap(ErrInvalidConfig, strings.Join(problems, "; "))
	}
	r := &Runner{
		Name:                  cfg.Name,
		Cfg:                   cfg,
		attackerPrototype:     a,
		targetRPS:             cfg.StartRPS,
		next:                  make(chan attackToken),
		attackers:             make([]Attack, 0, cfg.Attackers),
		results:               make(chan AttackResult, DefaultResultsQueueCapacity),
		OutResults:            make(chan []AttackResult, DefaultResultsQueueCapacity),
		receivedTickMetricsMu: &sync.Mutex{},
		receivedTickMetrics:   make(map[int]*TickMetrics),
		uniqErrors:            make(map[string]int),
		controlled:            Controlled{},
		TestData:              data,
		Metrics:               NewMetricRegistry(),
		L:                     NewLogger(cfg).With("runner", cfg.Name),
	}
	if cfg.StartRPS > 0 {
		r.rl = ratelimit.New(cfg.StartRPS)
	}
	for i := 0; i < cfg.Attackers; i++ {
		a := r.attackerPrototype.Clone(r)
		if err := a.Setup(*r.Cfg); err != nil {
			return nil, errors.Wrapf(errAttackerSetup, "attacker %d: %v", i, err)
		}
		r.attackers = append(r.attackers, a)
	}
	if cfg.ReportOptions.CSV {
		report, err := NewReport(r.Cfg)
		if err != nil {
			return nil, err
		}
		r.Report = report
	}
	if cfg.Prometheus != nil && cfg.Prometheus.Enable {
		r.PromReporter = NewPromReporter(cfg.Prometheus.Port)
	}
	if cfg.PprofPort > 0 {
		servePprof(cfg.PprofPort, r.L)
	}
	return r, nil
}

// Run runs the test, returns max rps among ticks
func (r *Runner) Run(serverCtx context.Context) (float64, error) {
	if serverCtx == nil {
		serverCtx = context.Background()
	}
	if r.Cfg.WaitBeforeSec > 0 {
		r.L.Infof("waiting for %d seconds before start", r.Cfg.WaitBeforeSec)
		select {
		case <-time.After(time.Duration(r.Cfg.WaitBeforeSec) * time.Second):
		case <-serverCtx.Done():
			close(r.OutResults)
			return 0, serverCtx.Err()
		}
	}
	r.L.Infof("runner started, executor: %s", r.Cfg.Executor)
	r.TimeoutCtx, r.CancelFunc = context.WithTimeout(serverCtx, time.Duration(r.Cfg.TestTimeSec)*time.Second)
	defer r.CancelFunc()
	r.startedAt = time.Now()

	if r.Cfg.HandleSignals {
		r.handleShutdownSignal()
	}
	wg := &sync.WaitGroup{}
	for atkIdx, attacker := range r.attackers {
		wg.Add(1)
		go func(num int, a Attack) {
			defer wg.Done()
			switch r.Cfg.Executor {
			case ConstantVUs:
				closedLoopAttack(a, r, num)
			default:
				attack(a, r, num)
			}
		}(atkIdx, attacker)
	}
	switch r.Cfg.Executor {
	case ConstantArrivalRate:
		r.schedule()
	case SharedIterations:
		r.scheduleIterations()
	}
	collected := r.collectResults()
	wg.Wait()
	close(r.results)
	<-collected
	r.CancelFunc()

	for _, a := range r.attackers {
		if err := a.Teardown(); err != nil {
			r.L.Errorf("attacker teardown: %v", err)
		}
	}
	r.L.Infof("runner exited")
	maxRPS := r.maxRPS()
	r.L.Infof("max rps: %.2f", maxRPS)
	if r.Report != nil {
		if err := r.Report.flushLogs(); err != nil {
			return maxRPS, err
		}
		r.Report.plot()
	}
	return maxRPS, nil
}

func (r *Runner) currentTick() int {
	return int(time.Since(r.startedAt)/time.Second) + 1
}

// schedule creates schedule plan for a test
func (r *Runner) schedule() {
	go func() {
		defer close(r.next)
		var (
			currentStep         = 1
			currentTick         = 1
			totalRequestsFired  = 0
			requestsFiredInTick = 0
		)
		for {
			r.rl.Take()
			select {
			case <-r.TimeoutCtx.Done():
				r.L.Infof("total requests fired: %d", totalRequestsFired)
				return
			case r.next <- attackToken{
				TargetRPS: r.targetRPS,
				Step:      currentStep,
				Tick:      currentTick,
			}:
			}
			totalRequestsFired++
			requestsFiredInTick++
			if requestsFiredInTick == r.targetRPS {
				currentTick += 1
				requestsFiredInTick = 0
				r.L.Debugf("current active goroutines: %d", runtime.NumGoroutine())
				if r.Cfg.StepRPS > 0 && (currentTick-1)%r.Cfg.StepDurationSec == 0 {
					r.targetRPS += r.Cfg.StepRPS
					r.rl = ratelimit.New(r.targetRPS)
					currentStep += 1
					r.L.Infof("next step: step -> %d, rps -> %d", currentStep, r.targetRPS)
				}
			}
		}
	}()
}

// scheduleIterations hands out a fixed amount of iterations to attackers
func (r *Runner) scheduleIterations() {
	go func() {
		defer close(r.next)
		for i := 0; i < r.Cfg.Iterations; i++ {
			select {
			case <-r.TimeoutCtx.Done():
				r.L.Infof("iterations fired before timeout: %d/%d", i, r.Cfg.Iterations)
				return
			case r.next <- attackToken{Step: 1, Tick: r.currentTick()}:
			}
		}
	}()
}

// collectResults collects attackers Results and writes them to one of report options
func (r *Runner) collectResults() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		totalRequestsStored := 0
		for res := range r.results {
			r.L.Debugf("received result: %v", res)
			totalRequestsStored++

			errorForReport := "ok"
			if res.DoResult.Error != "" {
				r.uniqErrors[res.DoResult.Error] += 1
				r.L.Debugf("attacker error: %s", res.DoResult.Error)
				errorForReport = res.DoResult.Error
			}
			r.recordMetrics(res)
			if r.Report != nil {
				r.Report.writeResultEntry(res, errorForReport)
			}
			r.processTickMetrics(res)
		}
		r.flushTickMetrics()
		r.L.Infof("total requests stored: %d", totalRequestsStored)
		r.printErrors()
		close(r.OutResults)
	}()
	return done
}

// recordMetrics records builtin metrics, untagged and tagged with scenario name
func (r *Runner) recordMetrics(res AttackResult) {
	recordBuiltinMetrics(r.Metrics, r.Name, res)
}

func recordBuiltinMetrics(reg *MetricRegistry, scenario string, res AttackResult) {
	for _, name := range []string{"", scenario} {
		tagged := func(metric string) string {
			if name == "" {
				return metric
			}
			return ScenarioTagged(metric, name)
		}
		reg.Counter(tagged(MetricIterations)).Add(1)
		reg.Trend(tagged(MetricIterationDuration)).AddDuration(res.Elapsed)
		if !res.DoResult.HTTP {
			continue
		}
		reg.Trend(tagged(MetricHTTPReqDuration)).AddDuration(res.DoResult.Elapsed(res.Elapsed))
		reg.Counter(tagged(MetricHTTPReqs)).Add(1)
		reg.Rate(tagged(MetricHTTPReqFailed)).Add(res.DoResult.Failed())
		reg.Counter(tagged(MetricDataReceived)).Add(float64(res.DoResult.BytesIn))
		reg.Counter(tagged(MetricDataSent)).Add(float64(res.DoResult.BytesOut))
	}
}

// processTickMetrics add attack result to tick metrics, if it's last result in tick then report
func (r *Runner) processTickMetrics(res AttackResult) {
	r.receivedTickMetricsMu.Lock()
	defer r.receivedTickMetricsMu.Unlock()
	tick := res.AttackToken.Tick
	if _, ok := r.receivedTickMetrics[tick]; !ok {
		r.receivedTickMetrics[tick] = &TickMetrics{
			make([]AttackResult, 0),
			NewMetrics(),
			false,
		}
	}
	currentTickMetrics := r.receivedTickMetrics[tick]
	if currentTickMetrics.Reported {
		return
	}
	currentTickMetrics.Samples = append(currentTickMetrics.Samples, res)
	if r.Cfg.Executor == ConstantArrivalRate {
		if len(currentTickMetrics.Samples) == res.AttackToken.TargetRPS {
			r.reportTick(tick, currentTickMetrics)
		}
		return
	}
	// closed executors have no amount of requests per tick, tick is complete when next but one tick started
	for _, t := range r.unreportedTicks() {
		if t < tick-1 {
			r.reportTick(t, r.receivedTickMetrics[t])
		}
	}
}

// flushTickMetrics reports incomplete ticks left after test ends
func (r *Runner) flushTickMetrics() {
	r.receivedTickMetricsMu.Lock()
	defer r.receivedTickMetricsMu.Unlock()
	for _, t := range r.unreportedTicks() {
		r.reportTick(t, r.receivedTickMetrics[t])
	}
}

func (r *Runner) unreportedTicks() []int {
	ticks := make([]int, 0)
	for t, m := range r.receivedTickMetrics {
		if !m.Reported && len(m.Samples) > 0 {
			ticks = append(ticks, t)
		}
	}
	sort.Ints(ticks)
	return ticks
}

func (r *Runner) reportTick(tick int, tm *TickMetrics) {
	if r.Cfg.ReportOptions.Stream {
		r.OutResults <- tm.Samples
	}
	for _, s := range tm.Samples {
		tm.Metrics.add(s)
	}
	tm.Metrics.update()
	if r.Cfg.SuccessRatio > 0 && tm.Metrics.Success < r.Cfg.SuccessRatio {
		r.L.Infof("success ratio is too low: [ %.2f < %.2f ]", tm.Metrics.Success, r.Cfg.SuccessRatio)
		atomic.StoreInt64(&r.Failed, 1)
		r.CancelFunc()
	}
	token := tm.Samples[0].AttackToken
	r.L.Infof(
		"step: %d, tick: %d, rate [%.4f -> %v], perc: 50 [%v] 90 [%v] 99 [%v], # requests [%d], %% success [%.2f], failures %v",
		token.Step,
		tick,
		tm.Metrics.Rate,
		token.TargetRPS,
		tm.Metrics.Latencies.P50,
		tm.Metrics.Latencies.P90,
		tm.Metrics.Latencies.P99,
		tm.Metrics.Requests,
		tm.Metrics.successPercent(),
		tm.Metrics.Failures,
	)
	if r.Report != nil {
		r.Report.writePercentilesEntry(r.Name, tick, tm.Metrics)
	}
	if r.PromReporter != nil {
		r.PromReporter.reportTick(r.Name, tm)
	}
	tm.Reported = true
}

// printErrors print uniq errors
func (r *Runner) printErrors() {
	if len(r.uniqErrors) == 0 {
		return
	}
	r.L.Infof("Uniq errors:")
	for e, count := range r.uniqErrors {
		r.L.Infof("error: %s, count: %d", e, count)
	}
}

// maxRPS calculate max rps for test among ticks
func (r *Runner) maxRPS() float64 {
	r.receivedTickMetricsMu.Lock()
	defer r.receivedTickMetricsMu.Unlock()
	rates := make([]float64, 0)
	for _, m := range r.receivedTickMetrics {
		if m.Reported {
			rates = append(rates, m.Metrics.Rate)
		}
	}
	return MaxRPS(rates)
}

// UniqErrors returns copy of uniq errors with their counts, valid after Run
func (r *Runner) UniqErrors() map[string]int {
	res := make(map[string]int, len(r.uniqErrors))
	for k, v := range r.uniqErrors {
		res[k] = v
	}
	return res
}
