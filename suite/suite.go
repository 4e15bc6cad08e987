/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

// Package suite runs a profile: registers CM handles, runs all scenarios, deregisters and reports KPIs
package suite

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/scenarios"
)

const (
	GaugeCmHandlesCreatedPerSecond = "cmhandles_created_per_second"
	GaugeCmHandlesDeletedPerSecond = "cmhandles_deleted_per_second"
)

var errThresholdsFailed = errors.New("some thresholds have failed")

// ScenarioResult outcome of one profile scenario
type ScenarioResult struct {
	Name   string
	MaxRPS float64
	Nodes  int
	Err    error
}

type Suite struct {
	Profile *Profile
	// Base runner config every scenario config is derived from
	Base ncmploader.RunnerConfig
	Env  *scenarios.Env
	L    *ncmploader.Logger

	mu      sync.Mutex
	results []ScenarioResult
}

func New(p *Profile, base ncmploader.RunnerConfig, env *scenarios.Env) *Suite {
	return &Suite{
		Profile: p,
		Base:    base,
		Env:     env,
		L:       env.L.With("profile", p.Name),
	}
}

// Execute runs setup, scenarios, teardown and writes KPI summary to w.
// Teardown runs even if scenarios failed, nothing runs after a failed setup.
func (s *Suite) Execute(ctx context.Context, w io.Writer) error {
	if err := s.Setup(ctx); err != nil {
		return err
	}
	runErr := s.Run(ctx)
	// cleanup must not be skipped when the run was cancelled
	if err := s.Teardown(context.Background()); err != nil {
		s.L.Errorf("teardown: %s", err)
	}
	passed, err := s.Summary(w)
	if err != nil {
		s.L.Warnf("summary: %s", err)
	}
	if runErr != nil {
		return runErr
	}
	if !passed {
		return errThresholdsFailed
	}
	return nil
}

// Setup registers all CM handles and waits until they are READY
func (s *Suite) Setup(ctx context.Context) error {
	start := time.Now()
	_, registered, err := s.Env.Client.RegisterAll(ctx, s.Env.Metrics)
	if err != nil {
		return errors.Wrap(err, "setup")
	}
	s.L.Infof("registered %d CM handles", registered)
	if err := s.Env.Client.WaitForAllCmHandlesToBeReady(ctx); err != nil {
		return errors.Wrap(err, "setup")
	}
	elapsed := time.Since(start).Seconds()
	s.Env.Metrics.Gauge(GaugeCmHandlesCreatedPerSecond).Add(float64(s.Env.Cfg.TotalCmHandles) / elapsed)
	s.L.Infof("setup done in %.3fs", elapsed)
	return nil
}

// Run runs all profile scenarios concurrently, each one waits for its start time
func (s *Suite) Run(ctx context.Context) error {
	wg := &sync.WaitGroup{}
	for _, name := range s.Profile.ScenarioNames() {
		cfg, err := s.Profile.Scenarios[name].RunnerConfig(name, s.Base)
		if err != nil {
			return errors.Wrapf(err, "scenario %s", name)
		}
		wg.Add(1)
		go func(cfg ncmploader.RunnerConfig) {
			defer wg.Done()
			res := s.runScenario(ctx, &cfg)
			if res.Err != nil {
				s.L.Errorf("scenario %s failed: %s", res.Name, res.Err)
			}
			s.mu.Lock()
			s.results = append(s.results, res)
			s.mu.Unlock()
		}(cfg)
	}
	wg.Wait()
	for _, res := range s.Results() {
		if res.Err != nil {
			return errors.Wrapf(res.Err, "scenario %s", res.Name)
		}
	}
	return nil
}

func (s *Suite) runScenario(ctx context.Context, cfg *ncmploader.RunnerConfig) ScenarioResult {
	res := ScenarioResult{Name: cfg.Name, Nodes: 1}
	if cfg.ClusterOptions != nil && len(cfg.ClusterOptions.Nodes) > 0 {
		res.Nodes = len(cfg.ClusterOptions.Nodes)
		c, err := ncmploader.NewClusterClient(ctx, cfg)
		if err != nil {
			res.Err = err
			return res
		}
		defer c.Close()
		c.Metrics = s.Env.Metrics
		res.MaxRPS, res.Err = c.Run(ctx)
		return res
	}
	atk, err := ncmploader.AttackerFromString(cfg.Exec)
	if err != nil {
		res.Err = err
		return res
	}
	r, err := ncmploader.NewRunner(cfg, atk, s.Env)
	if err != nil {
		res.Err = err
		return res
	}
	r.Metrics = s.Env.Metrics
	res.MaxRPS, res.Err = r.Run(ctx)
	return res
}

// Results scenario results in completion order
func (s *Suite) Results() []ScenarioResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ScenarioResult(nil), s.results...)
}

// Teardown deregisters all CM handles, then waits for container cool down
func (s *Suite) Teardown(ctx context.Context) error {
	elapsed, deregistered, err := s.Env.Client.DeregisterAll(ctx, s.Env.Metrics)
	if elapsed > 0 {
		s.Env.Metrics.Gauge(GaugeCmHandlesDeletedPerSecond).Add(float64(deregistered) / elapsed.Seconds())
	}
	s.L.Infof("deregistered %d CM handles", deregistered)
	s.Env.Close()
	if cd := s.Env.Cfg.CoolDown(); cd > 0 {
		s.L.Infof("cooling down for %s", cd)
		select {
		case <-time.After(cd):
		case <-ctx.Done():
		}
	}
	if err != nil {
		return errors.Wrap(err, "teardown")
	}
	return nil
}

// Summary logs checks and thresholds and writes KPI csv to w, returns false if any threshold failed
func (s *Suite) Summary(w io.Writer) (bool, error) {
	s.Env.Metrics.Finish()
	for _, c := range s.Env.Metrics.Checks() {
		s.L.Infof("check %q: passes %d, fails %d", c.Name, c.Passes, c.Fails)
	}
	results, passed := ncmploader.EvaluateThresholds(s.Env.Metrics, s.Profile.Thresholds)
	for _, r := range results {
		switch {
		case r.Err != nil:
			s.L.Warnf("threshold %s %q: %s", r.Metric, r.Threshold.Source, r.Err)
		case r.Passed:
			s.L.Infof("threshold %s %q passed, actual %.3f", r.Metric, r.Threshold.Source, r.Actual)
		default:
			s.L.Errorf("threshold %s %q failed, actual %.3f", r.Metric, r.Threshold.Source, r.Actual)
		}
	}
	report, reportErr := ncmploader.MakeCustomSummaryReport(s.Profile.KPI, s.Profile.Thresholds, s.Env.Metrics)
	if _, err := fmt.Fprint(w, report); err != nil {
		return passed, errors.Wrap(err, "failed to write summary")
	}
	return passed, reportErr
}
