/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package suite

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmp"
	"github.com/cps-perf/ncmploader/ncmpstub"
	"github.com/cps-perf/ncmploader/scenarios"
)

const testProfile = `
name: e2e
scenarios:
  passthrough_read_alt_id:
    executor: shared-iterations
    exec: passthroughReadAltIdScenario
    vus: 2
    iterations: 6
    maxDuration: 20s
  id_search_module:
    executor: shared-iterations
    exec: cmHandleIdSearchModuleScenario
    vus: 1
    iterations: 3
    maxDuration: 20s
    startTime: 1s
thresholds:
  cmhandles_created_per_second: ["value > 0"]
  cmhandles_deleted_per_second: ["value > 0"]
  http_req_failed: ["rate == 0"]
  ncmp_overhead_passthrough_read_alt_id: ["avg <= 5000"]
  id_search_module_duration: ["avg <= 5000"]
kpi:
  - testNumber: "0"
    testName: Registration of CM-handles
    unit: CM-handles/second
    measurementName: cmhandles_created_per_second
    currentExpectation: 22
  - testNumber: "2"
    testName: Pass-through read with alternate id
    unit: milliseconds
    measurementName: ncmp_overhead_passthrough_read_alt_id
    currentExpectation: 18
  - testNumber: "4b"
    testName: CM-handle ID search with Module filter
    unit: milliseconds
    measurementName: id_search_module_duration
    currentExpectation: 2300
`

func newTestSuite(t *testing.T, profile string, opts ncmpstub.Options) (*Suite, *ncmpstub.Stub) {
	p, err := parseProfile([]byte(profile), true)
	require.NoError(t, err)

	stub := ncmpstub.New(opts, nil, nil)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	cfg := ncmp.DefaultConfig()
	cfg.NCMPBaseURL = srv.URL
	cfg.TotalCmHandles = 30
	cfg.RegistrationBatchSize = 20
	cfg.ReadDataForCmHandleDelayMs = int(opts.ReadDelay / time.Millisecond)
	cfg.PollIntervalMs = 20
	cfg.ReadyTimeoutSec = 1
	cfg.ContainerCoolDownTimeInSeconds = 0
	env := scenarios.NewEnv(cfg, nil, nil)
	return New(p, ncmploader.RunnerConfig{LogLevel: "error"}, env), stub
}

func fastStubOptions() ncmpstub.Options {
	opts := ncmpstub.DefaultOptions()
	opts.ReadDelay = 5 * time.Millisecond
	opts.WriteDelay = 5 * time.Millisecond
	return opts
}

func TestEmbeddedProfiles(t *testing.T) {
	require.Equal(t, []string{ProfileEndurance, ProfileKPI}, ProfileNames())
	for _, name := range ProfileNames() {
		p, err := LoadProfile(name)
		require.NoError(t, err, name)
		require.Equal(t, name, p.Name)
		require.NotEmpty(t, p.KPI)
	}
	_, err := LoadProfile("nope")
	require.Equal(t, errInvalidProfile, errors.Cause(err))
}

func TestScenarioRunnerConfig(t *testing.T) {
	base := ncmploader.RunnerConfig{
		LogLevel:        "error",
		AttackerTimeout: 7,
		StartRPS:        100,
		ReportOptions:   &ncmploader.ReportOptions{CSV: true, Dir: "reports"},
	}

	cfg, err := ScenarioConfig{
		Executor:  ncmploader.ConstantArrivalRate,
		Exec:      "passthroughReadAltIdScenario",
		Rate:      25,
		VUs:       5,
		Duration:  "15m",
		StartTime: "200ms",
	}.RunnerConfig("read", base)
	require.NoError(t, err)
	require.Equal(t, "read", cfg.Name)
	require.Equal(t, 25, cfg.StartRPS)
	require.Equal(t, 5, cfg.Attackers)
	require.Equal(t, 900, cfg.TestTimeSec)
	require.Equal(t, 1, cfg.WaitBeforeSec)
	require.Equal(t, 7, cfg.AttackerTimeout)
	require.Equal(t, "error", cfg.LogLevel)
	require.Equal(t, "reports", cfg.ReportOptions.Dir)
	require.False(t, cfg.ReportOptions == base.ReportOptions)

	cfg, err = ScenarioConfig{
		Executor:   ncmploader.SharedIterations,
		Exec:       "legacyBatchConsumeScenario",
		VUs:        1,
		Iterations: 1,
		TimeoutSec: 960,
	}.RunnerConfig("consume", ncmploader.RunnerConfig{})
	require.NoError(t, err)
	require.Equal(t, 0, cfg.StartRPS)
	require.Equal(t, 1, cfg.Iterations)
	require.Equal(t, int(DefaultMaxDuration/time.Second), cfg.TestTimeSec)
	require.Equal(t, 960, cfg.AttackerTimeout)

	cfg, err = ScenarioConfig{Executor: ncmploader.ConstantVUs, Exec: "x", VUs: 3, Duration: "2s"}.
		RunnerConfig("vus", ncmploader.RunnerConfig{})
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Attackers)
	require.Equal(t, 2, cfg.TestTimeSec)
	require.Equal(t, DefaultAttackerTimeoutSec, cfg.AttackerTimeout)

	_, err = ScenarioConfig{Executor: ncmploader.ConstantVUs, Duration: "15 minutes"}.RunnerConfig("bad", base)
	require.Error(t, err)
}

func TestInvalidProfile(t *testing.T) {
	_, err := parseProfile([]byte(`{
		"name": "broken",
		"scenarios": {
			"unknown": {"executor": "constant-vus", "exec": "noSuchScenario", "vus": 1, "duration": "1s"},
			"no_vus": {"executor": "constant-vus", "exec": "writeSmallDataJobScenario", "duration": "1s"}
		},
		"thresholds": {"http_req_failed": ["rate = 0"]},
		"kpi": [{"testNumber": "1", "measurementName": "cmhandles_deleted_per_second"}]
	}`), false)
	require.Equal(t, errInvalidProfile, errors.Cause(err))
	for _, problem := range []string{
		"unknown: noSuchScenario: unknown attacker",
		"no_vus: please set attackers > 0",
		"malformed threshold",
		"kpi 1: no threshold for cmhandles_deleted_per_second",
	} {
		require.Contains(t, err.Error(), problem)
	}
}

func TestSuiteExecute(t *testing.T) {
	s, stub := newTestSuite(t, testProfile, fastStubOptions())
	out := &bytes.Buffer{}
	require.NoError(t, s.Execute(context.Background(), out))

	require.Equal(t, 0, stub.Count())
	require.Len(t, s.Results(), 2)
	for _, res := range s.Results() {
		require.NoError(t, res.Err, res.Name)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, ncmploader.SummaryCsvHeader, lines[0])
	require.True(t, strings.HasPrefix(lines[1], "0,Registration of CM-handles,CM-handles/second,0,22,"), lines[1])
	require.True(t, strings.HasPrefix(lines[3], "4b,CM-handle ID search with Module filter,milliseconds,5000,2300,"), lines[3])
	for _, l := range lines[1:] {
		require.False(t, strings.HasSuffix(l, ",-"), l)
	}

	v, err := s.Env.Metrics.Values(ncmploader.ScenarioTagged(ncmploader.MetricHTTPReqs, "passthrough_read_alt_id"))
	require.NoError(t, err)
	require.Equal(t, float64(6), v[ncmploader.AggCount])
	deleted, err := s.Env.Metrics.Values(GaugeCmHandlesDeletedPerSecond)
	require.NoError(t, err)
	require.Greater(t, deleted[ncmploader.AggValue], float64(0))
	for _, c := range s.Env.Metrics.Checks() {
		require.Zero(t, c.Fails, c.Name)
	}
}

func TestSuiteFailedThreshold(t *testing.T) {
	profile := strings.Replace(testProfile, `id_search_module_duration: ["avg <= 5000"]`, `id_search_module_duration: ["avg < 0"]`, 1)
	s, _ := newTestSuite(t, profile, fastStubOptions())
	out := &bytes.Buffer{}
	err := s.Execute(context.Background(), out)
	require.Equal(t, errThresholdsFailed, err)
	// summary is still written
	require.Contains(t, out.String(), "4b,CM-handle ID search with Module filter,milliseconds,0,2300,")
}

func TestSuiteSetupFailsWhenHandlesAreNotReady(t *testing.T) {
	opts := fastStubOptions()
	opts.ReadyAfter = time.Hour
	s, stub := newTestSuite(t, testProfile, opts)
	out := &bytes.Buffer{}
	err := s.Execute(context.Background(), out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "setup")
	require.Empty(t, s.Results())
	require.Empty(t, out.String())
	require.Equal(t, 30, stub.Count())
}

func TestSuiteTeardownOnCancelledRun(t *testing.T) {
	profile := strings.Replace(testProfile, "startTime: 1s", "startTime: 30s", 1)
	s, stub := newTestSuite(t, profile, fastStubOptions())
	require.NoError(t, s.Setup(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	require.Equal(t, context.DeadlineExceeded, errors.Cause(err))
	require.NoError(t, s.Teardown(context.Background()))
	require.Equal(t, 0, stub.Count())
}

func TestSuiteClusterMode(t *testing.T) {
	profile := `
name: cluster
scenarios:
  passthrough_read_alt_id:
    executor: constant-arrival-rate
    exec: passthroughReadAltIdScenario
    rate: 5
    vus: 5
    duration: 2s
thresholds:
  "http_req_failed{scenario:passthrough_read_alt_id}": ["rate == 0"]
  ncmp_overhead_passthrough_read_alt_id: ["avg <= 5000"]
`
	s, stub := newTestSuite(t, profile, fastStubOptions())
	nodes := []string{"localhost:50171", "localhost:50172"}
	for _, addr := range nodes {
		// nodes share the env so custom trends land in one registry
		srv, err := ncmploader.RunService(addr, s.Env, ncmploader.NewNopLogger())
		require.NoError(t, err)
		t.Cleanup(srv.Stop)
	}
	s.Base.ClusterOptions = &ncmploader.ClusterOptions{Nodes: nodes}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, s.Execute(ctx, &bytes.Buffer{}))
	require.Equal(t, 0, stub.Count())

	res := s.Results()
	require.Len(t, res, 1)
	require.Equal(t, 2, res[0].Nodes)
	v, err := s.Env.Metrics.Values(ncmploader.ScenarioTagged(ncmploader.MetricHTTPReqs, "passthrough_read_alt_id"))
	require.NoError(t, err)
	// two nodes, 5 rps each for 2 seconds
	require.GreaterOrEqual(t, v[ncmploader.AggCount], float64(15))
	overhead, err := s.Env.Metrics.Values(scenarios.TrendPassthroughReadAltIdOverhead)
	require.NoError(t, err)
	require.Equal(t, v[ncmploader.AggCount], overhead[ncmploader.AggCount])
}

func TestProfileSchema(t *testing.T) {
	b, err := ProfileSchema()
	require.NoError(t, err)
	var schema struct {
		ID         string   `json:"$id"`
		Required   []string `json:"required"`
		Properties map[string]struct {
			AdditionalProperties struct {
				Required   []string `json:"required"`
				Properties map[string]struct {
					Enum []string `json:"enum"`
				} `json:"properties"`
			} `json:"additionalProperties"`
		} `json:"properties"`
	}
	require.NoError(t, jsoniter.Unmarshal(b, &schema))
	require.Equal(t, profileSchemaID, schema.ID)
	require.ElementsMatch(t, []string{"name", "scenarios"}, schema.Required)

	sc := schema.Properties["scenarios"].AdditionalProperties
	require.ElementsMatch(t, []string{"executor", "exec"}, sc.Required)
	require.Equal(t, []string{"constant-arrival-rate", "constant-vus", "shared-iterations"}, sc.Properties["executor"].Enum)
	require.Contains(t, sc.Properties["exec"].Enum, "cmHandleSearchModuleScenario")
}
