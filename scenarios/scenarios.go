/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

// Package scenarios registers NCMP scenarios as attackers by exec name
package scenarios

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmp"
)

const (
	AvcEventsBatchSize     = 500
	LargeDataJobOperations = 100
	SmallDataJobOperations = 2
)

// Custom trends
const (
	TrendPassthroughReadOverhead       = "ncmp_overhead_passthrough_read"
	TrendPassthroughWriteOverhead      = "ncmp_overhead_passthrough_write"
	TrendPassthroughReadAltIdOverhead  = "ncmp_overhead_passthrough_read_alt_id"
	TrendPassthroughWriteAltIdOverhead = "ncmp_overhead_passthrough_write_alt_id"
	TrendLegacyBatchReadThroughput     = "legacy_batch_read_cmhandles_per_second"
	TrendWriteLargeDataJob             = "write_large_data_job_duration"
	TrendWriteSmallDataJob             = "write_small_data_job_duration"
)

var errNoEnv = errors.New("runner test data is not a scenario env")

type doFunc func(ctx context.Context, env *Env, label string) ncmploader.DoResult

// Scenario attacker calling one NCMP scenario per iteration
type Scenario struct {
	*ncmploader.Runner
	exec string
	do   doFunc
	env  *Env
}

func (s *Scenario) Clone(r *ncmploader.Runner) ncmploader.Attack {
	return &Scenario{Runner: r, exec: s.exec, do: s.do}
}

func (s *Scenario) Setup(_ ncmploader.RunnerConfig) error {
	env, ok := s.TestData.(*Env)
	if !ok {
		return errors.Wrapf(errNoEnv, "%s got %T", s.exec, s.TestData)
	}
	s.env = env
	return nil
}

func (s *Scenario) Do(ctx context.Context) ncmploader.DoResult {
	return s.do(ctx, s.env, s.Name)
}

func (s *Scenario) Teardown() error {
	return nil
}

func register(exec string, do doFunc) {
	ncmploader.RegisterAttacker(exec, &Scenario{exec: exec, do: do})
}

func init() {
	register("passthroughReadScenario", passthroughRead(false, "passthrough read", TrendPassthroughReadOverhead))
	register("passthroughWriteScenario", passthroughWrite(false, "passthrough write", TrendPassthroughWriteOverhead))
	register("passthroughReadAltIdScenario", passthroughRead(true, "passthrough read with alternate Id", TrendPassthroughReadAltIdOverhead))
	register("passthroughWriteAltIdScenario", passthroughWrite(true, "passthrough write with alternate Id", TrendPassthroughWriteAltIdOverhead))

	for _, s := range []struct {
		suffix, filter, trend string
	}{
		{"NoFilter", ncmp.FilterNoFilter, "nofilter"},
		{"Module", ncmp.FilterModule, "module"},
		{"Property", ncmp.FilterProperty, "property"},
		{"CpsPath", ncmp.FilterCpsPath, "cpspath"},
		{"TrustLevel", ncmp.FilterTrustLevel, "trustlevel"},
	} {
		register("cmHandleIdSearch"+s.suffix+"Scenario", idSearch(s.filter, "id_search_"+s.trend+"_duration"))
		register("cmHandleSearch"+s.suffix+"Scenario", cmSearch(s.filter, "cm_search_"+s.trend+"_duration"))
	}

	register("legacyBatchProduceScenario", legacyBatchProduce)
	register("produceAvcEventsScenario", produceAvcEvents)
	register("legacyBatchConsumeScenario", legacyBatchConsume)
	register("writeLargeDataJobScenario", writeDataJob(LargeDataJobOperations, TrendWriteLargeDataJob))
	register("writeSmallDataJobScenario", writeDataJob(SmallDataJobOperations, TrendWriteSmallDataJob))
}

func passthroughRead(alt bool, check, trend string) doFunc {
	return func(ctx context.Context, env *Env, label string) ncmploader.DoResult {
		resp := env.Client.PassthroughRead(ctx, alt)
		env.Validator.ValidateResponseAndRecordMetricWithOverhead(resp, http.StatusOK, check, env.Cfg.ReadDataForCmHandleDelayMs, env.Metrics.Trend(trend))
		return resp.DoResult(label)
	}
}

func passthroughWrite(alt bool, check, trend string) doFunc {
	return func(ctx context.Context, env *Env, label string) ncmploader.DoResult {
		resp := env.Client.PassthroughWrite(ctx, alt)
		env.Validator.ValidateResponseAndRecordMetricWithOverhead(resp, http.StatusCreated, check, env.Cfg.WriteDataForCmHandleDelayMs, env.Metrics.Trend(trend))
		return resp.DoResult(label)
	}
}

func idSearch(filter, trend string) doFunc {
	return func(ctx context.Context, env *Env, label string) ncmploader.DoResult {
		resp, err := env.Client.ExecuteCmHandleIdSearch(ctx, filter, false)
		if err != nil {
			return ncmploader.DoResult{RequestLabel: label, Error: err.Error()}
		}
		env.Validator.ValidateResponseAndRecordMetric(resp, http.StatusOK, "CM handle ID "+filter+" search", env.Cfg.TotalCmHandles, env.Metrics.Trend(trend))
		return resp.DoResult(label)
	}
}

func cmSearch(filter, trend string) doFunc {
	return func(ctx context.Context, env *Env, label string) ncmploader.DoResult {
		resp, err := env.Client.ExecuteCmHandleSearch(ctx, filter)
		if err != nil {
			return ncmploader.DoResult{RequestLabel: label, Error: err.Error()}
		}
		env.Validator.ValidateResponseAndRecordMetric(resp, http.StatusOK, "CM handle "+filter+" search", env.Cfg.TotalCmHandles, env.Metrics.Trend(trend))
		return resp.DoResult(label)
	}
}

func legacyBatchProduce(ctx context.Context, env *Env, label string) ncmploader.DoResult {
	ids := ncmp.MakeRandomBatchOfAlternateIds(env.Cfg.LegacyBatchSize, env.Cfg.TotalCmHandles)
	resp := env.Client.LegacyBatchRead(ctx, ids)
	env.Metrics.Check("data operation batch read status equals 200", resp.Status == http.StatusOK)
	return resp.DoResult(label)
}

func produceAvcEvents(_ context.Context, env *Env, label string) ncmploader.DoResult {
	p, err := env.Producer()
	if err != nil {
		env.Metrics.Check("AVC events sent", false)
		return ncmploader.DoResult{RequestLabel: label, Error: err.Error()}
	}
	err = p.SendBatch(AvcEventsBatchSize)
	if !env.Metrics.Check("AVC events sent", err == nil) {
		env.L.Errorf("failed to produce avc events: %s", err)
		return ncmploader.DoResult{RequestLabel: label, Error: err.Error()}
	}
	return ncmploader.DoResult{RequestLabel: label}
}

// legacyBatchConsume consumes all batch read results, throughput is 0 on error
func legacyBatchConsume(ctx context.Context, env *Env, label string) ncmploader.DoResult {
	trend := env.Metrics.Trend(TrendLegacyBatchReadThroughput)
	total := env.Cfg.LegacyBatchTotalMessages()
	c, err := env.Consumer()
	if err != nil {
		trend.Add(0)
		env.L.Errorf("legacy batch consumer: %s", err)
		return ncmploader.DoResult{RequestLabel: label, Error: err.Error()}
	}
	start := time.Now()
	if _, err := c.ConsumeUntil(ctx, total, env.Cfg.LegacyBatchSize); err != nil {
		trend.Add(0)
		env.L.Errorf("legacy batch consumer: %s", err)
		return ncmploader.DoResult{RequestLabel: label, Error: err.Error()}
	}
	trend.Add(float64(total) / time.Since(start).Seconds())
	return ncmploader.DoResult{RequestLabel: label}
}

func writeDataJob(operations int, trend string) doFunc {
	return func(ctx context.Context, env *Env, label string) ncmploader.DoResult {
		resp := env.Client.ExecuteWriteDataJob(ctx, operations)
		env.Validator.ValidateResponseAndRecordMetric(resp, http.StatusOK, "write data job", -1, env.Metrics.Trend(trend))
		return resp.DoResult(label)
	}
}
