/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPromReportTick(t *testing.T) {
	m := NewMetrics()
	begin := time.Now()
	m.add(AttackResult{Begin: begin, Elapsed: 20 * time.Millisecond, DoResult: DoResult{StatusCode: 200, HTTP: true}})
	m.add(AttackResult{Begin: begin.Add(500 * time.Millisecond), Elapsed: 40 * time.Millisecond, DoResult: DoResult{StatusCode: 500, HTTP: true}})
	m.update()

	r := &PromReporter{}
	r.reportTick("prom-test", &TickMetrics{Metrics: m})
	r.reportTick("prom-test", &TickMetrics{Metrics: m})

	require.Equal(t, float64(40), testutil.ToFloat64(promTickMax.WithLabelValues("prom-test")))
	require.Equal(t, 0.5, testutil.ToFloat64(promTickSuccessRatio.WithLabelValues("prom-test")))
	require.Equal(t, float64(4), testutil.ToFloat64(promRPS.WithLabelValues("prom-test")))
	// counters accumulate across ticks
	require.Equal(t, float64(2), testutil.ToFloat64(promFailures.WithLabelValues("prom-test", CategoryServerError)))
}
