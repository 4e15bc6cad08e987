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

	"github.com/stretchr/testify/require"
)

func TestFailureCategory(t *testing.T) {
	cases := map[int]string{
		0:   CategoryNetwork,
		101: CategoryInformational,
		302: CategoryRedirection,
		404: CategoryClientError,
		503: CategoryServerError,
		200: CategoryUnexpected,
		700: CategoryUnexpected,
	}
	for status, expected := range cases {
		require.Equal(t, expected, FailureCategory(status), status)
	}
}

func TestDoResultElapsed(t *testing.T) {
	require.Equal(t, time.Second, DoResult{}.Elapsed(time.Second))
	require.Equal(t, time.Millisecond, DoResult{Duration: time.Millisecond}.Elapsed(time.Second))
}

func TestTickMetrics(t *testing.T) {
	m := NewMetrics()
	begin := time.Now()
	for i := 0; i < 10; i++ {
		res := AttackResult{
			Begin:    begin.Add(time.Duration(i) * 100 * time.Millisecond),
			Elapsed:  time.Duration(i+1) * time.Millisecond,
			DoResult: DoResult{RequestLabel: "passthrough read", StatusCode: 200, HTTP: true},
		}
		switch i {
		case 8:
			res.DoResult.StatusCode = 503
		case 9:
			res.DoResult = DoResult{RequestLabel: "cm search", Error: "timeout"}
		}
		m.add(res)
	}
	m.update()

	require.Equal(t, uint64(10), m.Requests)
	require.Equal(t, 0.8, m.Success)
	require.InDelta(t, 10/0.9, m.Rate, 0.001)
	require.Equal(t, map[string]uint64{"passthrough read": 9, "cm search": 1}, m.Labels)
	require.Equal(t, map[string]uint64{CategoryServerError: 1, CategoryNetwork: 1}, m.Failures)
	require.Equal(t, 10*time.Millisecond, m.Latencies.Max)
	require.Equal(t, 5500*time.Microsecond, m.Latencies.Mean)
	require.True(t, m.Latencies.P50 <= m.Latencies.P90)
	require.True(t, m.Latencies.P90 <= m.Latencies.P99)
	require.InDelta(t, 80, m.successPercent(), 0.0001)
	require.Equal(t, uint64(2), m.failed())
}

func TestTickMetricsSingleResult(t *testing.T) {
	m := NewMetrics()
	m.add(AttackResult{Begin: time.Now(), Elapsed: time.Millisecond})
	m.update()
	require.Equal(t, float64(1), m.Rate)
	require.Equal(t, float64(1), m.Success)
}
