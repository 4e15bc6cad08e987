/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmpstub"
)

func testConfig(url, transport string) Config {
	cfg := DefaultConfig()
	cfg.NCMPBaseURL = url
	cfg.TotalCmHandles = 25
	cfg.RegistrationBatchSize = 10
	cfg.ReadDataForCmHandleDelayMs = 10
	cfg.WriteDataForCmHandleDelayMs = 20
	cfg.PollIntervalMs = 20
	cfg.ReadyTimeoutSec = 5
	cfg.RequestTimeoutSec = 5
	cfg.Transport = transport
	return cfg
}

func newTestClient(t *testing.T, transport string, opts ncmpstub.Options) (*Client, *ncmpstub.Stub) {
	stub := ncmpstub.New(opts, nil, nil)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	return NewClient(testConfig(srv.URL, transport), nil), stub
}

func stubOptions() ncmpstub.Options {
	opts := ncmpstub.DefaultOptions()
	opts.ReadDelay = 10 * time.Millisecond
	opts.WriteDelay = 20 * time.Millisecond
	return opts
}

func forEachTransport(t *testing.T, f func(t *testing.T, transport string)) {
	for _, tr := range []string{TransportNetHTTP, TransportFastHTTP} {
		tr := tr
		t.Run(tr, func(t *testing.T) {
			f(t, tr)
		})
	}
}

func TestRegisterSearchDeregister(t *testing.T) {
	forEachTransport(t, func(t *testing.T, transport string) {
		c, stub := newTestClient(t, transport, stubOptions())
		ctx := context.Background()
		reg := ncmploader.NewMetricRegistry()

		_, registered, err := c.RegisterAll(ctx, reg)
		require.NoError(t, err)
		// last batch is cut at total
		require.Equal(t, 25, registered)
		require.Equal(t, 25, stub.Count())
		require.NoError(t, c.WaitForAllCmHandlesToBeReady(ctx))

		for _, f := range []string{FilterNoFilter, FilterModule, FilterProperty, FilterCpsPath, FilterTrustLevel} {
			resp, err := c.ExecuteCmHandleSearch(ctx, f)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.Status, f)
			n, err := resp.ArrayLength()
			require.NoError(t, err)
			require.Equal(t, 25, n, f)

			resp, err = c.ExecuteCmHandleIdSearch(ctx, f, true)
			require.NoError(t, err)
			var ids []string
			require.NoError(t, jsoniter.Unmarshal(resp.Body, &ids))
			require.Len(t, ids, 25, f)
			require.Equal(t, AlternateId(1), ids[0])
		}

		_, deregistered, err := c.DeregisterAll(ctx, reg)
		require.NoError(t, err)
		require.Equal(t, 25, deregistered)
		require.Equal(t, 0, stub.Count())

		for _, check := range reg.Checks() {
			require.Zero(t, check.Fails, check.Name)
		}
	})
}

func TestUnknownSearchFilter(t *testing.T) {
	c, _ := newTestClient(t, TransportNetHTTP, stubOptions())
	_, err := c.ExecuteCmHandleSearch(context.Background(), "color")
	require.Equal(t, ErrUnknownSearchFilter, errors.Cause(err))
	_, err = c.ExecuteCmHandleIdSearch(context.Background(), "color", false)
	require.Equal(t, ErrUnknownSearchFilter, errors.Cause(err))
}

func TestWaitForReadyTimesOut(t *testing.T) {
	opts := stubOptions()
	opts.ReadyAfter = time.Hour
	c, _ := newTestClient(t, TransportNetHTTP, opts)
	c.cfg.ReadyTimeoutSec = 1
	ctx := context.Background()
	_, _, err := c.RegisterAll(ctx, nil)
	require.NoError(t, err)
	err = c.WaitForAllCmHandlesToBeReady(ctx)
	require.Equal(t, errNotReadyInTime, errors.Cause(err))
}

func TestWaitForReadyStopsOnCancel(t *testing.T) {
	opts := stubOptions()
	opts.ReadyAfter = time.Hour
	c, _ := newTestClient(t, TransportNetHTTP, opts)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, c.WaitForAllCmHandlesToBeReady(ctx))
}

func TestUpgradeCmHandles(t *testing.T) {
	c, _ := newTestClient(t, TransportNetHTTP, stubOptions())
	ctx := context.Background()
	require.Equal(t, http.StatusOK, c.CreateCmHandles(ctx, []string{"ch-1"}).Status)
	require.Equal(t, http.StatusOK, c.UpgradeCmHandles(ctx, []string{"ch-1"}, "tagZ").Status)
	resp := c.CreateCmHandles(ctx, []string{"bad"})
	require.Error(t, resp.Err)
}

func TestPassthroughReadWrite(t *testing.T) {
	forEachTransport(t, func(t *testing.T, transport string) {
		c, _ := newTestClient(t, transport, stubOptions())
		ctx := context.Background()
		_, _, err := c.RegisterAll(ctx, nil)
		require.NoError(t, err)

		for _, alt := range []bool{false, true} {
			resp := c.PassthroughRead(ctx, alt)
			require.NoError(t, resp.Err)
			require.Equal(t, http.StatusOK, resp.Status, string(resp.Body))
			require.GreaterOrEqual(t, int64(resp.Duration), int64(10*time.Millisecond))

			resp = c.PassthroughWrite(ctx, alt)
			require.Equal(t, http.StatusCreated, resp.Status, string(resp.Body))
			require.Equal(t, int64(len(`{"neType":"BaseStation"}`)), resp.BytesOut)
		}
	})
}

func TestPassthroughPath(t *testing.T) {
	require.Equal(t,
		"/ncmp/v1/ch/%2FSubNetwork=Europe%2FSubNetwork=Ireland%2FMeContext=MyRadioNode3%2FManagedElement=MyManagedElement3/data/ds/ncmp-datastore:passthrough-operational?resourceIdentifier=my-resource-identifier&include-descendants=true",
		PassthroughPath(AlternateId(3), DatastoreOperational, true))
	require.Equal(t,
		"/ncmp/v1/ch/ch-3/data/ds/ncmp-datastore:passthrough-running?resourceIdentifier=my-resource-identifier",
		PassthroughPath("ch-3", DatastoreRunning, false))
}

func TestLegacyBatchReadAndDataJob(t *testing.T) {
	forEachTransport(t, func(t *testing.T, transport string) {
		c, _ := newTestClient(t, transport, stubOptions())
		ctx := context.Background()
		_, _, err := c.RegisterAll(ctx, nil)
		require.NoError(t, err)

		resp := c.LegacyBatchRead(ctx, MakeRandomBatchOfAlternateIds(5, 25))
		require.Equal(t, http.StatusOK, resp.Status)
		require.Contains(t, string(resp.Body), "requestId")

		resp = c.ExecuteWriteDataJob(ctx, 4)
		require.Equal(t, http.StatusOK, resp.Status)
		require.NotContains(t, string(resp.Body), "not found")
	})
}

func TestClientTimeout(t *testing.T) {
	opts := stubOptions()
	opts.ReadDelay = time.Second
	forEachTransport(t, func(t *testing.T, transport string) {
		c, _ := newTestClient(t, transport, opts)
		ctx := context.Background()
		require.Equal(t, http.StatusOK, c.CreateCmHandles(ctx, []string{"ch-1"}).Status)
		c.cfg.TotalCmHandles = 1

		ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		resp := c.PassthroughRead(ctx, false)
		require.Error(t, resp.Err)
		require.Equal(t, 0, resp.Status)
		res := resp.DoResult("passthrough_read")
		require.True(t, res.Failed())
		require.True(t, res.HTTP)
	})
}

func TestResponseArrayLength(t *testing.T) {
	n, err := Response{Body: []byte(` ["a", {"b": 1}] `)}.ArrayLength()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	_, err = Response{Body: []byte(`{"a":1}`)}.ArrayLength()
	require.Error(t, err)
	_, err = Response{}.ArrayLength()
	require.Error(t, err)
}

func TestTruncatedBodyHasNoStatus(t *testing.T) {
	forEachTransport(t, func(t *testing.T, transport string) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Length", "100")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`["ch-1",`))
		}))
		t.Cleanup(srv.Close)
		c := NewClient(testConfig(srv.URL, transport), nil)

		resp := c.Get(context.Background(), "/ncmp/v1/ch/ch-1")
		require.Error(t, resp.Err)
		require.Equal(t, 0, resp.Status)
		res := resp.DoResult("passthrough read")
		require.True(t, res.Failed())
		require.Equal(t, ncmploader.CategoryNetwork, res.FailureCategory())
	})
}
