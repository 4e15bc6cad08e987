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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmpstub"
)

func TestDumpTransportKeepsBodies(t *testing.T) {
	forEachTransport(t, func(t *testing.T, transport string) {
		core, logs := observer.New(zapcore.InfoLevel)
		l := &ncmploader.Logger{SugaredLogger: zap.New(core).Sugar()}

		srv := httptest.NewServer(ncmpstub.New(stubOptions(), nil, nil).Handler())
		t.Cleanup(srv.Close)
		cfg := testConfig(srv.URL, transport)
		cfg.DumpTransport = true
		c := NewClient(cfg, l)

		ctx := context.Background()
		require.Equal(t, http.StatusOK, c.CreateCmHandles(ctx, []string{"ch-1"}).Status)
		resp, err := c.ExecuteCmHandleIdSearch(ctx, FilterNoFilter, false)
		require.NoError(t, err)
		require.JSONEq(t, `["ch-1"]`, string(resp.Body))

		var requests, responses int
		for _, e := range logs.All() {
			switch {
			case strings.HasPrefix(e.Message, "request:"):
				requests++
			case strings.HasPrefix(e.Message, "response:"):
				responses++
			}
		}
		require.Equal(t, 2, requests)
		require.Equal(t, 2, responses)
		// json request bodies are indented
		require.True(t, strings.Contains(logs.All()[0].Message, "\n    "), logs.All()[0].Message)
	})
}

func TestHTTPClientKeepsDefaultTransport(t *testing.T) {
	before := http.DefaultTransport.(*http.Transport).MaxIdleConnsPerHost
	_ = newHTTPClient(0, false, ncmploader.NewNopLogger())
	require.Equal(t, before, http.DefaultTransport.(*http.Transport).MaxIdleConnsPerHost)
}

func TestPrettyPrintJSONBody(t *testing.T) {
	head, body := prettyPrintJSONBody([]byte("POST / HTTP/1.1\r\nHost: x\r\n\r\n[1,2]"))
	require.Equal(t, "POST / HTTP/1.1\r\nHost: x", head)
	require.Equal(t, "[\n    1,\n    2\n]", body)
	_, raw := prettyPrintJSONBody([]byte("GET / HTTP/1.1\r\n\r\nnot json"))
	require.Equal(t, "not json", raw)
	head, body = prettyPrintJSONBody([]byte("GET / HTTP/1.1"))
	require.Equal(t, "GET / HTTP/1.1", head)
	require.Empty(t, body)
}
