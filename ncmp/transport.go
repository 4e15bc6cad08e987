/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/cps-perf/ncmploader"
)

const (
	httpBodyDelimiter = "\r\n\r\n"
	// per host connection limit of both transports
	maxConnsPerHost = 65535
)

// newHTTPClient net/http client, dumps requests and responses to the log when dump is set
func newHTTPClient(timeout time.Duration, dump bool, l *ncmploader.Logger) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxConnsPerHost = maxConnsPerHost
	t.MaxIdleConns = maxConnsPerHost
	t.MaxIdleConnsPerHost = maxConnsPerHost
	t.DisableCompression = true
	t.ResponseHeaderTimeout = timeout

	var rt http.RoundTripper = t
	if dump {
		rt = &dumpTransport{next: t, L: l}
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

// dumpTransport logs requests and responses with pretty printed json bodies
type dumpTransport struct {
	next http.RoundTripper
	L    *ncmploader.Logger
}

func (d *dumpTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := httputil.DumpRequestOut(req, true)
	d.L.Infof("request:\n%s", dumpString(b, isJSON(req.Header)))
	resp, err := d.next.RoundTrip(req)
	if err != nil {
		d.L.Infof("request to %s failed: %s", req.URL, err)
		return nil, err
	}
	// body is restored for the caller
	b, _ = httputil.DumpResponse(resp, true)
	d.L.Infof("response:\n%s", dumpString(b, isJSON(resp.Header)))
	return resp, nil
}

func isJSON(h http.Header) bool {
	return strings.Contains(h.Get("Content-Type"), contentTypeJSON)
}

func dumpString(b []byte, pretty bool) string {
	if !pretty {
		return string(b)
	}
	head, body := prettyPrintJSONBody(b)
	return head + "\n" + body
}

// prettyPrintJSONBody splits http dump into head and indented json body, body is kept raw if it's not json
func prettyPrintJSONBody(b []byte) (string, string) {
	sp := strings.SplitN(string(b), httpBodyDelimiter, 2)
	if len(sp) != 2 {
		return sp[0], ""
	}
	var obj interface{}
	if err := jsoniter.UnmarshalFromString(sp[1], &obj); err != nil {
		return sp[0], sp[1]
	}
	pretty, err := jsoniter.MarshalIndent(obj, "", "    ")
	if err != nil {
		return sp[0], sp[1]
	}
	return sp[0], string(pretty)
}

// fastClient fasthttp transport of the NCMP client
type fastClient struct {
	c    *fasthttp.Client
	dump bool
	L    *ncmploader.Logger
}

func newFastClient(dump bool, l *ncmploader.Logger) *fastClient {
	return &fastClient{
		c: &fasthttp.Client{
			MaxConnsPerHost:     maxConnsPerHost,
			MaxIdleConnDuration: 90 * time.Second,
			// NCMP writes are not idempotent
			MaxIdemponentCallAttempts: 1,
		},
		dump: dump,
		L:    l,
	}
}

// DoTimeout performs request bounded by timeout
func (f *fastClient) DoTimeout(req *fasthttp.Request, resp *fasthttp.Response, timeout time.Duration) error {
	if f.dump {
		f.L.Infof("request:\n%s", dumpString([]byte(req.String()), strings.Contains(string(req.Header.ContentType()), contentTypeJSON)))
	}
	if err := f.c.DoTimeout(req, resp, timeout); err != nil {
		if f.dump {
			f.L.Infof("request to %s failed: %s", req.URI(), err)
		}
		return err
	}
	if f.dump {
		f.L.Infof("response:\n%s", dumpString([]byte(resp.String()), strings.Contains(string(resp.Header.ContentType()), contentTypeJSON)))
	}
	return nil
}
