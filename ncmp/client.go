/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmp

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/cps-perf/ncmploader"
)

const contentTypeJSON = "application/json"

// Response of one NCMP call
type Response struct {
	URL      string
	Status   int
	Body     []byte
	Duration time.Duration
	BytesOut int64
	// Err transport error, Status is 0 when set
	Err error
}

// ArrayLength length of json array body
func (r Response) ArrayLength() (int, error) {
	body := bytes.TrimSpace(r.Body)
	if len(body) == 0 {
		return 0, errors.New("empty response body")
	}
	var arr []jsoniter.RawMessage
	if err := jsoniter.Unmarshal(body, &arr); err != nil {
		return 0, errors.Wrap(err, "response is not a json array")
	}
	return len(arr), nil
}

// DoResult converts response to runner result
func (r Response) DoResult(label string) ncmploader.DoResult {
	res := ncmploader.DoResult{
		RequestLabel: label,
		StatusCode:   r.Status,
		HTTP:         true,
		Duration:     r.Duration,
		BytesIn:      int64(len(r.Body)),
		BytesOut:     r.BytesOut,
	}
	if r.Err != nil {
		res.Error = r.Err.Error()
	}
	return res
}

// Client NCMP http client, uses net/http or fasthttp transport
type Client struct {
	cfg  Config
	http *http.Client
	fast *fastClient
	L    *ncmploader.Logger
}

func NewClient(cfg Config, l *ncmploader.Logger) *Client {
	if l == nil {
		l = ncmploader.NewNopLogger()
	}
	c := &Client{cfg: cfg, L: l}
	if cfg.Transport == TransportFastHTTP {
		c.fast = newFastClient(cfg.DumpTransport, l)
	} else {
		c.http = newHTTPClient(time.Duration(cfg.RequestTimeoutSec)*time.Second, cfg.DumpTransport, l)
	}
	return c
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(c.cfg.NCMPBaseURL, "/") + path
}

func (c *Client) Get(ctx context.Context, path string) Response {
	return c.do(ctx, http.MethodGet, c.url(path), nil)
}

func (c *Client) PostJSON(ctx context.Context, path string, payload interface{}) Response {
	body, err := jsoniter.Marshal(payload)
	if err != nil {
		return Response{URL: c.url(path), Err: errors.Wrap(err, "failed to marshal payload")}
	}
	return c.do(ctx, http.MethodPost, c.url(path), body)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) Response {
	if c.fast != nil {
		return c.doFast(ctx, method, url, body)
	}
	res := Response{URL: url, BytesOut: int64(len(body))}
	var reqBody *bytes.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	} else {
		reqBody = bytes.NewReader([]byte{})
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		res.Err = err
		return res
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		res.Duration = time.Since(start)
		res.Err = err
		return res
	}
	defer resp.Body.Close()
	res.Body, res.Err = ioutil.ReadAll(resp.Body)
	res.Duration = time.Since(start)
	if res.Err == nil {
		res.Status = resp.StatusCode
	}
	return res
}

func (c *Client) doFast(ctx context.Context, method, url string, body []byte) Response {
	res := Response{URL: url, BytesOut: int64(len(body))}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	// alternate ids are sent with escaped slashes
	req.URI().DisablePathNormalizing = true
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType(contentTypeJSON)
		req.SetBody(body)
	}
	timeout := time.Duration(c.cfg.RequestTimeoutSec) * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout || timeout <= 0 {
			timeout = left
		}
	}
	if timeout <= 0 {
		res.Err = context.DeadlineExceeded
		return res
	}
	start := time.Now()
	err := c.fast.DoTimeout(req, resp, timeout)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.Status = resp.StatusCode()
	res.Body = append([]byte(nil), resp.Body()...)
	return res
}
