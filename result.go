/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"fmt"
	"time"
)

// Failure categories of a result, by status code class
const (
	CategoryNetwork       = "Network Error or Timeout"
	CategoryInformational = "Informational"
	CategoryRedirection   = "Redirection"
	CategoryClientError   = "Client Error"
	CategoryServerError   = "Server Error"
	CategoryUnexpected    = "Unexpected"
)

// AttackResult one scenario iteration as seen by the runner
type AttackResult struct {
	AttackToken attackToken
	Begin, End  time.Time
	Elapsed     time.Duration
	DoResult    DoResult
}

func (a AttackResult) String() string {
	return fmt.Sprintf(
		"%s %s elapsed %s, status %d, error %q, token [%s]",
		a.DoResult.RequestLabel,
		a.Begin.Format(time.RFC3339Nano),
		a.Elapsed,
		a.DoResult.StatusCode,
		a.DoResult.Error,
		a.AttackToken,
	)
}

// DoResult is returned by Attack.Do, one per iteration
type DoResult struct {
	// RequestLabel names the request in reports, e.g. "passthrough read"
	RequestLabel string
	// Error marks iteration as failed, empty if the call and its checks succeeded
	Error string
	// StatusCode of the last NCMP response, 0 if there was no response
	StatusCode int
	// HTTP marks results of http calls, they are also counted as http_req_* metrics
	HTTP bool
	// Duration of the call measured by the client, zero means Elapsed is used
	Duration time.Duration
	// BytesIn response body size
	BytesIn int64
	// BytesOut request body size
	BytesOut int64
}

// Failed reports whether result counts as a failed request
func (d DoResult) Failed() bool {
	return d.Error != "" || d.StatusCode >= 400
}

// Elapsed client measured duration or iteration duration when client did not measure
func (d DoResult) Elapsed(iteration time.Duration) time.Duration {
	if d.Duration > 0 {
		return d.Duration
	}
	return iteration
}

// FailureCategory category of a failed result
func (d DoResult) FailureCategory() string {
	return FailureCategory(d.StatusCode)
}

// FailureCategory human readable class of status code, 0 means no response at all
func FailureCategory(status int) string {
	switch {
	case status == 0:
		return CategoryNetwork
	case status >= 100 && status < 200:
		return CategoryInformational
	case status >= 300 && status < 400:
		return CategoryRedirection
	case status >= 400 && status < 500:
		return CategoryClientError
	case status >= 500 && status < 600:
		return CategoryServerError
	default:
		return CategoryUnexpected
	}
}
