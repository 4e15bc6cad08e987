/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"context"
	"sync/atomic"
	"time"
)

type ControlAttackerMock struct {
	name         int
	serviceError chan bool
	http         bool
	// status returned by http results, 200 when zero
	status int
	r      *Runner
}

func (a *ControlAttackerMock) Clone(r *Runner) Attack {
	return &ControlAttackerMock{
		name:         1,
		serviceError: make(chan bool),
		http:         a.http,
		status:       a.status,
		r:            r,
	}
}

func (a *ControlAttackerMock) Setup(c RunnerConfig) error {
	return nil
}

func (a *ControlAttackerMock) Do(ctx context.Context) DoResult {
	select {
	case <-a.serviceError:
		a.r.L.Infof("service error happens")
		return DoResult{RequestLabel: a.r.Name, Error: "service error", HTTP: a.http}
	default:
	}
	sleepTime := atomic.LoadInt64(&a.r.controlled.Sleep)
	select {
	case <-time.After(time.Duration(sleepTime) * time.Millisecond):
	case <-ctx.Done():
		return DoResult{RequestLabel: a.r.Name, Error: ctx.Err().Error(), HTTP: a.http}
	}
	res := DoResult{RequestLabel: a.r.Name, HTTP: a.http}
	if a.http {
		res.StatusCode = 200
		if a.status != 0 {
			res.StatusCode = a.status
		}
	}
	return res
}

func (a *ControlAttackerMock) Teardown() error {
	return nil
}

func NewControlMockAttacker(name int, serviceError chan bool, r *Runner) *ControlAttackerMock {
	return &ControlAttackerMock{name: name, serviceError: serviceError, r: r}
}

// failingSetupMock fails on Setup
type failingSetupMock struct {
	ControlAttackerMock
}

func (a *failingSetupMock) Clone(r *Runner) Attack {
	return &failingSetupMock{}
}

func (a *failingSetupMock) Setup(c RunnerConfig) error {
	return context.DeadlineExceeded
}
