/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package scenarios

import (
	"sync"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmp"
)

// Env is shared by all attackers of all scenarios of one run
type Env struct {
	Cfg       ncmp.Config
	Client    *ncmp.Client
	Metrics   *ncmploader.MetricRegistry
	Validator *ncmp.Validator
	L         *ncmploader.Logger

	// NewProducer and NewConsumer create kafka clients on first use
	NewProducer func() (*ncmp.AvcProducer, error)
	NewConsumer func() (*ncmp.BatchConsumer, error)

	mu       sync.Mutex
	producer *ncmp.AvcProducer
	consumer *ncmp.BatchConsumer
}

func NewEnv(cfg ncmp.Config, reg *ncmploader.MetricRegistry, l *ncmploader.Logger) *Env {
	if reg == nil {
		reg = ncmploader.NewMetricRegistry()
	}
	if l == nil {
		l = ncmploader.NewNopLogger()
	}
	e := &Env{
		Cfg:       cfg,
		Client:    ncmp.NewClient(cfg, l),
		Metrics:   reg,
		Validator: ncmp.NewValidator(reg, l),
		L:         l,
	}
	e.NewProducer = func() (*ncmp.AvcProducer, error) {
		return ncmp.NewAvcProducer(cfg, l)
	}
	e.NewConsumer = func() (*ncmp.BatchConsumer, error) {
		return ncmp.NewBatchConsumer(cfg, l)
	}
	return e
}

// Producer avc producer, created once
func (e *Env) Producer() (*ncmp.AvcProducer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.producer != nil {
		return e.producer, nil
	}
	p, err := e.NewProducer()
	if err != nil {
		return nil, err
	}
	e.producer = p
	return p, nil
}

// Consumer legacy batch consumer, created once
func (e *Env) Consumer() (*ncmp.BatchConsumer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.consumer != nil {
		return e.consumer, nil
	}
	c, err := e.NewConsumer()
	if err != nil {
		return nil, err
	}
	e.consumer = c
	return c, nil
}

// Close closes kafka clients
func (e *Env) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.producer != nil {
		if err := e.producer.Close(); err != nil {
			e.L.Warnf("failed to close avc producer: %s", err)
		}
		e.producer = nil
	}
	if e.consumer != nil {
		e.consumer.Close()
		e.consumer = nil
	}
}
