/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"context"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

const nodeDialTimeout = 10 * time.Second

type NodeClient struct {
	addr string
	conn *grpc.ClientConn
}

func NewNodeClient(ctx context.Context, addr string) (*NodeClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, nodeDialTimeout)
	defer cancel()
	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithInsecure(),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect node %s", addr)
	}
	return &NodeClient{addr: addr, conn: conn}, nil
}

// StartRunner starts runner on a node and sends every received tick batch to results
func (m *NodeClient) StartRunner(ctx context.Context, cfg RunnerConfig, results chan<- []AttackResult) error {
	stream, err := m.conn.NewStream(ctx, &loaderServiceDesc.Streams[0], runMethod)
	if err != nil {
		return errors.Wrapf(err, "node %s", m.addr)
	}
	if err := stream.SendMsg(&RunConfigRequest{Config: cfg}); err != nil {
		return errors.Wrapf(err, "node %s", m.addr)
	}
	if err := stream.CloseSend(); err != nil {
		return errors.Wrapf(err, "node %s", m.addr)
	}
	for {
		res := new(ResultsResponse)
		err := stream.RecvMsg(res)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "node %s", m.addr)
		}
		if len(res.Results) > 0 {
			results <- res.Results
		}
	}
}

// Shutdown cancels scenario run on the node, every run when scenario is empty
func (m *NodeClient) Shutdown(ctx context.Context, scenario string) error {
	return m.conn.Invoke(ctx, shutdownNodeMethod, &ShutdownNodeRequest{Scenario: scenario}, &ShutdownNodeResponse{})
}

func (m *NodeClient) Close() error {
	return m.conn.Close()
}

// ClusterClient runs the same scenario on every node and aggregates tick metrics
type ClusterClient struct {
	cfg                *RunnerConfig
	clients            []*NodeClient
	results            chan []AttackResult
	clusterTickMetrics map[int]*ClusterTickMetrics
	shutdownOnce       sync.Once
	failed             int32
	// Metrics aggregated from all nodes
	Metrics *MetricRegistry
	L       *Logger
}

func NewClusterClient(ctx context.Context, cfg *RunnerConfig) (*ClusterClient, error) {
	if cfg.ClusterOptions == nil || len(cfg.ClusterOptions.Nodes) == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "no cluster nodes")
	}
	cfg.DefaultCfgValues()
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "%v", problems)
	}
	c := &ClusterClient{
		cfg:                cfg,
		results:            make(chan []AttackResult, DefaultResultsQueueCapacity),
		clusterTickMetrics: make(map[int]*ClusterTickMetrics),
		Metrics:            NewMetricRegistry(),
		L:                  NewLogger(cfg).With("cluster", cfg.Name),
	}
	for _, addr := range cfg.ClusterOptions.Nodes {
		nc, err := NewNodeClient(ctx, addr)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.clients = append(c.clients, nc)
	}
	return c, nil
}

// Run runs test on all nodes and returns max cluster rps
func (m *ClusterClient) Run(ctx context.Context) (float64, error) {
	wg := &sync.WaitGroup{}
	errs := make(chan error, len(m.clients))
	for _, c := range m.clients {
		wg.Add(1)
		go func(c *NodeClient) {
			defer wg.Done()
			if err := c.StartRunner(ctx, *m.cfg, m.results); err != nil {
				m.L.Errorf("node run failed: %v", err)
				errs <- err
			}
		}(c)
	}
	go func() {
		wg.Wait()
		close(m.results)
	}()
	m.collectResults(ctx)
	m.Metrics.Finish()
	m.L.Infof("all clients exited, test ended")
	close(errs)
	return m.maxRPS(), <-errs
}

// Failed true when any node reported a failed request and FailOnFirstError is set
func (m *ClusterClient) Failed() bool {
	return atomic.LoadInt32(&m.failed) == 1
}

func (m *ClusterClient) Close() {
	for _, c := range m.clients {
		_ = c.Close()
	}
}

func (m *ClusterClient) collectResults(ctx context.Context) {
	for res := range m.results {
		for _, s := range res {
			m.recordMetrics(s)
		}
		tick := res[0].AttackToken.Tick
		if _, ok := m.clusterTickMetrics[tick]; !ok {
			m.clusterTickMetrics[tick] = &ClusterTickMetrics{
				Samples: make([][]AttackResult, 0),
				Metrics: NewMetrics(),
			}
		}
		ctm := m.clusterTickMetrics[tick]
		ctm.Samples = append(ctm.Samples, res)
		if len(ctm.Samples) == len(m.clients) {
			m.reportTick(tick, ctm)
		}
		if m.cfg.FailOnFirstError && hasFailed(res) {
			m.shutdownNodes(ctx)
		}
	}
	ticks := make([]int, 0)
	for t, ctm := range m.clusterTickMetrics {
		if len(ctm.Samples) != len(m.clients) {
			ticks = append(ticks, t)
		}
	}
	sort.Ints(ticks)
	for _, t := range ticks {
		m.reportTick(t, m.clusterTickMetrics[t])
	}
}

func (m *ClusterClient) recordMetrics(s AttackResult) {
	recordBuiltinMetrics(m.Metrics, m.cfg.Name, s)
}

func (m *ClusterClient) reportTick(tick int, ctm *ClusterTickMetrics) {
	for _, sampleBatch := range ctm.Samples {
		for _, s := range sampleBatch {
			ctm.Metrics.add(s)
		}
	}
	ctm.Metrics.update()
	token := ctm.Samples[0][0].AttackToken
	m.L.Infof(
		"CLUSTER step: %d, tick: %d, rate [%.4f -> %v], perc: 50 [%v] 90 [%v] 99 [%v], # requests [%d], %% success [%.2f], failures %v",
		token.Step,
		tick,
		ctm.Metrics.Rate,
		token.TargetRPS*len(m.clients),
		ctm.Metrics.Latencies.P50,
		ctm.Metrics.Latencies.P90,
		ctm.Metrics.Latencies.P99,
		ctm.Metrics.Requests,
		ctm.Metrics.successPercent(),
		ctm.Metrics.Failures,
	)
}

// shutdownNodes cancels runners on all nodes
func (m *ClusterClient) shutdownNodes(ctx context.Context) {
	m.shutdownOnce.Do(func() {
		atomic.StoreInt32(&m.failed, 1)
		m.L.Infof("request failed, shutting down nodes")
		for _, c := range m.clients {
			if err := c.Shutdown(ctx, m.cfg.Name); err != nil {
				m.L.Errorf("failed to shutdown node %s: %v", c.addr, err)
			}
		}
	})
}

func (m *ClusterClient) maxRPS() float64 {
	rates := make([]float64, 0, len(m.clusterTickMetrics))
	for _, ctm := range m.clusterTickMetrics {
		rates = append(rates, ctm.Metrics.Rate)
	}
	return MaxRPS(rates)
}

func hasFailed(res []AttackResult) bool {
	for _, s := range res {
		if s.DoResult.Failed() {
			return true
		}
	}
	return false
}
