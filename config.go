/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package ncmploader

import (
	"fmt"
)

// Executor defines how virtual users are driven during a scenario
type Executor string

const (
	// ConstantArrivalRate fires StartRPS iterations per second, adding StepRPS every StepDurationSec
	ConstantArrivalRate Executor = "constant-arrival-rate"
	// ConstantVUs runs Attackers closed-loop virtual users for TestTimeSec
	ConstantVUs Executor = "constant-vus"
	// SharedIterations runs Iterations iterations shared between Attackers, bounded by TestTimeSec
	SharedIterations Executor = "shared-iterations"
)

func (e Executor) String() string {
	if e == "" {
		return string(ConstantArrivalRate)
	}
	return string(e)
}

// ReportOptions report options
type ReportOptions struct {
	// CSV writes requests and percentiles logs
	CSV bool
	// PNG renders percentile charts after the test
	PNG bool
	// Screenshot converts the html chart to png using headless chrome
	Screenshot bool
	// Stream sends tick batches to OutResults, used by cluster nodes
	Stream bool
	// Dir directory for report files, current directory if empty
	Dir string
}

// Prometheus exporter options
type Prometheus struct {
	Enable bool
	Port   int
}

// ClusterOptions options for running a scenario on several load nodes
type ClusterOptions struct {
	Nodes []string
}

// RunnerConfig runner configuration
type RunnerConfig struct {
	// TargetUrl target base url
	TargetUrl string
	// Name of a runner instance, scenario name
	Name string
	// Exec name of a registered scenario attacker
	Exec string
	// Executor how attackers are driven
	Executor Executor
	// Attackers amount of attackers (virtual users)
	Attackers int
	// AttackerTimeout timeout of attacker
	AttackerTimeout int
	// StartRPS start amount of requests per second
	StartRPS int
	// StepDurationSec duration of step in which rps is increased by StepRPS
	StepDurationSec int
	// StepRPS amount of requests per second which will be added in next step
	StepRPS int
	// Iterations total iterations for shared-iterations executor
	Iterations int
	// TestTimeSec test timeout
	TestTimeSec int
	// WaitBeforeSec time to wait before start in case we didn't know start criteria
	WaitBeforeSec int
	// SuccessRatio fails the test when a tick success ratio is lower
	SuccessRatio float64
	// GoroutinesDump dump goroutines on exit signal
	GoroutinesDump bool
	// FailOnFirstError fails on first error
	FailOnFirstError bool
	// HandleSignals exits on SIGINT/SIGTERM
	HandleSignals bool
	// PprofPort serves pprof handlers when > 0
	PprofPort int
	// LogLevel debug|info, etc.
	LogLevel string
	// LogEncoding json|console
	LogEncoding string

	ReportOptions  *ReportOptions
	Prometheus     *Prometheus
	ClusterOptions *ClusterOptions
}

// Validate checks all settings and returns a list of strings with problems.
func (c RunnerConfig) Validate() (list []string) {
	if c.AttackerTimeout <= 0 {
		list = append(list, "please set attacker timeout > 0, seconds")
	}
	if c.TestTimeSec <= 0 {
		list = append(list, "please set test time > 0, seconds")
	}
	switch c.Executor {
	case ConstantArrivalRate, "":
		if c.StartRPS <= 0 {
			list = append(list, "please set start rps > 0")
		}
		if c.StepRPS > 0 && c.StepDurationSec <= 0 {
			list = append(list, "please set step duration > 0, seconds")
		}
	case ConstantVUs:
		if c.Attackers <= 0 {
			list = append(list, "please set attackers > 0")
		}
	case SharedIterations:
		if c.Attackers <= 0 {
			list = append(list, "please set attackers > 0")
		}
		if c.Iterations <= 0 {
			list = append(list, "please set iterations > 0")
		}
	default:
		list = append(list, fmt.Sprintf("unknown executor: %s", c.Executor))
	}
	if err := CheckLogConfig(c.LogLevel, c.LogEncoding); err != nil {
		list = append(list, err.Error())
	}
	return
}

// DefaultCfgValues fills optional fields
func (c *RunnerConfig) DefaultCfgValues() {
	if c.Executor == "" {
		c.Executor = ConstantArrivalRate
	}
	if c.Executor == ConstantArrivalRate && c.Attackers <= 0 {
		// one attacker per request in a tick keeps the schedule unblocked
		c.Attackers = c.StartRPS
	}
	if c.StepDurationSec <= 0 {
		c.StepDurationSec = c.TestTimeSec + 1
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogEncoding == "" {
		c.LogEncoding = DefaultLogEncoding
	}
	if c.ReportOptions == nil {
		c.ReportOptions = &ReportOptions{}
	}
}
