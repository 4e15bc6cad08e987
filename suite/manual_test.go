/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package suite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmp"
	"github.com/cps-perf/ncmploader/ncmpstub"
	"github.com/cps-perf/ncmploader/scenarios"
)

// manual tests run against a real deployment or take minutes, NCMP_MANUAL=1 enables them

func manual(t *testing.T) {
	if os.Getenv("NCMP_MANUAL") == "" {
		t.Skip("set NCMP_MANUAL=1 to run")
	}
}

func TestManualKPIProfile(t *testing.T) {
	manual(t)
	cfg, err := ncmp.LoadEnvironment(ncmp.EnvironmentName(os.Getenv(ncmp.EnvDeploymentType)))
	require.NoError(t, err)
	require.NoError(t, cfg.ApplyEnv(os.LookupEnv))
	p, err := LoadProfile(ProfileKPI)
	require.NoError(t, err)
	base := ncmploader.RunnerConfig{
		ReportOptions: &ncmploader.ReportOptions{CSV: true, PNG: true},
	}
	s := New(p, base, scenarios.NewEnv(cfg, nil, ncmploader.NewLogger(&base)))
	require.NoError(t, s.Execute(context.Background(), os.Stdout))
}

func TestManualEnduranceAgainstStubWithPrometheus(t *testing.T) {
	manual(t)
	srv := ncmpstub.New(ncmpstub.DefaultOptions(), nil, nil).Run("0.0.0.0:9031")
	// nolint
	defer srv.Shutdown(context.Background())
	time.Sleep(1 * time.Second)

	cfg := ncmp.DefaultConfig()
	cfg.NCMPBaseURL = "http://127.0.0.1:9031"
	cfg.TotalCmHandles = 5000
	cfg.PollIntervalMs = 500
	cfg.ContainerCoolDownTimeInSeconds = 0
	p, err := LoadProfile(ProfileEndurance)
	require.NoError(t, err)
	for name, sc := range p.Scenarios {
		sc.Duration = "2m"
		p.Scenarios[name] = sc
	}
	base := ncmploader.RunnerConfig{
		Prometheus: &ncmploader.Prometheus{Enable: true},
	}
	s := New(p, base, scenarios.NewEnv(cfg, nil, ncmploader.NewLogger(&base)))
	require.NoError(t, s.Execute(context.Background(), os.Stdout))
}
