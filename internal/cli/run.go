/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmp"
	"github.com/cps-perf/ncmploader/scenarios"
	"github.com/cps-perf/ncmploader/suite"
)

const runExamples = `
  # Run the kpi profile against a local docker deployment.
  ncmploader run --profile kpi

  # Run a profile file against a kubernetes deployment with 20000 cm handles.
  TOTAL_CM_HANDLES=20000 ncmploader run --profile-file ./endurance.yaml --deployment k8sHosts

  # Run every scenario on two load nodes and append max rps to a scaling csv.
  ncmploader run --nodes node1:50051,node2:50051 --scaling-csv scaling.csv
`

func getRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a test profile: setup, scenarios, teardown and KPI summary",
		Example: runExamples,
		Args:    cobra.NoArgs,
		RunE:    runRunCommand,
	}
	addNcmpFlags(cmd)
	defaultProfile := os.Getenv(ncmp.EnvTestProfile)
	if defaultProfile == "" {
		defaultProfile = suite.ProfileKPI
	}
	cmd.Flags().StringP("profile", "p", defaultProfile, "embedded profile name")
	cmd.Flags().String("profile-file", "", "profile file, json or yaml, overrides --profile")
	cmd.Flags().StringSlice("nodes", []string{}, "load node addresses, runs scenarios in cluster mode")
	cmd.Flags().String("scaling-csv", "", "appends scenario, nodes and max rps to this csv")
	cmd.Flags().Bool("csv", false, "write requests and percentiles csv per scenario")
	cmd.Flags().Bool("png", false, "render percentiles charts per scenario")
	cmd.Flags().Bool("screenshot", false, "screenshot html charts with headless chrome")
	cmd.Flags().String("report-dir", "", "directory for report files")
	cmd.Flags().Bool("prometheus", false, "export tick metrics on /metrics")
	cmd.Flags().Int("prometheus-port", ncmploader.DefaultPrometheusPort, "prometheus port")
	cmd.Flags().Int("pprof-port", 0, "serve pprof on this port")
	cmd.Flags().Bool("fail-on-first-error", false, "stop a scenario on the first failed request")
	cmd.Flags().Float64("success-ratio", 0, "fail a scenario when tick success ratio is lower")
	return cmd
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	profileName, _ := cmd.Flags().GetString("profile")
	profileFile, _ := cmd.Flags().GetString("profile-file")
	nodes, _ := cmd.Flags().GetStringSlice("nodes")
	scalingCsv, _ := cmd.Flags().GetString("scaling-csv")
	csvReport, _ := cmd.Flags().GetBool("csv")
	pngReport, _ := cmd.Flags().GetBool("png")
	screenshot, _ := cmd.Flags().GetBool("screenshot")
	reportDir, _ := cmd.Flags().GetString("report-dir")
	prom, _ := cmd.Flags().GetBool("prometheus")
	promPort, _ := cmd.Flags().GetInt("prometheus-port")
	pprofPort, _ := cmd.Flags().GetInt("pprof-port")
	failOnFirstError, _ := cmd.Flags().GetBool("fail-on-first-error")
	successRatio, _ := cmd.Flags().GetFloat64("success-ratio")

	var p *suite.Profile
	var err error
	if profileFile != "" {
		p, err = suite.LoadProfileFile(profileFile)
	} else {
		p, err = suite.LoadProfile(profileName)
	}
	if err != nil {
		return err
	}
	cfg, err := loadNcmpConfig(cmd)
	if err != nil {
		return err
	}

	base := baseRunnerConfig(cmd)
	base.TargetUrl = cfg.NCMPBaseURL
	base.FailOnFirstError = failOnFirstError
	base.SuccessRatio = successRatio
	base.PprofPort = pprofPort
	base.ReportOptions = &ncmploader.ReportOptions{
		CSV:        csvReport || pngReport || screenshot,
		PNG:        pngReport || screenshot,
		Screenshot: screenshot,
		Dir:        reportDir,
	}
	if prom {
		base.Prometheus = &ncmploader.Prometheus{Enable: true, Port: promPort}
	}
	if len(nodes) > 0 {
		base.ClusterOptions = &ncmploader.ClusterOptions{Nodes: nodes}
	}

	l := ncmploader.NewLogger(&base)
	l.Infof("profile: %s, target: %s, cm handles: %d", p.Name, cfg.NCMPBaseURL, cfg.TotalCmHandles)
	ctx, cancel := signalContext(base, l)
	defer cancel()

	s := suite.New(p, base, scenarios.NewEnv(cfg, nil, l))
	runErr := s.Execute(ctx, cmd.OutOrStdout())
	if scalingCsv != "" {
		for _, res := range s.Results() {
			if res.Err != nil {
				continue
			}
			if err := ncmploader.AppendScalingData(scalingCsv, res.Name, res.Nodes, res.MaxRPS); err != nil {
				l.Error(err)
			}
		}
	}
	return runErr
}
