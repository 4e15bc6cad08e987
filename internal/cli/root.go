/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

// Package cli ncmploader commands
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmp"
)

// GetRootCommand returns the root ncmploader command
func GetRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ncmploader <command> [args]",
		Short:        "Run NCMP load tests and KPI profiles",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			base := baseRunnerConfig(cmd)
			return ncmploader.CheckLogConfig(base.LogLevel, base.LogEncoding)
		},
	}
	cmd.AddCommand(getRunCommand())
	cmd.AddCommand(getStubCommand())
	cmd.AddCommand(getNodeCommand())
	cmd.AddCommand(getReportCommand())
	cmd.AddCommand(getListCommand())
	cmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-encoding", "console", "log encoding: console or json")
	cmd.PersistentFlags().Bool("goroutines-dump", false, "log goroutine dump on exit signal")
	return cmd
}

func baseRunnerConfig(cmd *cobra.Command) ncmploader.RunnerConfig {
	level, _ := cmd.Flags().GetString("log-level")
	encoding, _ := cmd.Flags().GetString("log-encoding")
	dump, _ := cmd.Flags().GetBool("goroutines-dump")
	return ncmploader.RunnerConfig{
		LogLevel:       level,
		LogEncoding:    encoding,
		GoroutinesDump: dump,
	}
}

func addNcmpFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "ncmp environment config file, json or yaml")
	cmd.Flags().String("deployment", os.Getenv(ncmp.EnvDeploymentType), "deployment type, selects embedded environment when no config file is given")
	cmd.Flags().String("ncmp-url", "", "overrides ncmp base url")
	cmd.Flags().String("kafka", "", "overrides kafka bootstrap servers, comma separated")
	cmd.Flags().String("transport", "", "http transport: nethttp or fasthttp")
	cmd.Flags().Bool("dump-transport", false, "dump http requests and responses")
}

// loadNcmpConfig environment or file config, then env vars, then flags
func loadNcmpConfig(cmd *cobra.Command) (ncmp.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	deployment, _ := cmd.Flags().GetString("deployment")
	var cfg ncmp.Config
	var err error
	if file != "" {
		cfg, err = ncmp.LoadConfigFile(file)
	} else {
		cfg, err = ncmp.LoadEnvironment(ncmp.EnvironmentName(deployment))
	}
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if v, _ := cmd.Flags().GetString("ncmp-url"); v != "" {
		cfg.NCMPBaseURL = v
	}
	if v, _ := cmd.Flags().GetString("kafka"); v != "" {
		cfg.KafkaBootstrapServer = v
	}
	if v, _ := cmd.Flags().GetString("transport"); v != "" {
		cfg.Transport = v
	}
	if v, _ := cmd.Flags().GetBool("dump-transport"); v {
		cfg.DumpTransport = true
	}
	return cfg, cfg.Validate()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(base ncmploader.RunnerConfig, l *ncmploader.Logger) (context.Context, context.CancelFunc) {
	return ncmploader.SignalContext(context.Background(), l, base.GoroutinesDump)
}
