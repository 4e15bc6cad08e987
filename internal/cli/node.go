/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package cli

import (
	"github.com/spf13/cobra"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/scenarios"
)

func getNodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a load node which runs scenarios for a cluster client",
		Args:  cobra.NoArgs,
		RunE:  runNodeCommand,
	}
	addNcmpFlags(cmd)
	cmd.Flags().String("addr", "0.0.0.0:50051", "grpc listen address")
	return cmd
}

func runNodeCommand(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	cfg, err := loadNcmpConfig(cmd)
	if err != nil {
		return err
	}
	base := baseRunnerConfig(cmd)
	l := ncmploader.NewLogger(&base)
	env := scenarios.NewEnv(cfg, nil, l)
	defer env.Close()

	s, err := ncmploader.RunService(addr, env, l)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(base, l)
	defer cancel()
	<-ctx.Done()
	l.Infof("stopping node %s", addr)
	s.GracefulStop()
	return nil
}
