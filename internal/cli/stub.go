/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmpstub"
)

func getStubCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run in-memory NCMP stub with DMI delays for local runs",
		Args:  cobra.NoArgs,
		RunE:  runStubCommand,
	}
	opts := ncmpstub.DefaultOptions()
	cmd.Flags().String("addr", "0.0.0.0:8883", "listen address")
	cmd.Flags().Duration("read-delay", opts.ReadDelay, "dmi pass-through read delay")
	cmd.Flags().Duration("write-delay", opts.WriteDelay, "dmi pass-through write delay")
	cmd.Flags().Duration("ready-after", opts.ReadyAfter, "time until a registered cm handle is READY")
	cmd.Flags().StringSlice("modules", opts.Modules, "modules of every cm handle")
	cmd.Flags().String("kafka", "", "kafka bootstrap servers, publishes batch read results when set")
	return cmd
}

func runStubCommand(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	opts := ncmpstub.DefaultOptions()
	opts.ReadDelay, _ = cmd.Flags().GetDuration("read-delay")
	opts.WriteDelay, _ = cmd.Flags().GetDuration("write-delay")
	opts.ReadyAfter, _ = cmd.Flags().GetDuration("ready-after")
	opts.Modules, _ = cmd.Flags().GetStringSlice("modules")
	kafka, _ := cmd.Flags().GetString("kafka")

	base := baseRunnerConfig(cmd)
	l := ncmploader.NewLogger(&base).With("stub", addr)

	var pub ncmpstub.BatchPublisher
	if kafka != "" {
		kp, err := ncmpstub.NewKafkaPublisher(strings.Split(kafka, ","))
		if err != nil {
			return err
		}
		defer kp.Close()
		pub = kp
	}
	srv := ncmpstub.New(opts, pub, l).Run(addr)
	l.Infof("ncmp stub listening on %s", addr)

	ctx, cancel := signalContext(base, l)
	defer cancel()
	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
