/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cps-perf/ncmploader"
)

func getReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render charts from csv reports",
	}
	cmd.AddCommand(getScalingReportCommand())
	cmd.AddCommand(getPercsReportCommand())
	return cmd
}

func getScalingReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scaling <scaling.csv>",
		Short: "Render max rps by nodes chart, html and png",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			name := strings.TrimSuffix(in, filepath.Ext(in))
			if err := ncmploader.ReportScaling(in, name+".html"); err != nil {
				return err
			}
			if err := ncmploader.ReportScalingPNG(in, name+".png"); err != nil {
				return err
			}
			return screenshot(cmd, name+".html")
		},
	}
	cmd.Flags().Bool("screenshot", false, "screenshot html chart with headless chrome")
	return cmd
}

func screenshot(cmd *cobra.Command, html string) error {
	if ok, _ := cmd.Flags().GetBool("screenshot"); !ok {
		return nil
	}
	out, err := ncmploader.Screenshot(cmd.Context(), html)
	if err != nil {
		return err
	}
	cmd.Printf("screenshot: %s\n", out)
	return nil
}

func getPercsReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "percs <percs.csv>",
		Short: "Render response time percentiles chart, html and png",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			title, _ := cmd.Flags().GetString("title")
			name := strings.TrimSuffix(in, filepath.Ext(in))
			html, err := ncmploader.PercsChart(in, title)
			if err != nil {
				return err
			}
			if err := ncmploader.RenderEChart(html, name+".html"); err != nil {
				return err
			}
			png, err := ncmploader.ResponsesChart(title, in)
			if err != nil {
				return err
			}
			if err := ncmploader.RenderChart(png, name+".png"); err != nil {
				return err
			}
			return screenshot(cmd, name+".html")
		},
	}
	cmd.Flags().String("title", "Response times", "chart title")
	cmd.Flags().Bool("screenshot", false, "screenshot html chart with headless chrome")
	return cmd
}
