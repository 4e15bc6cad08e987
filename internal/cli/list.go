/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cps-perf/ncmploader"
	"github.com/cps-perf/ncmploader/ncmp"
	"github.com/cps-perf/ncmploader/suite"
)

func getListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles, scenarios and search filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if schema, _ := cmd.Flags().GetBool("schema"); schema {
				b, err := suite.ProfileSchema()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(b))
				return err
			}
			for _, group := range []struct {
				title string
				names []string
			}{
				{"profiles", suite.ProfileNames()},
				{"scenarios", ncmploader.RegisteredAttackers()},
				{"search filters", ncmp.SearchFilterNames()},
			} {
				fmt.Fprintf(out, "%s:\n", group.title)
				for _, n := range group.names {
					fmt.Fprintf(out, "  %s\n", n)
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("schema", false, "print profile json schema instead")
	return cmd
}
