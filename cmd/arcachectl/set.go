package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSetCmd(a *app) *cobra.Command {
	var groups []string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a string value, optionally tagged with invalidation groups",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Set(cmd.Context(), args[0], args[1], groups...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&groups, "group", "g", nil, "Invalidation group (repeatable)")
	return cmd
}
