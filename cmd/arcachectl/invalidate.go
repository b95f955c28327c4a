package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/arcache"
)

type invalidateFlags struct {
	hard   bool
	soft   bool
	window string
}

func newInvalidateCmd(a *app) *cobra.Command {
	var flags invalidateFlags
	cmd := &cobra.Command{
		Use:   "invalidate <group>",
		Short: "Invalidate every value stored under a group",
		Long: `Invalidate every value stored under a group before now.

Hard invalidation hides values (reads miss); soft invalidation keeps them
readable but flagged. With --window the invalidation is spread over that
much time before now. Defaults come from the configuration file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []arcache.InvalidateOption
			switch {
			case flags.hard && flags.soft:
				return fmt.Errorf("--hard and --soft are mutually exclusive")
			case flags.hard:
				opts = append(opts, arcache.Hard())
			case flags.soft:
				opts = append(opts, arcache.Soft())
			}
			if cmd.Flags().Changed("window") {
				d, err := parseDuration("window", flags.window)
				if err != nil {
					return err
				}
				opts = append(opts, arcache.Window(d))
			}

			task, err := a.client.AsyncInvalidateKey(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			defer task.Cancel()
			ok, err := task.Await(cmd.Context(), 0)
			if err != nil {
				return &arcache.InvalidateError{Group: args[0], Err: err}
			}
			if !ok {
				return fmt.Errorf("invalidate %q: backend rejected the record", args[0])
			}
			rec := task.Record()
			kind := "soft"
			if rec.Hard {
				kind = "hard"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s (%s, window %dms)\n", args[0], kind, rec.InvalidationWindowMillis)
			return nil
		},
	}
	cmd.Flags().BoolVar(&flags.hard, "hard", false, "Hide matching values")
	cmd.Flags().BoolVar(&flags.soft, "soft", false, "Flag matching values but keep them readable")
	cmd.Flags().StringVar(&flags.window, "window", "", "Spread the invalidation over this duration, e.g. 30s")
	return cmd
}
