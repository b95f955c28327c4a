package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/arcache"
)

func newGetCmd(a *app) *cobra.Command {
	var timeout string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key and show how the cache sees it",
		Long: `Read a key and print its result type (hit, miss, expired, invalidated,
timeout, error), the value and its metadata.

The command exits non-zero on timeout and error results.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDuration("timeout", timeout)
			if err != nil {
				return err
			}
			r := a.client.GetCacheObject(cmd.Context(), args[0])
			if d > 0 {
				r = a.client.GetCacheObjectTimeout(cmd.Context(), args[0], d)
			}
			printResult(cmd, r)
			if r.Type == arcache.Timeout || r.Type == arcache.Error {
				return r.Err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&timeout, "wait", "", "Await timeout for this read (default: operation timeout)")
	return cmd
}

func printResult(cmd *cobra.Command, r arcache.Result[string]) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "result:  %s\n", r.Type)
	if !r.Type.HasValue() {
		return
	}
	fmt.Fprintf(out, "value:   %s\n", r.Value)
	fmt.Fprintf(out, "stored:  %s\n", time.UnixMilli(r.StoreTimestampMillis).UTC().Format(time.RFC3339Nano))
	if len(r.InvalidationKeys) > 0 {
		fmt.Fprintf(out, "groups:  %s\n", strings.Join(r.InvalidationKeys, ", "))
	}
	if r.InvalidatedKey != "" {
		fmt.Fprintf(out, "by:      %s\n", r.InvalidatedKey)
	}
}

// parseDuration accepts "" as 0.
func parseDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("--%s must be >= 0, got %v", name, d)
	}
	return d, nil
}
