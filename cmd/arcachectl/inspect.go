package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/arcache/entry"
)

// recordView is the printable form of an invalidation record.
type recordView struct {
	Key          string `yaml:"key"`
	Invalidation string `yaml:"invalidation"`
	Hard         bool   `yaml:"hard"`
	WindowMillis int64  `yaml:"window_ms"`
	LastHard     string `yaml:"last_hard,omitempty"`
	LastSoft     string `yaml:"last_soft,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <group>",
		Short: "Print the raw invalidation record of a group as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := a.client.Keys().InvalidationBackendKey(args[0])
			raw, err := a.backend.Get(cmd.Context(), key)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch rec := raw.(type) {
			case nil:
				fmt.Fprintf(out, "group %s has no invalidation record\n", args[0])
				return nil
			case *entry.Invalidation:
				b, err := yaml.Marshal(viewOf(key, rec))
				if err != nil {
					return err
				}
				_, err = out.Write(b)
				return err
			default:
				return fmt.Errorf("key %s holds %T, not an invalidation record", key, raw)
			}
		},
	}
}

func viewOf(key string, rec *entry.Invalidation) recordView {
	return recordView{
		Key:          key,
		Invalidation: stamp(rec.InvalidationTimestampMillis),
		Hard:         rec.Hard,
		WindowMillis: rec.InvalidationWindowMillis,
		LastHard:     stamp(rec.LastHardInvalidationTimestampMillis),
		LastSoft:     stamp(rec.LastSoftInvalidationTimestampMillis),
	}
}

func stamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}
