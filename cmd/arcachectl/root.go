package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/arcache"
	"github.com/unkn0wn-root/arcache/backend"
	"github.com/unkn0wn-root/arcache/backend/redis"
	"github.com/unkn0wn-root/arcache/codec"
	"github.com/unkn0wn-root/arcache/internal/config"
	zapadapter "github.com/unkn0wn-root/arcache/log/zap"
)

// opener builds the backend from the loaded config.
type opener func(f *config.File) (backend.Client, error)

func openRedis(f *config.File) (backend.Client, error) {
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    f.Redis.Addrs,
		Username: f.Redis.Username,
		Password: f.Redis.Password,
		DB:       f.Redis.DB,
	})
	return redis.New(redis.Config{Client: rdb, CloseClient: true})
}

// app is what every subcommand works with once the root has run.
type app struct {
	file    *config.File
	log     *zap.Logger
	backend backend.Client
	client  arcache.Client[string]
}

type rootFlags struct {
	config    string
	redis     []string
	namespace string
	timeout   string
	logLevel  string
}

func newRootCmd(open opener) *cobra.Command {
	var (
		flags rootFlags
		a     = &app{}
	)

	rootCmd := &cobra.Command{
		Use:   "arcachectl",
		Short: "Inspect and drive an arcache keyspace",
		Long: `arcachectl reads, writes and invalidates string values stored by
arcache clients in Redis, and shows the raw invalidation record of a group.

Configuration comes from --config, $ARCACHE_CONFIG or built-in defaults;
flags override file values.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, flags, open)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close(cmd.Context())
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Path to configuration file")
	pf.StringSliceVar(&flags.redis, "redis", nil, "Redis addresses (overrides redis.addrs)")
	pf.StringVarP(&flags.namespace, "namespace", "n", "", "Key namespace (overrides namespace)")
	pf.StringVar(&flags.timeout, "timeout", "", "Operation timeout, e.g. 500ms (overrides operation_timeout)")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")

	rootCmd.AddCommand(
		newGetCmd(a),
		newSetCmd(a),
		newInvalidateCmd(a),
		newInspectCmd(a),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command, flags rootFlags, open opener) error {
	f, err := config.LoadOrDefault(flags.config)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, f, flags); err != nil {
		return err
	}
	a.file = f

	if a.log, err = newLogger(f.Log); err != nil {
		return err
	}
	if a.backend, err = open(f); err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	a.client, err = arcache.New[string](arcache.Options[string]{
		Backend:              a.backend,
		Codec:                codec.String{},
		Namespace:            f.Namespace,
		KeyDelimiter:         f.KeyDelimiter,
		OperationTimeout:     f.OperationTimeout,
		TimeMeasurementError: f.TimeMeasurementError,
		InvalidationWindow:   f.InvalidationWindow,
		HardInvalidation:     f.HardInvalidation,
		ExpirationTime:       f.ExpirationTime,
		RemovalTime:          f.RemovalTime,
		Logger:               zapadapter.New(a.log),
	})
	return err
}

func (a *app) close(ctx context.Context) error {
	if a.log != nil {
		defer func() { _ = a.log.Sync() }()
	}
	if a.client == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return a.client.Close(ctx)
}

func applyFlags(cmd *cobra.Command, f *config.File, flags rootFlags) error {
	pf := cmd.Flags()
	if pf.Changed("redis") {
		f.Redis.Addrs = flags.redis
	}
	if pf.Changed("namespace") {
		f.Namespace = flags.namespace
	}
	if pf.Changed("timeout") {
		d, err := parseDuration("timeout", flags.timeout)
		if err != nil {
			return err
		}
		f.OperationTimeout = d
	}
	if pf.Changed("log-level") {
		f.Log.Level = flags.logLevel
	}
	return f.Validate()
}

func newLogger(c config.Log) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
