package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chainscan/internal/chain"
	"chainscan/internal/config"
	"chainscan/internal/model"
	"chainscan/internal/reorg"
	"chainscan/internal/scan"
	"chainscan/internal/storage"
	"chainscan/internal/storage/postgres"
	"chainscan/internal/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the chain tip and deliver confirmed logs",
		RunE:  runWatch,
	}

	cmd.Flags().String("rpc", "", "JSON-RPC URL")
	cmd.Flags().Uint64("from", 0, "start block, 0 starts at the safe tip")
	cmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated)")
	cmd.Flags().StringSlice("topic0", nil, "event signatures or topic0 hashes (comma-separated)")
	cmd.Flags().Duration("poll-interval", 5*time.Second, "tip polling interval")
	cmd.Flags().Uint64("confirmations", 5, "blocks behind the tip considered safe")
	cmd.Flags().Uint64("chunk-size", 1000, "blocks per eth_getLogs chunk")
	cmd.Flags().Uint64("max-depth", 256, "deepest reorg the monitor can recover from")
	cmd.Flags().Float64("rate-limit", 0, "max RPC requests per second, 0 disables")
	cmd.Flags().String("redis-addr", "", "Redis address for the block store, empty keeps headers in memory")
	cmd.Flags().String("redis-password", "", "Redis password")
	cmd.Flags().Int("redis-db", 0, "Redis database number")
	cmd.Flags().String("redis-prefix", "chainscan", "Redis key prefix")
	cmd.Flags().String("out", "./data/watch_logs.jsonl", "output JSONL path")
	cmd.Flags().String("checkpoint", "./data/watch_checkpoint.json", "checkpoint file path, empty disables")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN, writes to Postgres instead of JSONL")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	filter, err := scan.NewFilter(cfg.Addresses, cfg.Topic0)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []chain.Option
	if cfg.RateLimit > 0 {
		opts = append(opts, chain.WithRateLimit(cfg.RateLimit))
	}
	client, err := chain.NewClient(ctx, cfg.RPCURL, opts...)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	source, err := scan.NewRPCSource(ctx, client)
	if err != nil {
		return err
	}

	store, closeStore, err := buildBlockStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, checkpointer, closeSink, err := buildWatchSink(ctx, cfg, source.ChainID())
	if err != nil {
		return err
	}
	defer closeSink()

	monitor := reorg.NewMonitor(client, store, cfg.MaxDepth, logger)

	watcher := watch.NewWatcher(watch.Config{
		StartBlock:     cfg.StartBlock,
		Filter:         filter,
		PollInterval:   cfg.PollInterval,
		Confirmations:  cfg.Confirmations,
		ChunkSize:      cfg.ChunkSize,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		CheckpointPath: cfg.Checkpoint,
		Checkpointer:   checkpointer,
		OnReorg: func(event model.ReorgEvent) {
			logger.Warn("chain reorganization",
				zap.Uint64("common_ancestor", event.CommonAncestor),
				zap.Uint64("depth", event.Depth),
				zap.String("old_tip", event.OldTipHash),
				zap.String("new_tip", event.NewTipHash),
			)
		},
	}, source, monitor, sink, logger)

	logger.Info("watch configured",
		zap.Uint64("from", cfg.StartBlock),
		zap.Uint64("confirmations", cfg.Confirmations),
		zap.Uint64("max_depth", cfg.MaxDepth),
		zap.Duration("poll_interval", cfg.PollInterval),
	)

	return watcher.Run(ctx)
}

func buildBlockStore(ctx context.Context, cfg config.WatchConfig) (reorg.BlockStore, func(), error) {
	if cfg.RedisAddr == "" {
		return reorg.NewMemoryStore(), func() {}, nil
	}

	store, err := reorg.NewRedisStore(ctx, reorg.RedisConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.RedisPrefix,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return store, func() { store.Close() }, nil
}

// buildWatchSink returns the log sink plus, for the Postgres backend, a
// scan_state checkpointer replacing the local checkpoint file.
func buildWatchSink(ctx context.Context, cfg config.WatchConfig, chainID uint64) (storage.Storage, scan.Checkpointer, func(), error) {
	if cfg.PostgresDSN == "" {
		return storage.NewJsonlStorage(cfg.Out), nil, func() {}, nil
	}

	store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	checkpointer := postgres.NewStateCheckpoint(store, fmt.Sprintf("watch:%d", chainID))
	return postgres.NewLogSink(store, chainID), checkpointer, store.Close, nil
}
