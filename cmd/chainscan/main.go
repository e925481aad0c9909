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
	"go.uber.org/zap/zapcore"

	"chainscan/internal/chain"
	"chainscan/internal/config"
	"chainscan/internal/hypersync"
	"chainscan/internal/scan"
	"chainscan/internal/storage"
	"chainscan/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "chainscan",
		Short:        "EVM event scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a block range for logs",
		RunE:  runScan,
	}

	scanCmd.Flags().String("rpc", "", "JSON-RPC URL")
	scanCmd.Flags().String("source", "rpc", "log source (rpc, hypersync)")
	scanCmd.Flags().String("hypersync-url", "", "HyperSync endpoint URL")
	scanCmd.Flags().String("hypersync-token", "", "HyperSync bearer token")
	scanCmd.Flags().Uint64("chain-id", 0, "chain id stamped on records from the hypersync source")
	scanCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	scanCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	scanCmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated)")
	scanCmd.Flags().StringSlice("topic0", nil, "event signatures or topic0 hashes (comma-separated)")
	scanCmd.Flags().Uint64("chunk-size", 2000, "blocks per eth_getLogs chunk")
	scanCmd.Flags().Int("workers", 1, "concurrent fetch workers")
	scanCmd.Flags().Float64("rate-limit", 0, "max RPC requests per second, 0 disables")
	scanCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	scanCmd.Flags().String("pg-dsn", "", "Postgres DSN, writes to Postgres instead of JSONL")
	scanCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	scanCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	scanCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	scanCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	scanCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(scanCmd)
	root.AddCommand(newWatchCmd())
	root.AddCommand(newDecodeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadScan(cfgFile, cmd.Flags())
	if err != nil {
		return err
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

	source, closeSource, err := buildSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	sink, checkpointer, closeSink, err := buildSink(ctx, cfg, source)
	if err != nil {
		return err
	}
	defer closeSink()

	reader := scan.NewReader(scan.Config{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Filter:            filter,
		ChunkSize:         cfg.ChunkSize,
		Workers:           cfg.Workers,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		Checkpointer:      checkpointer,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, source, sink, logger)

	logger.Info("scan configured",
		zap.String("source", cfg.Source),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(filter.Addresses)),
		zap.Int("topic0", len(filter.Topic0)),
		zap.Uint64("chunk_size", cfg.ChunkSize),
		zap.Int("workers", cfg.Workers),
	)

	return reader.Run(ctx)
}

// buildSource wires the configured log source.
func buildSource(ctx context.Context, cfg config.ScanConfig, logger *zap.Logger) (scan.LogSource, func(), error) {
	switch cfg.Source {
	case "hypersync":
		client, err := hypersync.NewClient(hypersync.Config{
			URL:         cfg.HyperSyncURL,
			BearerToken: cfg.HyperSyncToken,
			ChainID:     cfg.ChainID,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	case "rpc", "":
		if cfg.RPCURL == "" {
			return nil, nil, fmt.Errorf("rpc url is required")
		}
		var opts []chain.Option
		if cfg.RateLimit > 0 {
			opts = append(opts, chain.WithRateLimit(cfg.RateLimit))
		}
		client, err := chain.NewClient(ctx, cfg.RPCURL, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("connect rpc: %w", err)
		}
		source, err := scan.NewRPCSource(ctx, client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return source, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown source: %s", cfg.Source)
	}
}

// buildSink returns the log sink plus, for the Postgres backend, a
// scan_state checkpointer replacing the local checkpoint file.
func buildSink(ctx context.Context, cfg config.ScanConfig, source scan.LogSource) (storage.Storage, scan.Checkpointer, func(), error) {
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

	chainID := cfg.ChainID
	if rpcSource, ok := source.(*scan.RPCSource); ok {
		chainID = rpcSource.ChainID()
	}
	checkpointer := postgres.NewStateCheckpoint(store, fmt.Sprintf("scan:%d", chainID))
	return postgres.NewLogSink(store, chainID), checkpointer, store.Close, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
