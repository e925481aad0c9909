package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chainscan/internal/chain"
	"chainscan/internal/config"
	"chainscan/internal/model"
	"chainscan/internal/protocol"
	"chainscan/internal/storage"
	"chainscan/internal/storage/postgres"
	"chainscan/internal/token"
)

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed protocol events",
		RunE:  runDecode,
	}

	cmd.Flags().String("rpc", "", "JSON-RPC URL for token metadata lookups, empty skips enrichment")
	cmd.Flags().String("in", "", "input JSONL path of raw logs")
	cmd.Flags().String("out", "./data/events.jsonl", "output JSONL path for decoded events")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "output JSONL path for decode errors")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN, writes events to Postgres instead of JSONL")
	cmd.Flags().StringSlice("protocols", []string{"erc20", "uniswap_v2", "uniswap_v3", "aave_v3"}, "decoders to register (comma-separated)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []protocol.RegistryOption
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		opts = append(opts, protocol.WithTokenService(token.NewService(chainClient, logger)))
	}

	registry := protocol.NewRegistry(logger, opts...)
	if err := registerDecoders(registry, cfg.Protocols); err != nil {
		return err
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	events, closeEvents, err := buildEventSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEvents()

	errWriter, err := newJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Strings("protocols", cfg.Protocols),
		zap.Bool("postgres", cfg.PostgresDSN != ""),
		zap.Bool("token_enrichment", cfg.RPCURL != ""),
	)

	scanner := bufio.NewScanner(inputFile)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, decoded, skipped, failed int
	batch := make([]model.TypedEvent, 0, eventBatchSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			writeDecodeError(errWriter, model.DecodeError{Error: err.Error()})
			continue
		}

		event, err := registry.Decode(ctx, record)
		if err != nil {
			failed++
			writeDecodeError(errWriter, decodeErrorFromRecord(record, err))
			continue
		}
		if event == nil {
			skipped++
			continue
		}

		batch = append(batch, *event)
		if len(batch) == eventBatchSize {
			if err := events.PutEventBatch(batch); err != nil {
				return fmt.Errorf("store events: %w", err)
			}
			batch = batch[:0]
		}
		decoded++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	if err := events.PutEventBatch(batch); err != nil {
		return fmt.Errorf("store events: %w", err)
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

const eventBatchSize = 256

// buildEventSink returns the decoded-event sink. The JSONL file is
// removed first so a re-run replaces earlier output.
func buildEventSink(ctx context.Context, cfg config.DecodeConfig) (storage.EventStorage, func(), error) {
	if cfg.PostgresDSN == "" {
		if err := os.Remove(cfg.Out); err != nil && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("reset output: %w", err)
		}
		return storage.NewJsonlEventStorage(cfg.Out), func() {}, nil
	}

	store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return postgres.NewLogSink(store, 0), store.Close, nil
}

func registerDecoders(registry *protocol.Registry, names []string) error {
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "erc20":
			decoder, err := protocol.NewERC20Decoder()
			if err != nil {
				return err
			}
			registry.Register(decoder)
		case "uniswap_v2":
			decoder, err := protocol.NewUniswapV2Decoder()
			if err != nil {
				return err
			}
			registry.Register(decoder)
		case "uniswap_v3":
			decoder, err := protocol.NewUniswapV3Decoder()
			if err != nil {
				return err
			}
			registry.Register(decoder)
		case "aave_v3":
			decoder, err := protocol.NewAaveV3Decoder()
			if err != nil {
				return err
			}
			registry.Register(decoder)
		case "":
			continue
		default:
			return fmt.Errorf("unknown protocol: %s", name)
		}
	}
	return nil
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

func newJSONLWriter(path string, appendMode bool) (*jsonlWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}

	return model.DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      topic0,
		Error:       err.Error(),
	}
}

func writeDecodeError(writer *jsonlWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
