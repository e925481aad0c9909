package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chainscan/internal/model"
	"chainscan/internal/storage"
)

// Config holds runtime settings for a scan.
type Config struct {
	FromBlock         uint64
	ToBlock           uint64 // 0 means latest
	Filter            Filter
	ChunkSize         uint64
	Workers           int // <=1 scans sequentially
	CheckpointPath    string
	CheckpointEnabled bool
	// Checkpointer overrides the file checkpoint when set.
	Checkpointer Checkpointer
	MaxRetries   int
	RetryBackoff time.Duration
}

// Reader pages eth_getLogs over a block range in fixed-size chunks and
// delivers ordered, deduplicated batches to the sink. With more than one
// worker, chunks are fetched in parallel and reassembled in block order
// before delivery.
type Reader struct {
	cfg        Config
	source     LogSource
	sink       storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint Checkpointer
	runID      string
}

// NewReader builds a Reader with its dependencies.
func NewReader(cfg Config, source LogSource, sink storage.Storage, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	checkpoint := cfg.Checkpointer
	if checkpoint == nil {
		checkpoint = NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled)
	}
	return &Reader{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: checkpoint,
		runID:      uuid.NewString(),
	}
}

// RunID returns the identifier assigned to this scan run.
func (r *Reader) RunID() string {
	return r.runID
}

// Run executes the scan.
func (r *Reader) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if r.cfg.ChunkSize == 0 {
		return fmt.Errorf("chunk size must be greater than zero")
	}
	if err := r.cfg.Filter.Validate(); err != nil {
		return err
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlock(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint",
				zap.Uint64("last_processed", cp.LastProcessedBlock),
				zap.Uint64("from", from),
				zap.String("run_id", r.runID))
		}
	}

	if from > to {
		r.logger.Info("nothing to scan", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.ChunkSize)
	if err != nil {
		return err
	}

	r.logger.Info("scan start",
		zap.String("run_id", r.runID),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("chunks", len(ranges)),
		zap.Int("workers", r.cfg.Workers))

	if r.cfg.Workers > 1 {
		return fetchOrdered(ctx, ranges, r.cfg.Workers, r.fetchChunk, r.deliver)
	}

	for _, chunk := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		records, err := r.fetchChunk(ctx, chunk)
		if err != nil {
			return err
		}
		if err := r.deliver(chunk, records); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reader) fetchChunk(ctx context.Context, chunk BlockRange) ([]model.LogRecord, error) {
	var records []model.LogRecord
	err := Retry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		records, err = r.source.FetchLogs(ctx, chunk.From, chunk.To, r.cfg.Filter)
		if err != nil {
			r.logger.Warn("fetch logs failed",
				zap.Error(err),
				zap.Uint64("from", chunk.From),
				zap.Uint64("to", chunk.To))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch logs %d-%d: %w", chunk.From, chunk.To, err)
	}
	return records, nil
}

// deliver runs on a single goroutine in chunk order, so the seen map and
// the checkpoint need no locking.
func (r *Reader) deliver(chunk BlockRange, records []model.LogRecord) error {
	fresh := make([]model.LogRecord, 0, len(records))
	for _, record := range records {
		if r.isDuplicate(record) {
			continue
		}
		fresh = append(fresh, record)
	}

	if err := r.sink.PutLogBatch(fresh); err != nil {
		return fmt.Errorf("store logs: %w", err)
	}

	if r.checkpoint != nil {
		if err := r.checkpoint.Save(chunk.To, r.runID); err != nil {
			return err
		}
	}

	r.logger.Info("chunk complete",
		zap.Int("logs", len(fresh)),
		zap.Uint64("from", chunk.From),
		zap.Uint64("to", chunk.To))
	return nil
}

func (r *Reader) isDuplicate(record model.LogRecord) bool {
	key := record.Key()
	if _, ok := r.seen[key]; ok {
		return true
	}
	r.seen[key] = struct{}{}
	return false
}
