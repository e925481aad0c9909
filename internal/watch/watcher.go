package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chainscan/internal/model"
	"chainscan/internal/reorg"
	"chainscan/internal/scan"
	"chainscan/internal/storage"
)

// ErrReorgTooDeep means the fork point fell below the monitor's header
// window. The stored data cannot be repaired incrementally and the
// range must be rescanned from scratch.
var ErrReorgTooDeep = errors.New("reorg deeper than monitored window")

// Config holds runtime settings for a live watch.
type Config struct {
	// StartBlock is the first block to process. Zero means start at the
	// safe tip and only deliver new blocks.
	StartBlock    uint64
	Filter        scan.Filter
	PollInterval  time.Duration
	Confirmations uint64
	ChunkSize     uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	// CheckpointPath persists the cursor between restarts. Empty
	// disables checkpointing.
	CheckpointPath string
	// Checkpointer overrides the file checkpoint when set.
	Checkpointer scan.Checkpointer
	// OnReorg, when set, is called for every detected reorganisation
	// before the affected range is rescanned.
	OnReorg func(model.ReorgEvent)
}

// Watcher follows the chain tip: each polling cycle it updates the
// reorg monitor, rewinds past any fork, then reads logs up to the
// confirmation-safe block and delivers them to the sink.
type Watcher struct {
	cfg        Config
	source     scan.LogSource
	monitor    *reorg.Monitor
	sink       storage.Storage
	logger     *zap.Logger
	checkpoint scan.Checkpointer
	runID      string

	cursor uint64
	primed bool
}

func NewWatcher(cfg Config, source scan.LogSource, monitor *reorg.Monitor, sink storage.Storage, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1000
	}
	checkpoint := cfg.Checkpointer
	if checkpoint == nil {
		checkpoint = scan.NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointPath != "")
	}
	return &Watcher{
		cfg:        cfg,
		source:     source,
		monitor:    monitor,
		sink:       sink,
		logger:     logger,
		checkpoint: checkpoint,
		runID:      uuid.NewString(),
	}
}

// Cursor returns the last processed block.
func (w *Watcher) Cursor() uint64 {
	return w.cursor
}

// Run polls until the context is cancelled or a reorg exceeds the
// monitored window. Transient cycle errors are logged and retried on
// the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	if w.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if w.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if err := w.cfg.Filter.Validate(); err != nil {
		return err
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrReorgTooDeep) {
				return err
			}
			w.logger.Warn("watch cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs a single poll iteration.
func (w *Watcher) Cycle(ctx context.Context) error {
	tip, err := w.monitor.UpdateChain(ctx)
	if err != nil {
		return fmt.Errorf("update chain: %w", err)
	}

	safe := tip.Safe(w.cfg.Confirmations)

	if !w.primed {
		cp, ok, err := w.checkpoint.Load()
		if err != nil {
			return err
		}
		switch {
		case ok:
			w.cursor = cp.LastProcessedBlock
			w.logger.Info("resume from checkpoint",
				zap.Uint64("last_processed", cp.LastProcessedBlock),
				zap.String("run_id", w.runID))
		case w.cfg.StartBlock > 0:
			w.cursor = w.cfg.StartBlock - 1
		default:
			w.cursor = safe
		}
		w.primed = true
	}

	if tip.Reorg != nil {
		if err := w.handleReorg(*tip.Reorg); err != nil {
			return err
		}
	}

	if safe <= w.cursor {
		return nil
	}

	ranges, err := scan.SplitRange(w.cursor+1, safe, w.cfg.ChunkSize)
	if err != nil {
		return err
	}

	for _, chunk := range ranges {
		var records []model.LogRecord
		err := scan.Retry(ctx, w.cfg.MaxRetries, w.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			records, err = w.source.FetchLogs(ctx, chunk.From, chunk.To, w.cfg.Filter)
			return err
		})
		if err != nil {
			return fmt.Errorf("fetch logs %d-%d: %w", chunk.From, chunk.To, err)
		}

		if err := w.sink.PutLogBatch(records); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
		w.cursor = chunk.To
		if err := w.checkpoint.Save(w.cursor, w.runID); err != nil {
			return err
		}

		w.logger.Info("watch chunk complete",
			zap.Int("logs", len(records)),
			zap.Uint64("from", chunk.From),
			zap.Uint64("to", chunk.To))
	}

	return nil
}

// handleReorg rewinds the cursor to the common ancestor and discards
// stored records above it so the rescan replaces the stale fork.
func (w *Watcher) handleReorg(event model.ReorgEvent) error {
	if event.DepthExceeded {
		return fmt.Errorf("%w: depth %d", ErrReorgTooDeep, event.Depth)
	}

	w.logger.Warn("chain reorg detected",
		zap.Uint64("common_ancestor", event.CommonAncestor),
		zap.Uint64("depth", event.Depth),
		zap.String("old_tip", event.OldTipHash),
		zap.String("new_tip", event.NewTipHash))

	if w.cfg.OnReorg != nil {
		w.cfg.OnReorg(event)
	}

	if event.CommonAncestor >= w.cursor {
		return nil
	}

	if rewinder, ok := w.sink.(storage.Rewinder); ok {
		if err := rewinder.DeleteFromBlock(event.CommonAncestor + 1); err != nil {
			return fmt.Errorf("rewind sink: %w", err)
		}
	}
	w.cursor = event.CommonAncestor
	return w.checkpoint.Save(w.cursor, w.runID)
}
