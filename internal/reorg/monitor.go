package reorg

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"chainscan/internal/model"
)

// HeaderSource fetches headers for the monitor. The JSON-RPC chain
// client satisfies it.
type HeaderSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	HeaderRecord(ctx context.Context, number uint64) (model.BlockHeader, error)
}

// Monitor detects chain-tip reorganisations by diffing freshly fetched
// block headers against the stored window between polling cycles.
type Monitor struct {
	source   HeaderSource
	store    BlockStore
	maxDepth uint64
	logger   *zap.Logger
}

// NewMonitor builds a Monitor. maxDepth bounds the stored header window;
// reorgs deeper than that are reported as depth-exceeded.
func NewMonitor(source HeaderSource, store BlockStore, maxDepth uint64, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDepth == 0 {
		maxDepth = 256
	}
	return &Monitor{
		source:   source,
		store:    store,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// UpdateChain runs one polling cycle: fetch headers from the last known
// block to the current tip, verify the stored window still matches the
// canonical chain, and on divergence rewind to the common ancestor.
// The returned ChainTip carries a ReorgEvent when one was detected.
func (m *Monitor) UpdateChain(ctx context.Context) (model.ChainTip, error) {
	latest, err := m.source.LatestBlockNumber(ctx)
	if err != nil {
		return model.ChainTip{}, fmt.Errorf("get latest block: %w", err)
	}

	last, has, err := m.store.LastBlock(ctx)
	if err != nil {
		return model.ChainTip{}, fmt.Errorf("load last block: %w", err)
	}

	var reorg *model.ReorgEvent

	if !has {
		// Cold start: backfill the whole window so later cycles can
		// locate a fork point anywhere inside it.
		tip, err := m.extend(ctx, latest, nil)
		if err != nil {
			return model.ChainTip{}, err
		}
		return tip, nil
	}

	// The tip can move backwards when the node switched to a shorter
	// fork; re-check from whichever is lower.
	checkFrom := last
	if latest < checkFrom {
		checkFrom = latest
	}

	fresh, err := m.source.HeaderRecord(ctx, checkFrom)
	if err != nil {
		return model.ChainTip{}, err
	}
	stored, ok, err := m.store.Get(ctx, checkFrom)
	if err != nil {
		return model.ChainTip{}, fmt.Errorf("load header %d: %w", checkFrom, err)
	}

	if ok && stored.Hash != fresh.Hash {
		// Anything stored above the divergence is stale as well.
		for n := last; n > checkFrom; n-- {
			if err := m.store.Delete(ctx, n); err != nil {
				return model.ChainTip{}, fmt.Errorf("purge header %d: %w", n, err)
			}
		}
		reorg, err = m.rewind(ctx, checkFrom, stored.Hash, fresh.Hash)
		if err != nil {
			return model.ChainTip{}, err
		}
	}

	tip, err := m.extend(ctx, latest, reorg)
	if err != nil {
		return model.ChainTip{}, err
	}

	if err := m.store.Prune(ctx, tip.Block-min64(tip.Block, m.maxDepth)); err != nil {
		return model.ChainTip{}, fmt.Errorf("prune header window: %w", err)
	}

	return tip, nil
}

// rewind walks backwards from the diverging block until the fresh
// parent-hash chain meets a stored header, purging stale entries.
func (m *Monitor) rewind(ctx context.Context, diverged uint64, oldHash, newHash string) (*model.ReorgEvent, error) {
	m.logger.Warn("chain reorganisation detected",
		zap.Uint64("block", diverged),
		zap.String("old_hash", oldHash),
		zap.String("new_hash", newHash))

	number := diverged
	for {
		if err := m.store.Delete(ctx, number); err != nil {
			return nil, fmt.Errorf("purge header %d: %w", number, err)
		}

		if number == 0 {
			return &model.ReorgEvent{
				CommonAncestor: 0,
				Depth:          diverged + 1,
				OldTipHash:     oldHash,
				NewTipHash:     newHash,
				DepthExceeded:  true,
			}, nil
		}

		fresh, err := m.source.HeaderRecord(ctx, number)
		if err != nil {
			return nil, err
		}
		stored, ok, err := m.store.Get(ctx, number-1)
		if err != nil {
			return nil, fmt.Errorf("load header %d: %w", number-1, err)
		}
		if !ok {
			// Ran out of stored headers without finding the fork
			// point; the caller has to rescan from scratch.
			return &model.ReorgEvent{
				CommonAncestor: number - 1,
				Depth:          diverged - number + 1,
				OldTipHash:     oldHash,
				NewTipHash:     newHash,
				DepthExceeded:  true,
			}, nil
		}
		if stored.Hash == fresh.ParentHash {
			return &model.ReorgEvent{
				CommonAncestor: number - 1,
				Depth:          diverged - number + 1,
				OldTipHash:     oldHash,
				NewTipHash:     newHash,
			}, nil
		}

		number--
	}
}

// extend fetches headers up to the tip and verifies parent-hash linkage
// against the stored window as it goes.
func (m *Monitor) extend(ctx context.Context, latest uint64, reorg *model.ReorgEvent) (model.ChainTip, error) {
	start := uint64(1)
	if last, has, err := m.store.LastBlock(ctx); err != nil {
		return model.ChainTip{}, fmt.Errorf("load last block: %w", err)
	} else if has {
		start = last + 1
	} else if latest > m.maxDepth {
		start = latest - m.maxDepth + 1
	}

	tipHash := ""
	for number := start; number <= latest; number++ {
		select {
		case <-ctx.Done():
			return model.ChainTip{}, ctx.Err()
		default:
		}

		header, err := m.source.HeaderRecord(ctx, number)
		if err != nil {
			return model.ChainTip{}, err
		}

		if prev, ok, err := m.store.Get(ctx, number-1); err != nil {
			return model.ChainTip{}, fmt.Errorf("load header %d: %w", number-1, err)
		} else if ok && prev.Hash != header.ParentHash && reorg == nil {
			// The chain moved underneath us mid-cycle; resolve it now.
			reorg, err = m.rewind(ctx, number-1, prev.Hash, header.ParentHash)
			if err != nil {
				return model.ChainTip{}, err
			}
			return m.extend(ctx, latest, reorg)
		}

		if err := m.store.Put(ctx, header); err != nil {
			return model.ChainTip{}, fmt.Errorf("store header: %w", err)
		}
		tipHash = header.Hash
	}

	if tipHash == "" {
		if header, ok, err := m.store.Get(ctx, latest); err == nil && ok {
			tipHash = header.Hash
		}
	}

	return model.ChainTip{Block: latest, Hash: tipHash, Reorg: reorg}, nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
