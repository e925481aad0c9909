package reorg

import (
	"context"
	"fmt"
	"testing"

	"chainscan/internal/model"
)

// fakeChain is a scripted canonical chain the monitor polls.
type fakeChain struct {
	headers map[uint64]model.BlockHeader
	latest  uint64
	fetches int
}

func newFakeChain() *fakeChain {
	return &fakeChain{headers: make(map[uint64]model.BlockHeader)}
}

func (c *fakeChain) mine(to uint64, fork string) {
	for n := c.latest + 1; n <= to; n++ {
		c.setHeader(n, fork)
	}
	c.latest = to
}

// reorgFrom rewrites blocks from a height upwards onto a new fork.
func (c *fakeChain) reorgFrom(from uint64, to uint64, fork string) {
	for n := from; n <= to; n++ {
		c.setHeader(n, fork)
	}
	c.latest = to
}

func (c *fakeChain) setHeader(n uint64, fork string) {
	parent := ""
	if prev, ok := c.headers[n-1]; ok {
		parent = prev.Hash
	}
	c.headers[n] = model.BlockHeader{
		Number:     n,
		Hash:       fmt.Sprintf("0x%s-%d", fork, n),
		ParentHash: parent,
		Timestamp:  1700000000 + n,
	}
}

func (c *fakeChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.latest, nil
}

func (c *fakeChain) HeaderRecord(ctx context.Context, number uint64) (model.BlockHeader, error) {
	c.fetches++
	header, ok := c.headers[number]
	if !ok {
		return model.BlockHeader{}, fmt.Errorf("no header %d", number)
	}
	return header, nil
}

func TestMonitorColdStartBackfillsWindow(t *testing.T) {
	chain := newFakeChain()
	chain.mine(100, "a")

	store := NewMemoryStore()
	monitor := NewMonitor(chain, store, 10, nil)

	tip, err := monitor.UpdateChain(context.Background())
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if tip.Block != 100 || tip.Reorg != nil {
		t.Fatalf("unexpected tip: %+v", tip)
	}
	if tip.Hash != "0xa-100" {
		t.Fatalf("tip hash mismatch: %s", tip.Hash)
	}

	// Window is the last maxDepth blocks only.
	if _, ok, _ := store.Get(context.Background(), 91); !ok {
		t.Fatalf("expected block 91 in window")
	}
	if _, ok, _ := store.Get(context.Background(), 90); ok {
		t.Fatalf("block 90 should be outside the window")
	}
}

func TestMonitorExtendsWithoutReorg(t *testing.T) {
	chain := newFakeChain()
	chain.mine(50, "a")

	store := NewMemoryStore()
	monitor := NewMonitor(chain, store, 20, nil)

	if _, err := monitor.UpdateChain(context.Background()); err != nil {
		t.Fatalf("cold start failed: %v", err)
	}

	chain.mine(55, "a")
	tip, err := monitor.UpdateChain(context.Background())
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if tip.Block != 55 || tip.Reorg != nil {
		t.Fatalf("unexpected tip: %+v", tip)
	}
}

func TestMonitorDetectsReorg(t *testing.T) {
	chain := newFakeChain()
	chain.mine(50, "a")

	store := NewMemoryStore()
	monitor := NewMonitor(chain, store, 20, nil)

	if _, err := monitor.UpdateChain(context.Background()); err != nil {
		t.Fatalf("cold start failed: %v", err)
	}

	// Blocks 48..52 move to fork b; fork point is block 47.
	chain.reorgFrom(48, 52, "b")

	tip, err := monitor.UpdateChain(context.Background())
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if tip.Reorg == nil {
		t.Fatalf("expected reorg event")
	}
	if tip.Reorg.CommonAncestor != 47 {
		t.Fatalf("common ancestor mismatch: %d", tip.Reorg.CommonAncestor)
	}
	if tip.Reorg.Depth != 3 {
		t.Fatalf("depth mismatch: %d", tip.Reorg.Depth)
	}
	if tip.Reorg.DepthExceeded {
		t.Fatalf("fork point is inside the window")
	}
	if tip.Block != 52 || tip.Hash != "0xb-52" {
		t.Fatalf("tip mismatch: %+v", tip)
	}

	// The window now follows the new fork.
	header, ok, _ := store.Get(context.Background(), 50)
	if !ok || header.Hash != "0xb-50" {
		t.Fatalf("window not rewritten: %+v", header)
	}
}

func TestMonitorReorgToShorterChain(t *testing.T) {
	chain := newFakeChain()
	chain.mine(50, "a")

	store := NewMemoryStore()
	monitor := NewMonitor(chain, store, 20, nil)

	if _, err := monitor.UpdateChain(context.Background()); err != nil {
		t.Fatalf("cold start failed: %v", err)
	}

	// The node switches to a fork whose tip is below our last block.
	chain.reorgFrom(49, 49, "b")
	chain.latest = 49
	delete(chain.headers, 50)

	tip, err := monitor.UpdateChain(context.Background())
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if tip.Reorg == nil {
		t.Fatalf("expected reorg event")
	}
	if tip.Reorg.CommonAncestor != 48 {
		t.Fatalf("common ancestor mismatch: %d", tip.Reorg.CommonAncestor)
	}
	if tip.Block != 49 || tip.Hash != "0xb-49" {
		t.Fatalf("tip mismatch: %+v", tip)
	}
}

func TestMonitorReportsDepthExceeded(t *testing.T) {
	chain := newFakeChain()
	chain.mine(100, "a")

	store := NewMemoryStore()
	monitor := NewMonitor(chain, store, 5, nil)

	if _, err := monitor.UpdateChain(context.Background()); err != nil {
		t.Fatalf("cold start failed: %v", err)
	}

	// Rewrite far below the 5-block window.
	chain.reorgFrom(80, 101, "b")

	tip, err := monitor.UpdateChain(context.Background())
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if tip.Reorg == nil || !tip.Reorg.DepthExceeded {
		t.Fatalf("expected depth-exceeded reorg: %+v", tip.Reorg)
	}
}

func TestMonitorPrunesWindow(t *testing.T) {
	chain := newFakeChain()
	chain.mine(30, "a")

	store := NewMemoryStore()
	monitor := NewMonitor(chain, store, 10, nil)

	if _, err := monitor.UpdateChain(context.Background()); err != nil {
		t.Fatalf("cold start failed: %v", err)
	}
	chain.mine(40, "a")
	if _, err := monitor.UpdateChain(context.Background()); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if _, ok, _ := store.Get(context.Background(), 29); ok {
		t.Fatalf("block 29 should have been pruned")
	}
	if _, ok, _ := store.Get(context.Background(), 31); !ok {
		t.Fatalf("block 31 should remain in the window")
	}
}

func TestChainTipSafe(t *testing.T) {
	tip := model.ChainTip{Block: 100}
	if tip.Safe(5) != 95 {
		t.Fatalf("safe block mismatch: %d", tip.Safe(5))
	}
	if (model.ChainTip{Block: 3}).Safe(5) != 0 {
		t.Fatalf("safe block should floor at zero")
	}
}
