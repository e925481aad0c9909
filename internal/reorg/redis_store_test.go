package reorg

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"chainscan/internal/model"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "test",
		TTL:       time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	header := model.BlockHeader{
		Number:     100,
		Hash:       "0xaa",
		ParentHash: "0x99",
		Timestamp:  1700000000,
	}
	require.NoError(t, store.Put(ctx, header))

	got, ok, err := store.Get(ctx, 100)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, header, got)

	_, ok, err = store.Get(ctx, 101)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStoreLastBlock(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	_, has, err := store.LastBlock(ctx)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, store.Put(ctx, model.BlockHeader{Number: 10, Hash: "0xa"}))
	require.NoError(t, store.Put(ctx, model.BlockHeader{Number: 12, Hash: "0xc"}))
	require.NoError(t, store.Put(ctx, model.BlockHeader{Number: 11, Hash: "0xb"}))

	last, has, err := store.LastBlock(ctx)
	require.NoError(t, err)
	require.True(t, has)
	require.Equal(t, uint64(12), last)
}

func TestRedisStoreDeleteMovesLastBlock(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	for n := uint64(50); n <= 53; n++ {
		require.NoError(t, store.Put(ctx, model.BlockHeader{Number: n, Hash: "0xh"}))
	}

	// Deleting the tip walks last down to the next stored header.
	require.NoError(t, store.Delete(ctx, 53))
	last, has, err := store.LastBlock(ctx)
	require.NoError(t, err)
	require.True(t, has)
	require.Equal(t, uint64(52), last)

	// Deleting mid-window leaves last alone.
	require.NoError(t, store.Delete(ctx, 51))
	last, _, err = store.LastBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(52), last)

	_, ok, err := store.Get(ctx, 51)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisStoreDeleteLastHeaderClearsMarker(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	require.NoError(t, store.Put(ctx, model.BlockHeader{Number: 7, Hash: "0x7"}))
	require.NoError(t, store.Delete(ctx, 7))

	_, has, err := store.LastBlock(ctx)
	require.NoError(t, err)
	require.False(t, has)
}

func TestRedisStorePrune(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	for n := uint64(1); n <= 10; n++ {
		require.NoError(t, store.Put(ctx, model.BlockHeader{Number: n, Hash: "0xh"}))
	}
	require.NoError(t, store.Prune(ctx, 5))

	for n := uint64(1); n < 5; n++ {
		_, ok, err := store.Get(ctx, n)
		require.NoError(t, err)
		require.False(t, ok, "block %d should be pruned", n)
	}
	for n := uint64(5); n <= 10; n++ {
		_, ok, err := store.Get(ctx, n)
		require.NoError(t, err)
		require.True(t, ok, "block %d should survive", n)
	}
}

func TestRedisStoreWorksWithMonitor(t *testing.T) {
	ctx := context.Background()
	store := newTestRedisStore(t)

	chain := newFakeChain()
	chain.mine(20, "a")
	monitor := NewMonitor(chain, store, 10, nil)

	tip, err := monitor.UpdateChain(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(20), tip.Block)
	require.Nil(t, tip.Reorg)

	chain.reorgFrom(18, 22, "b")
	tip, err = monitor.UpdateChain(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(22), tip.Block)
	require.NotNil(t, tip.Reorg)
	require.Equal(t, uint64(17), tip.Reorg.CommonAncestor)
}
