package scan

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"chainscan/internal/model"
)

type chunkResult struct {
	index   int
	records []model.LogRecord
}

// fetchOrdered fans chunk fetches out over a bounded worker pool and
// hands completed chunks to deliver strictly in their original order.
// Delivery of chunk i waits for every chunk j < i, so the caller may
// advance its checkpoint on each delivery. The first fetch or delivery
// error cancels the remaining work.
func fetchOrdered(
	ctx context.Context,
	ranges []BlockRange,
	workers int,
	fetch func(context.Context, BlockRange) ([]model.LogRecord, error),
	deliver func(BlockRange, []model.LogRecord) error,
) error {
	if len(ranges) == 0 {
		return nil
	}
	if workers > len(ranges) {
		workers = len(ranges)
	}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int)
	results := make(chan chunkResult, workers)

	g.Go(func() error {
		defer close(jobs)
		for i := range ranges {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	var workersDone sync.WaitGroup
	workersDone.Add(workers)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			defer workersDone.Done()
			for i := range jobs {
				records, err := fetch(ctx, ranges[i])
				if err != nil {
					return err
				}
				select {
				case results <- chunkResult{index: i, records: records}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		workersDone.Wait()
		close(results)
	}()

	g.Go(func() error {
		pending := make(map[int][]model.LogRecord, workers)
		next := 0
		for result := range results {
			pending[result.index] = result.records
			for {
				records, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if err := deliver(ranges[next], records); err != nil {
					return err
				}
				next++
			}
		}
		// Drained without covering every chunk: a worker failed upstream
		// and its error is already in the group.
		return ctx.Err()
	})

	return g.Wait()
}
