package scan

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Chunking must tile [from, to] exactly: contiguous, non-overlapping,
// every chunk within the chunk size, first chunk starting at from and
// last chunk ending at to.
func TestSplitRangeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("chunks tile the range exactly", prop.ForAll(
		func(from uint64, span uint64, chunkSize uint64) bool {
			to := from + span
			ranges, err := SplitRange(from, to, chunkSize)
			if err != nil {
				return false
			}
			if len(ranges) == 0 {
				return false
			}
			if ranges[0].From != from || ranges[len(ranges)-1].To != to {
				return false
			}
			for i, r := range ranges {
				if r.To < r.From {
					return false
				}
				if r.To-r.From+1 > chunkSize {
					return false
				}
				if i > 0 && r.From != ranges[i-1].To+1 {
					return false
				}
			}
			return true
		},
		gen.UInt64Range(0, 1_000_000),
		gen.UInt64Range(0, 100_000),
		gen.UInt64Range(1, 10_000),
	))

	properties.TestingRun(t)
}
