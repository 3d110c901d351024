package query

import (
	"sync/atomic"

	"github.com/hupe1980/seqdb/internal/parallel"
)

// Count sums the matching sequences across all partition filters.
func Count(filters []Filter) uint64 {
	var total atomic.Uint64
	_ = parallel.ForEach(len(filters), 0, func(i int) error {
		total.Add(filters[i].Cardinality())
		return nil
	})
	return total.Load()
}
