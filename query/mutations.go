package query

import (
	"math"

	"github.com/hupe1980/seqdb/internal/parallel"
	"github.com/hupe1980/seqdb/storage"
	"github.com/hupe1980/seqdb/symbol"
)

// mutationsGrain is the position-parallel task size.
const mutationsGrain = 300

// MutationProportion is one (reference base, position, variant) entry of the
// mutation-frequency table.
type MutationProportion struct {
	From       byte
	Pos        int // 1-indexed
	To         byte
	Proportion float64
	Count      uint32
}

// mutationCandidates are the variant symbols counted per position, in
// output order.
var mutationCandidates = []symbol.Symbol{symbol.A, symbol.C, symbol.G, symbol.T, symbol.Gap}

// Mutations computes, per position, how many matching sequences carry each
// non-reference base or a gap, and returns the entries whose count is at
// least ⌈total·threshold⌉, i.e. whose proportion reaches the threshold; at
// threshold zero every candidate is returned, including those with count
// zero. Sequences with N at a position are unknown there and
// excluded from that position's denominator. Results are ordered by position,
// then A, C, G, T, gap.
func Mutations(reference string, partitions []*storage.Partition, filters []Filter, threshold float64) []MutationProportion {
	length := len(reference)
	nPerPos := make([]uint32, length)
	countPerPos := make([][]uint32, len(mutationCandidates))
	for i := range countPerPos {
		countPerPos[i] = make([]uint32, length)
	}

	_ = parallel.Ranges(length, mutationsGrain, 0, func(lo, hi int) error {
		for pos := lo; pos < hi; pos++ {
			ref := reference[pos]
			for i, p := range partitions {
				bm := filters[i].Bitmap()
				nPerPos[pos] += uint32(bm.AndCardinality(p.Seq.BM(pos+1, symbol.N)))

				for ci, c := range mutationCandidates {
					if ref == c.Byte() {
						continue
					}
					stored := p.Seq.BM(pos+1, c)
					if p.Seq.FlippedAt(pos+1) != c {
						countPerPos[ci][pos] += uint32(bm.AndCardinality(stored))
					} else {
						// stored holds the complement; |bm ∖ stored| is the
						// match count.
						countPerPos[ci][pos] += uint32(bm.GetCardinality() - bm.AndCardinality(stored))
					}
				}
			}
		}
		return nil
	})

	var matched uint32
	for _, f := range filters {
		matched += uint32(f.Cardinality())
	}

	var res []MutationProportion
	for pos := 0; pos < length; pos++ {
		total := matched - nPerPos[pos]
		if total == 0 {
			continue
		}
		emitAbove := int64(math.Ceil(float64(total)*threshold)) - 1
		ref := reference[pos]
		for ci, c := range mutationCandidates {
			if ref == c.Byte() {
				continue
			}
			count := countPerPos[ci][pos]
			if int64(count) > emitAbove {
				res = append(res, MutationProportion{
					From:       ref,
					Pos:        pos + 1,
					To:         c.Byte(),
					Proportion: float64(count) / float64(total),
					Count:      count,
				})
			}
		}
	}
	return res
}
