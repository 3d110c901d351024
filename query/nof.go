package query

import (
	"container/heap"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/seqdb/dict"
	"github.com/hupe1980/seqdb/storage"
)

func evaluateNOf(e *NOf, d *dict.Dictionary, p *storage.Partition) Filter {
	children := make([]Filter, 0, len(e.Children))
	for _, c := range e.Children {
		children = append(children, Evaluate(c, d, p))
	}

	impl := e.Impl
	if e.N <= 0 {
		// Only the naive strategy visits sids that match no child.
		impl = NOfNaive
	}

	var bm *roaring.Bitmap
	switch impl {
	case NOfMerge:
		bm = nofMerge(children, e.N, e.Exactly)
	case NOfHeap:
		bm = nofHeap(children, e.N, e.Exactly)
	default:
		bm = nofNaive(children, e.N, e.Exactly, p.SequenceCount)
	}
	return Owned(bm)
}

func selectCount(count, n int, exactly bool) bool {
	if exactly {
		return count == n
	}
	return count >= n
}

// nofNaive keeps one counter per sid of the partition.
func nofNaive(children []Filter, n int, exactly bool, count uint32) *roaring.Bitmap {
	counts := make([]uint16, count)
	for _, f := range children {
		it := f.Bitmap().Iterator()
		for it.HasNext() {
			sid := it.Next()
			if counts[sid] < ^uint16(0) {
				counts[sid]++
			}
		}
	}

	sids := make([]uint32, 0, 256)
	for sid, c := range counts {
		if selectCount(int(c), n, exactly) {
			sids = append(sids, uint32(sid))
		}
	}
	res := roaring.New()
	res.AddMany(sids)
	return res
}

// nofMerge unions the k-n+1 smallest children: any sid matching at least n
// of k children must occur in one of them. Candidates are then counted
// against every child.
func nofMerge(children []Filter, n int, exactly bool) *roaring.Bitmap {
	k := len(children)
	res := roaring.New()
	if n > k {
		return res
	}

	sorted := make([]Filter, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cardinality() < sorted[j].Cardinality()
	})

	seeds := make([]*roaring.Bitmap, 0, k-n+1)
	for _, f := range sorted[:k-n+1] {
		seeds = append(seeds, f.Bitmap())
	}
	candidates := roaring.FastOr(seeds...)

	// With exactly set, sids matching zero children are only selectable for
	// n == 0, which evaluateNOf routes to the naive strategy.
	sids := make([]uint32, 0, 256)
	it := candidates.Iterator()
	for it.HasNext() {
		sid := it.Next()
		matches := 0
		for _, f := range children {
			if f.Bitmap().Contains(sid) {
				matches++
			}
		}
		if selectCount(matches, n, exactly) {
			sids = append(sids, sid)
		}
	}
	res.AddMany(sids)
	return res
}

type nofCursor struct {
	it  roaring.IntPeekable
	sid uint32
}

type nofQueue []*nofCursor

func (q nofQueue) Len() int           { return len(q) }
func (q nofQueue) Less(i, j int) bool { return q[i].sid < q[j].sid }
func (q nofQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nofQueue) Push(x any)        { *q = append(*q, x.(*nofCursor)) }
func (q *nofQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// nofHeap streams all child iterators through a min-heap keyed by sid and
// counts equal heads.
func nofHeap(children []Filter, n int, exactly bool) *roaring.Bitmap {
	q := make(nofQueue, 0, len(children))
	for _, f := range children {
		it := f.Bitmap().Iterator()
		if it.HasNext() {
			q = append(q, &nofCursor{it: it, sid: it.Next()})
		}
	}
	heap.Init(&q)

	res := roaring.New()
	sids := make([]uint32, 0, 256)
	for q.Len() > 0 {
		sid := q[0].sid
		matches := 0
		for q.Len() > 0 && q[0].sid == sid {
			matches++
			cur := q[0]
			if cur.it.HasNext() {
				cur.sid = cur.it.Next()
				heap.Fix(&q, 0)
			} else {
				heap.Pop(&q)
			}
		}
		if selectCount(matches, n, exactly) {
			sids = append(sids, sid)
		}
	}
	res.AddMany(sids)
	return res
}
