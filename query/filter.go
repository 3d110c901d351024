// Package query implements the boolean filter expressions of the engine:
// their partition-parameterized simplification, their evaluation to bitmaps
// of matching sequence ids, the JSON wire format, and the count and
// mutation-frequency actions folding per-partition results.
package query

import "github.com/RoaringBitmap/roaring/v2"

// Filter is the result of evaluating an expression against one partition.
// It either borrows a bitmap owned by the partition's index, which must never
// be mutated and must not outlive the partition, or owns a freshly allocated
// bitmap the caller may consume.
type Filter struct {
	bm    *roaring.Bitmap
	owned bool
}

// Borrowed wraps an index-owned bitmap.
func Borrowed(bm *roaring.Bitmap) Filter { return Filter{bm: bm} }

// Owned wraps a bitmap the filter may hand off for mutation.
func Owned(bm *roaring.Bitmap) Filter { return Filter{bm: bm, owned: true} }

// Bitmap returns a read-only view of the result set.
func (f Filter) Bitmap() *roaring.Bitmap { return f.bm }

// IsOwned reports whether the bitmap is owned by the filter.
func (f Filter) IsOwned() bool { return f.owned }

// Cardinality returns the number of matching sequence ids.
func (f Filter) Cardinality() uint64 { return f.bm.GetCardinality() }

// Mutable returns a bitmap safe to mutate: the owned bitmap itself, or a
// clone of a borrowed one. The filter must not be used afterwards.
func (f Filter) Mutable() *roaring.Bitmap {
	if f.owned {
		return f.bm
	}
	return f.bm.Clone()
}
