// Package storage holds the read-optimized column stores of one database
// partition: the per-position bitmap fan over the genome and the dense
// per-sequence metadata vectors with their precomputed category bitmaps.
package storage

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/seqdb/internal/parallel"
	"github.com/hupe1980/seqdb/symbol"
)

// ErrLengthMismatch is returned when an ingested genome does not have the
// store's fixed length.
var ErrLengthMismatch = errors.New("storage: genome length mismatch")

// finalizeGrain bounds the per-task position count during finalize.
const finalizeGrain = 300

// Position indexes one genome locus: for every symbol, the set of sequence
// ids carrying that symbol there.
type Position struct {
	Bitmaps [symbol.Count]*roaring.Bitmap

	// Flipped names the one symbol whose bitmap stores the complement of its
	// membership set, or symbol.None. Only canonical bases are ever flipped.
	Flipped symbol.Symbol
}

// SequenceStore is the columnar index over all genomes of a partition.
// It is append-only during build and immutable after Finalize.
type SequenceStore struct {
	length    int
	positions []Position
	count     uint32
}

// NewSequenceStore creates an empty store for genomes of the given length.
func NewSequenceStore(length int) *SequenceStore {
	s := &SequenceStore{
		length:    length,
		positions: make([]Position, length),
	}
	for p := range s.positions {
		s.positions[p].Flipped = symbol.None
		for i := range s.positions[p].Bitmaps {
			s.positions[p].Bitmaps[i] = roaring.New()
		}
	}
	return s
}

// Length returns the fixed genome length.
func (s *SequenceStore) Length() int { return s.length }

// Count returns the number of ingested sequences.
func (s *SequenceStore) Count() uint32 { return s.count }

// Positions exposes the per-locus index, 0-indexed.
func (s *SequenceStore) Positions() []Position { return s.positions }

// BM returns the stored bitmap for the 1-indexed position pos and symbol sym.
// The bitmap is owned by the store and, if sym is the flipped symbol at pos,
// holds the complement of the membership set; callers consult Flipped and
// fold the complement into their surrounding algebra.
func (s *SequenceStore) BM(pos int, sym symbol.Symbol) *roaring.Bitmap {
	return s.positions[pos-1].Bitmaps[sym]
}

// FlippedAt returns the flipped symbol at the 1-indexed position pos,
// or symbol.None.
func (s *SequenceStore) FlippedAt(pos int) symbol.Symbol {
	return s.positions[pos-1].Flipped
}

// BMA returns a new bitmap holding the union of the stored bitmaps for every
// canonical symbol r can represent ("approximate match"). Flipping is not
// resolved here; callers compose complements at a higher level.
func (s *SequenceStore) BMA(pos int, r symbol.Symbol) *roaring.Bitmap {
	set := r.Canonical()
	bms := make([]*roaring.Bitmap, 0, len(set))
	for _, c := range set {
		bms = append(bms, s.BM(pos, c))
	}
	return roaring.FastOr(bms...)
}

// BMANeg returns the complement of BMA(pos, r) within [0, Count()).
func (s *SequenceStore) BMANeg(pos int, r symbol.Symbol) *roaring.Bitmap {
	bm := s.BMA(pos, r)
	bm.Flip(0, uint64(s.count))
	return bm
}

// Ingest appends a batch of genomes, assigning them the next len(genomes)
// sequence ids. Flipping invariants are only reestablished by Finalize.
func (s *SequenceStore) Ingest(genomes []string) error {
	for _, g := range genomes {
		if len(g) != s.length {
			return fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(g), s.length)
		}
	}

	base := s.count
	err := parallel.Ranges(s.length, finalizeGrain, 0, func(lo, hi int) error {
		var perSymbol [symbol.Count][]uint32
		for p := lo; p < hi; p++ {
			for i := range perSymbol {
				perSymbol[i] = perSymbol[i][:0]
			}
			for i, g := range genomes {
				sym, ok := symbol.FromByte(g[p])
				if !ok {
					return fmt.Errorf("storage: unknown symbol %q at position %d", g[p], p+1)
				}
				perSymbol[sym] = append(perSymbol[sym], base+uint32(i))
			}
			for sym, sids := range perSymbol {
				if len(sids) > 0 {
					s.positions[p].Bitmaps[sym].AddMany(sids)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.count += uint32(len(genomes))
	return nil
}

// Finalize picks, for every position, the canonical symbol with the highest
// cardinality and stores its complement instead of its membership set. Most
// positions are dominated by the reference base, so the complement is small.
// Ties break towards the earlier symbol in enumeration order. A non-canonical
// majority leaves the position unflipped.
func (s *SequenceStore) Finalize() {
	count := uint64(s.count)
	_ = parallel.Ranges(s.length, finalizeGrain, 0, func(lo, hi int) error {
		for p := lo; p < hi; p++ {
			pos := &s.positions[p]
			maxSym := symbol.None
			maxCard := uint64(0)
			for sym := 0; sym < symbol.Count; sym++ {
				if card := pos.Bitmaps[sym].GetCardinality(); card > maxCard {
					maxSym = symbol.Symbol(sym)
					maxCard = card
				}
			}
			if maxSym.IsCanonical() {
				pos.Flipped = maxSym
				pos.Bitmaps[maxSym].Flip(0, count)
			}
		}
		return nil
	})
}

// RunOptimize converts suitable containers to run-length encoding.
func (s *SequenceStore) RunOptimize() {
	_ = parallel.Ranges(s.length, finalizeGrain, 0, func(lo, hi int) error {
		for p := lo; p < hi; p++ {
			for _, bm := range s.positions[p].Bitmaps {
				bm.RunOptimize()
			}
		}
		return nil
	})
}

// SizeInBytes returns the summed serialized size of all position bitmaps.
func (s *SequenceStore) SizeInBytes() uint64 {
	var total uint64
	for p := range s.positions {
		for _, bm := range s.positions[p].Bitmaps {
			total += bm.GetSerializedSizeInBytes()
		}
	}
	return total
}
