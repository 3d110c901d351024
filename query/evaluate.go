package query

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/seqdb/dict"
	"github.com/hupe1980/seqdb/storage"
	"github.com/hupe1980/seqdb/symbol"
)

// Evaluate interprets e against one partition and returns the bitmap of
// matching sequence ids. Primitive nodes borrow index bitmaps where they can;
// combinators always return owned results. Evaluation is correct for raw and
// simplified trees alike, but simplified trees avoid materializing
// complements of flipped position bitmaps.
func Evaluate(e Expr, d *dict.Dictionary, p *storage.Partition) Filter {
	switch e := e.(type) {
	case Empty:
		return Owned(roaring.New())

	case Full:
		return Owned(fullRange(p.SequenceCount))

	case *Neg:
		bm := Evaluate(e.Child, d, p).Mutable()
		bm.Flip(0, uint64(p.SequenceCount))
		return Owned(bm)

	case *And:
		return evaluateAnd(e, d, p)

	case *Or:
		return evaluateOr(e, d, p)

	case *NOf:
		return evaluateNOf(e, d, p)

	case *DateBetween:
		return Owned(evaluateDate(e, p))

	case *NucEq:
		if e.flipped || p.Seq.FlippedAt(e.Pos) != e.Sym {
			return Borrowed(p.Seq.BM(e.Pos, e.Sym))
		}
		// Unsimplified query against a flipped position: materialize.
		bm := p.Seq.BM(e.Pos, e.Sym).Clone()
		bm.Flip(0, uint64(p.SequenceCount))
		return Owned(bm)

	case *NucMaybe:
		return Owned(evaluateMaybe(e, p))

	case *Lineage:
		if int(e.ID) >= len(p.Meta.LineageBitmaps) {
			return Owned(roaring.New())
		}
		if e.IncludeSub {
			return Borrowed(p.Meta.SublineageBitmaps[e.ID])
		}
		return Borrowed(p.Meta.LineageBitmaps[e.ID])

	case *Country:
		if int(e.ID) >= len(p.Meta.CountryBitmaps) {
			return Owned(roaring.New())
		}
		return Borrowed(p.Meta.CountryBitmaps[e.ID])

	case *Region:
		if int(e.ID) >= len(p.Meta.RegionBitmaps) {
			return Owned(roaring.New())
		}
		return Borrowed(p.Meta.RegionBitmaps[e.ID])

	case *StrEq:
		return Owned(evaluateStrEq(e, d, p))

	default:
		panic(fmt.Sprintf("query: cannot evaluate expression %T", e))
	}
}

func fullRange(count uint32) *roaring.Bitmap {
	bm := roaring.New()
	bm.AddRange(0, uint64(count))
	return bm
}

// evaluateAnd intersects ascending by cardinality and subtracts the negated
// children descending, so the accumulator shrinks as fast as possible.
func evaluateAnd(e *And, d *dict.Dictionary, p *storage.Partition) Filter {
	positives := make([]Filter, 0, len(e.Children))
	for _, c := range e.Children {
		positives = append(positives, Evaluate(c, d, p))
	}
	negatives := make([]Filter, 0, len(e.Negated))
	for _, c := range e.Negated {
		negatives = append(negatives, Evaluate(c, d, p))
	}

	sort.Slice(positives, func(i, j int) bool {
		return positives[i].Cardinality() < positives[j].Cardinality()
	})
	sort.Slice(negatives, func(i, j int) bool {
		return negatives[i].Cardinality() > negatives[j].Cardinality()
	})

	var acc *roaring.Bitmap
	if len(positives) == 0 {
		acc = fullRange(p.SequenceCount)
	} else {
		acc = positives[0].Mutable()
		for _, f := range positives[1:] {
			if acc.IsEmpty() {
				return Owned(acc)
			}
			acc.And(f.Bitmap())
		}
	}
	for _, f := range negatives {
		if acc.IsEmpty() {
			break
		}
		acc.AndNot(f.Bitmap())
	}
	return Owned(acc)
}

// evaluateOr unions descending by cardinality.
func evaluateOr(e *Or, d *dict.Dictionary, p *storage.Partition) Filter {
	children := make([]Filter, 0, len(e.Children))
	for _, c := range e.Children {
		children = append(children, Evaluate(c, d, p))
	}
	sort.Slice(children, func(i, j int) bool {
		return children[i].Cardinality() > children[j].Cardinality()
	})

	if len(children) == 0 {
		return Owned(roaring.New())
	}
	acc := children[0].Mutable()
	for _, f := range children[1:] {
		acc.Or(f.Bitmap())
	}
	return Owned(acc)
}

func evaluateDate(e *DateBetween, p *storage.Partition) *roaring.Bitmap {
	sids := make([]uint32, 0, 256)
	for sid, date := range p.Meta.Dates {
		if !e.OpenFrom && date < e.From {
			continue
		}
		if !e.OpenTo && date > e.To {
			continue
		}
		sids = append(sids, uint32(sid))
	}
	bm := roaring.New()
	bm.AddMany(sids)
	return bm
}

// evaluateMaybe computes the approximate-match set for an ambiguity code.
// With f the flipped symbol of the position and U the union of the stored
// bitmaps of the other canonical symbols in the expansion, the true set when
// f is part of the expansion is ¬stored[f] ∪ U = ¬(stored[f] ∖ U). The
// negated node returns stored[f] ∖ U and leaves the final complement to the
// Neg that simplification wrapped around it.
func evaluateMaybe(e *NucMaybe, p *storage.Partition) *roaring.Bitmap {
	f := p.Seq.FlippedAt(e.Pos)
	if f == symbol.None || !e.Sym.Represents(f) {
		return p.Seq.BMA(e.Pos, e.Sym)
	}

	others := make([]*roaring.Bitmap, 0, 4)
	for _, c := range e.Sym.Canonical() {
		if c != f {
			others = append(others, p.Seq.BM(e.Pos, c))
		}
	}
	res := p.Seq.BM(e.Pos, f).Clone()
	if len(others) > 0 {
		res.AndNot(roaring.FastOr(others...))
	}
	if !e.negated {
		res.Flip(0, uint64(p.SequenceCount))
	}
	return res
}

func evaluateStrEq(e *StrEq, d *dict.Dictionary, p *storage.Partition) *roaring.Bitmap {
	bm := roaring.New()
	col := d.ColumnIndex(e.Column)
	if col < 0 || col >= len(p.Meta.Extras) {
		return bm
	}
	want := d.GeneralID(e.Value)
	if want == dict.NotFound {
		return bm
	}

	sids := make([]uint32, 0, 256)
	for sid, v := range p.Meta.Extras[col] {
		if v == want {
			sids = append(sids, uint32(sid))
		}
	}
	bm.AddMany(sids)
	return bm
}
