package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/seqdb/dict"
	"github.com/hupe1980/seqdb/symbol"
)

// Two sequences ACGT and ACGA: position 4 separates them, and after finalize
// the tied canonical symbols break towards A, flipping its bitmap.
func TestNucEqWithFlippedPosition(t *testing.T) {
	d, p := buildPartition(t, []string{"ACGT", "ACGA"}, nil)

	require.Equal(t, symbol.A, p.Seq.FlippedAt(4), "tie breaks to the earlier symbol")

	assert.Equal(t, []uint32{1}, evalSet(t, &NucEq{Pos: 4, Sym: symbol.A}, d, p))
	assert.Equal(t, []uint32{0}, evalSet(t, &NucEq{Pos: 4, Sym: symbol.T}, d, p))

	// the unsimplified tree agrees
	assert.Equal(t, []uint32{1}, evalRawSet(t, &NucEq{Pos: 4, Sym: symbol.A}, d, p))
	assert.Equal(t, []uint32{0}, evalRawSet(t, &NucEq{Pos: 4, Sym: symbol.T}, d, p))
}

func TestNucMaybe(t *testing.T) {
	// position 1 holds A, G, T, R(=A|G), N
	d, p := buildPartition(t, []string{"A", "G", "T", "R", "N"}, nil)

	// query R matches stored A and G
	assert.Equal(t, []uint32{0, 1}, evalSet(t, &NucMaybe{Pos: 1, Sym: symbol.R}, d, p))
	// query N matches any base
	assert.Equal(t, []uint32{0, 1, 2}, evalSet(t, &NucMaybe{Pos: 1, Sym: symbol.N}, d, p))
	// unsimplified trees agree even though position 1 may be flipped
	assert.Equal(t, evalRawSet(t, &NucMaybe{Pos: 1, Sym: symbol.R}, d, p),
		evalSet(t, &NucMaybe{Pos: 1, Sym: symbol.R}, d, p))
}

func TestNucMaybeFlippedMember(t *testing.T) {
	// A dominates position 1, so it is flipped; R = A|G includes it.
	d, p := buildPartition(t, []string{"A", "A", "A", "G", "C"}, nil)
	require.Equal(t, symbol.A, p.Seq.FlippedAt(1))

	assert.Equal(t, []uint32{0, 1, 2, 3}, evalSet(t, &NucMaybe{Pos: 1, Sym: symbol.R}, d, p))
	assert.Equal(t, []uint32{0, 1, 2, 3}, evalRawSet(t, &NucMaybe{Pos: 1, Sym: symbol.R}, d, p))
}

func TestAndOrNeg(t *testing.T) {
	d, p := buildPartition(t, []string{"AA", "AC", "CC"}, nil)

	and := &And{Children: []Expr{
		&NucEq{Pos: 1, Sym: symbol.A},
		&NucEq{Pos: 2, Sym: symbol.C},
	}}
	assert.Equal(t, []uint32{1}, evalSet(t, and, d, p))

	or := &Or{Children: []Expr{
		&NucEq{Pos: 1, Sym: symbol.C},
		&NucEq{Pos: 2, Sym: symbol.A},
	}}
	assert.Equal(t, []uint32{0, 2}, evalSet(t, or, d, p))

	neg := &Neg{Child: and}
	assert.Equal(t, []uint32{0, 2}, evalSet(t, neg, d, p))

	andNot := &And{Children: []Expr{
		&NucEq{Pos: 1, Sym: symbol.A},
		&Neg{Child: &NucEq{Pos: 2, Sym: symbol.C}},
	}}
	assert.Equal(t, []uint32{0}, evalSet(t, andNot, d, p))
}

func TestDateBetween(t *testing.T) {
	d, p := buildPartition(t, []string{"A", "A", "A"}, []seqMeta{
		{date: "2020-12-31"},
		{date: "2021-06-01"},
		{date: "2022-01-01"},
	})

	between := &DateBetween{From: date(t, "2021-01-01"), To: date(t, "2021-12-31")}
	assert.Equal(t, []uint32{1}, evalSet(t, between, d, p))

	after := &DateBetween{From: date(t, "2021-01-01"), OpenTo: true}
	assert.Equal(t, []uint32{1, 2}, evalSet(t, after, d, p))

	before := &DateBetween{To: date(t, "2021-12-31"), OpenFrom: true}
	assert.Equal(t, []uint32{0, 1}, evalSet(t, before, d, p))

	all := &DateBetween{OpenFrom: true, OpenTo: true}
	assert.Equal(t, []uint32{0, 1, 2}, evalSet(t, all, d, p))
}

func TestLineageFilters(t *testing.T) {
	d, p := buildPartition(t, []string{"A", "A", "A"}, []seqMeta{
		{lineage: "B"},
		{lineage: "B.1"},
		{lineage: "B.1.17"},
	})

	b := d.LineageID("B")
	b1 := d.LineageID("B.1")

	assert.Equal(t, []uint32{0}, evalSet(t, &Lineage{ID: b}, d, p))
	assert.Equal(t, []uint32{0, 1, 2}, evalSet(t, &Lineage{ID: b, IncludeSub: true}, d, p))
	assert.Equal(t, []uint32{1, 2}, evalSet(t, &Lineage{ID: b1, IncludeSub: true}, d, p))
	assert.Equal(t, []uint32{}, evalSet(t, &Lineage{ID: dict.NotFound}, d, p))
}

func TestGeoFilters(t *testing.T) {
	d, p := buildPartition(t, []string{"A", "A"}, []seqMeta{
		{country: "Germany", region: "Europe", division: "Bavaria"},
		{country: "Brazil", region: "South America", division: "Bahia"},
	})

	assert.Equal(t, []uint32{0}, evalSet(t, &Country{ID: d.CountryID("Germany")}, d, p))
	assert.Equal(t, []uint32{1}, evalSet(t, &Region{ID: d.RegionID("South America")}, d, p))
	assert.Equal(t, []uint32{1}, evalSet(t, &StrEq{Column: "division", Value: "Bahia"}, d, p))
	assert.Equal(t, []uint32{}, evalSet(t, &StrEq{Column: "division", Value: "Hessen"}, d, p))
	assert.Equal(t, []uint32{}, evalSet(t, &StrEq{Column: "lab", Value: "Bahia"}, d, p))
}

func TestEmptyFull(t *testing.T) {
	d, p := buildPartition(t, []string{"A", "A"}, nil)

	assert.Equal(t, []uint32{}, evalSet(t, Empty{}, d, p))
	assert.Equal(t, []uint32{0, 1}, evalSet(t, Full{}, d, p))

	// AND with no positive children starts from the full range
	onlyNeg := &And{Negated: []Expr{Empty{}}}
	assert.Equal(t, []uint32{0, 1}, evalRawSet(t, onlyNeg, d, p))
}

// Simplification must not change any query's result set.
func TestSimplifyIsSemanticPreserving(t *testing.T) {
	d, p := buildPartition(t, []string{"ACGT", "ACGA", "ANGT", "TCGA"}, []seqMeta{
		{lineage: "B", date: "2021-01-01"},
		{lineage: "B.1", date: "2021-02-01"},
		{lineage: "B.1.17", date: "2021-03-01"},
		{lineage: "A.2", date: "2021-04-01"},
	})

	exprs := []Expr{
		&NucEq{Pos: 1, Sym: symbol.A},
		&NucEq{Pos: 4, Sym: symbol.T},
		&NucMaybe{Pos: 1, Sym: symbol.W},
		&Neg{Child: &Neg{Child: &NucEq{Pos: 2, Sym: symbol.C}}},
		&And{Children: []Expr{
			&NucEq{Pos: 1, Sym: symbol.A},
			&Neg{Child: &NucEq{Pos: 4, Sym: symbol.A}},
			&Lineage{ID: d.LineageID("B"), IncludeSub: true},
		}},
		&Or{Children: []Expr{
			Empty{},
			&NucEq{Pos: 1, Sym: symbol.T},
			&And{Children: []Expr{&NucEq{Pos: 2, Sym: symbol.C}, Full{}}},
		}},
		&NOf{N: 2, Children: []Expr{
			&NucEq{Pos: 1, Sym: symbol.A},
			&NucEq{Pos: 2, Sym: symbol.C},
			&DateBetween{From: date(t, "2021-02-01"), To: date(t, "2021-04-01")},
		}},
	}

	for i, e := range exprs {
		raw := evalRawSet(t, e, d, p)
		simplified := evalSet(t, e, d, p)
		assert.Equal(t, raw, simplified, "expression %d: %s", i, e)
	}
}

// Evaluating the same queries against an unfinalized copy (no flipped
// bitmaps, no precomputed metadata) must match the finalized results.
func TestFlipNeutrality(t *testing.T) {
	genomes := []string{"ACGT", "ACGA", "ANGT", "TCGA", "ACGT"}

	_, raw := buildRaw(t, genomes, nil)
	d, fin := buildPartition(t, genomes, nil)

	exprs := []Expr{
		&NucEq{Pos: 1, Sym: symbol.A},
		&NucEq{Pos: 3, Sym: symbol.G},
		&NucMaybe{Pos: 1, Sym: symbol.R},
		&NucMaybe{Pos: 2, Sym: symbol.N},
		&And{Children: []Expr{
			&NucEq{Pos: 1, Sym: symbol.A},
			&Neg{Child: &NucEq{Pos: 4, Sym: symbol.A}},
		}},
	}

	for i, e := range exprs {
		unflipped := evalSet(t, e, d, raw)
		flipped := evalSet(t, e, d, fin)
		assert.Equal(t, unflipped, flipped, "expression %d: %s", i, e)
	}
}
