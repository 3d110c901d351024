package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/seqdb/storage"
	"github.com/hupe1980/seqdb/symbol"
)

func TestCountAcrossPartitions(t *testing.T) {
	d1, p1 := buildPartition(t, []string{"AC", "AC", "GC"}, nil)
	_, p2 := buildPartition(t, []string{"AC", "TT"}, nil)

	e := &NucEq{Pos: 1, Sym: symbol.A}
	filters := []Filter{
		Evaluate(Simplify(e, p1), d1, p1),
		Evaluate(Simplify(e, p2), d1, p2),
	}
	assert.Equal(t, uint64(3), Count(filters))
	assert.Equal(t, uint64(0), Count(nil))
}

// Reference A at the only position; variants A, C, G. Mutation proportions
// at threshold zero report the two substitutions and never the reference
// base itself.
func TestMutationsBasic(t *testing.T) {
	d, p := buildPartition(t, []string{"A", "C", "G"}, nil)

	filters := []Filter{Evaluate(Simplify(Full{}, p), d, p)}
	muts := Mutations("A", []*storage.Partition{p}, filters, 0)

	byTo := map[byte]MutationProportion{}
	for _, m := range muts {
		assert.NotEqual(t, byte('A'), m.To, "reference base is never a candidate")
		byTo[m.To] = m
	}

	require.Contains(t, byTo, byte('C'))
	assert.Equal(t, uint32(1), byTo['C'].Count)
	assert.InDelta(t, 1.0/3.0, byTo['C'].Proportion, 1e-9)

	require.Contains(t, byTo, byte('G'))
	assert.InDelta(t, 1.0/3.0, byTo['G'].Proportion, 1e-9)

	assert.Equal(t, 1, byTo['C'].Pos)
	assert.Equal(t, byte('A'), byTo['C'].From)
}

func TestMutationsThreshold(t *testing.T) {
	// 4 sequences: C appears twice (1/2), G once (1/4) at position 1.
	d, p := buildPartition(t, []string{"A", "C", "C", "G"}, nil)

	filters := []Filter{Evaluate(Simplify(Full{}, p), d, p)}
	muts := Mutations("A", []*storage.Partition{p}, filters, 0.3)

	require.Len(t, muts, 1)
	assert.Equal(t, byte('C'), muts[0].To)
	assert.Equal(t, uint32(2), muts[0].Count)
	assert.InDelta(t, 0.5, muts[0].Proportion, 1e-9)
}

// N at a position is unknown and leaves the denominator.
func TestMutationsExcludeN(t *testing.T) {
	d, p := buildPartition(t, []string{"A", "C", "N", "N"}, nil)

	filters := []Filter{Evaluate(Simplify(Full{}, p), d, p)}
	muts := Mutations("A", []*storage.Partition{p}, filters, 0.4)

	require.Len(t, muts, 1)
	assert.Equal(t, byte('C'), muts[0].To)
	assert.InDelta(t, 0.5, muts[0].Proportion, 1e-9, "denominator is 2, not 4")
}

func TestMutationsRespectsFilter(t *testing.T) {
	// Restrict to the first three sequences; the G carrier is filtered out.
	d, p := buildPartition(t, []string{"AC", "CC", "CC", "GA"}, nil)

	e := &NucEq{Pos: 2, Sym: symbol.C}
	filters := []Filter{Evaluate(Simplify(e, p), d, p)}
	muts := Mutations("AC", []*storage.Partition{p}, filters, 0.1)

	require.Len(t, muts, 1)
	assert.Equal(t, byte('C'), muts[0].To)
	assert.Equal(t, 1, muts[0].Pos)
	assert.Equal(t, uint32(2), muts[0].Count)
	assert.InDelta(t, 2.0/3.0, muts[0].Proportion, 1e-9)
}

// Position order first, then A, C, G, T, gap within a position.
func TestMutationsOrdering(t *testing.T) {
	d, p := buildPartition(t, []string{"CT", "GA", "TA", "-A"}, nil)

	filters := []Filter{Evaluate(Simplify(Full{}, p), d, p)}
	muts := Mutations("AT", []*storage.Partition{p}, filters, 0.2)

	require.NotEmpty(t, muts)
	for i := 1; i < len(muts); i++ {
		if muts[i-1].Pos == muts[i].Pos {
			continue
		}
		assert.Less(t, muts[i-1].Pos, muts[i].Pos)
	}

	var pos1 []byte
	for _, m := range muts {
		if m.Pos == 1 {
			pos1 = append(pos1, m.To)
		}
	}
	assert.Equal(t, []byte{'C', 'G', 'T', '-'}, pos1)
}
