package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/seqdb/dict"
	"github.com/hupe1980/seqdb/storage"
)

// seqMeta is the per-sequence metadata used by the test fixtures.
type seqMeta struct {
	lineage  string
	date     string
	region   string
	country  string
	division string
}

func defaulted(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// buildPartition ingests the genomes with their metadata into a fresh
// partition and finalizes it.
func buildPartition(t *testing.T, genomes []string, metas []seqMeta) (*dict.Dictionary, *storage.Partition) {
	t.Helper()
	d, p := buildRaw(t, genomes, metas)
	p.Finalize(d)
	return d, p
}

// buildRaw is buildPartition without the finalize step.
func buildRaw(t *testing.T, genomes []string, metas []seqMeta) (*dict.Dictionary, *storage.Partition) {
	t.Helper()
	require.NotEmpty(t, genomes)
	if metas == nil {
		metas = make([]seqMeta, len(genomes))
	}
	require.Len(t, metas, len(genomes))

	d := dict.New("division")
	var lineages []string
	for _, m := range metas {
		lineages = append(lineages, defaulted(m.lineage, "B"))
	}

	chunks := []storage.Chunk{{Prefix: "B", Count: uint32(len(genomes)), Offset: 0, Lineages: lineages}}
	p := storage.NewPartition(len(genomes[0]), chunks, 1)
	require.NoError(t, p.Seq.Ingest(genomes))

	for i, m := range metas {
		var date int64
		if m.date != "" {
			ts, err := time.Parse("2006-01-02", m.date)
			require.NoError(t, err)
			date = ts.Unix()
		}
		p.Meta.Add(
			uint64(i),
			date,
			d.AddLineage(defaulted(m.lineage, "B")),
			d.AddRegion(defaulted(m.region, "Europe")),
			d.AddCountry(defaulted(m.country, "Germany")),
			[]uint32{d.AddGeneral(defaulted(m.division, "Bavaria"))},
		)
	}
	p.SequenceCount = uint32(len(genomes))
	return d, p
}

// evalSet simplifies, evaluates and returns the matching sids.
func evalSet(t *testing.T, e Expr, d *dict.Dictionary, p *storage.Partition) []uint32 {
	t.Helper()
	f := Evaluate(Simplify(e, p), d, p)
	return f.Bitmap().ToArray()
}

// evalRawSet evaluates without simplification.
func evalRawSet(t *testing.T, e Expr, d *dict.Dictionary, p *storage.Partition) []uint32 {
	t.Helper()
	return Evaluate(e, d, p).Bitmap().ToArray()
}

func date(t *testing.T, s string) int64 {
	t.Helper()
	ts, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return ts.Unix()
}
