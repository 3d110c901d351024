package storage

import (
	"slices"

	"github.com/hupe1980/seqdb/dict"
)

// Chunk describes a contiguous run of sequence ids sharing a lineage-prefix
// bucket inside a partition.
type Chunk struct {
	Prefix   string
	Count    uint32
	Offset   uint32
	Lineages []string
}

// Partition is a self-contained shard of the database with its own dense
// sequence id space.
type Partition struct {
	SequenceCount uint32
	Chunks        []Chunk
	Seq           *SequenceStore
	Meta          *MetaStore

	// SortedLineages holds the distinct lineage ids present in this
	// partition, ascending. Queries for an absent exact lineage
	// short-circuit on it.
	SortedLineages []uint32
}

// NewPartition creates an empty partition for genomes of the given length.
func NewPartition(length int, chunks []Chunk, columns int) *Partition {
	return &Partition{
		Chunks: chunks,
		Seq:    NewSequenceStore(length),
		Meta:   NewMetaStore(columns),
	}
}

// HasLineage reports whether the exact lineage id occurs in this partition.
func (p *Partition) HasLineage(id uint32) bool {
	_, ok := slices.BinarySearch(p.SortedLineages, id)
	return ok
}

// Finalize freezes the partition: collects the present lineage ids, flips the
// majority symbol of every position and precomputes the metadata bitmaps.
// After Finalize the partition is read-only.
func (p *Partition) Finalize(d *dict.Dictionary) {
	seen := make(map[uint32]struct{})
	for _, chunk := range p.Chunks {
		for _, name := range chunk.Lineages {
			id := d.LineageID(name)
			if id == dict.NotFound {
				continue
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				p.SortedLineages = append(p.SortedLineages, id)
			}
		}
	}
	slices.Sort(p.SortedLineages)

	p.Seq.Finalize()
	p.Meta.Finalize(d)
}
