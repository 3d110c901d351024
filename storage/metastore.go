package storage

import (
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/seqdb/dict"
)

// MetaStore holds the per-sequence metadata of a partition as dense vectors
// indexed by sequence id, plus the category bitmaps precomputed at finalize.
type MetaStore struct {
	EPIs      []uint64
	Dates     []int64 // seconds since epoch
	Lineages  []uint32
	Regions   []uint32
	Countries []uint32

	// Extras is column-major: Extras[col][sid] is a dictionary id into the
	// general table.
	Extras [][]uint32

	LineageBitmaps    []*roaring.Bitmap
	SublineageBitmaps []*roaring.Bitmap
	CountryBitmaps    []*roaring.Bitmap
	RegionBitmaps     []*roaring.Bitmap
}

// NewMetaStore creates an empty metadata store with columns extra columns.
func NewMetaStore(columns int) *MetaStore {
	return &MetaStore{Extras: make([][]uint32, columns)}
}

// Count returns the number of stored sequences.
func (m *MetaStore) Count() uint32 { return uint32(len(m.EPIs)) }

// Add appends the metadata of the next sequence id.
func (m *MetaStore) Add(epi uint64, date int64, lineage, region, country uint32, extras []uint32) {
	m.EPIs = append(m.EPIs, epi)
	m.Dates = append(m.Dates, date)
	m.Lineages = append(m.Lineages, lineage)
	m.Regions = append(m.Regions, region)
	m.Countries = append(m.Countries, country)
	for col := range m.Extras {
		var v uint32 = dict.NotFound
		if col < len(extras) {
			v = extras[col]
		}
		m.Extras[col] = append(m.Extras[col], v)
	}
}

// Finalize precomputes the lineage, sublineage, country and region bitmaps.
// Grouping yields ascending sid runs, so the sorted AddMany fast path applies.
//
// The sublineage closure relies on lineage names encoding the tree through
// the string-prefix relation; aliases must have been resolved at ingest.
func (m *MetaStore) Finalize(d *dict.Dictionary) {
	m.LineageBitmaps = groupBitmaps(m.Lineages, d.LineageCount())
	m.CountryBitmaps = groupBitmaps(m.Countries, d.CountryCount())
	m.RegionBitmaps = groupBitmaps(m.Regions, d.RegionCount())

	lineageCount := d.LineageCount()
	groups := make([][]uint32, lineageCount)
	for sid, l := range m.Lineages {
		if l < lineageCount {
			groups[l] = append(groups[l], uint32(sid))
		}
	}

	m.SublineageBitmaps = make([]*roaring.Bitmap, lineageCount)
	for l := uint32(0); l < lineageCount; l++ {
		sub := slices.Clone(groups[l])
		name := d.Lineage(l)
		for other := uint32(0); other < lineageCount; other++ {
			otherName := d.Lineage(other)
			if len(otherName) <= len(name) {
				continue
			}
			if strings.HasPrefix(otherName, name) {
				sub = append(sub, groups[other]...)
			}
		}
		slices.Sort(sub)
		bm := roaring.New()
		bm.AddMany(sub)
		m.SublineageBitmaps[l] = bm
	}
}

func groupBitmaps(ids []uint32, count uint32) []*roaring.Bitmap {
	groups := make([][]uint32, count)
	for sid, id := range ids {
		if id < count {
			groups[id] = append(groups[id], uint32(sid))
		}
	}
	bms := make([]*roaring.Bitmap, count)
	for id := range bms {
		bm := roaring.New()
		bm.AddMany(groups[id])
		bms[id] = bm
	}
	return bms
}
