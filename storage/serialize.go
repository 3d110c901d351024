package storage

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/seqdb/internal/archive"
	"github.com/hupe1980/seqdb/symbol"
)

// Encode writes the partition records in snapshot order: metadata store,
// sequence store, sequence count, chunks, sorted lineages.
func (p *Partition) Encode(w *archive.Writer) {
	p.Meta.encode(w)
	p.Seq.encode(w)
	w.U32(p.SequenceCount)

	w.U32(uint32(len(p.Chunks)))
	for _, c := range p.Chunks {
		w.Str(c.Prefix)
		w.U32(c.Count)
		w.U32(c.Offset)
		w.U32(uint32(len(c.Lineages)))
		for _, l := range c.Lineages {
			w.Str(l)
		}
	}

	w.U32s(p.SortedLineages)
}

// DecodePartition reads the records written by Encode.
func DecodePartition(r *archive.Reader) (*Partition, error) {
	p := &Partition{}

	var err error
	if p.Meta, err = decodeMetaStore(r); err != nil {
		return nil, err
	}
	if p.Seq, err = decodeSequenceStore(r); err != nil {
		return nil, err
	}
	p.SequenceCount = r.U32()

	chunkCount := r.Len()
	if r.Err() != nil {
		return nil, r.Err()
	}
	p.Chunks = make([]Chunk, chunkCount)
	for i := range p.Chunks {
		c := &p.Chunks[i]
		c.Prefix = r.Str()
		c.Count = r.U32()
		c.Offset = r.U32()
		lineageCount := r.Len()
		if r.Err() != nil {
			return nil, r.Err()
		}
		c.Lineages = make([]string, lineageCount)
		for j := range c.Lineages {
			c.Lineages[j] = r.Str()
		}
	}

	p.SortedLineages = r.U32s()
	return p, r.Err()
}

func (m *MetaStore) encode(w *archive.Writer) {
	w.U64s(m.EPIs)
	w.I64s(m.Dates)
	w.U32s(m.Lineages)
	w.U32s(m.Regions)
	w.U32s(m.Countries)

	w.U16(uint16(len(m.Extras)))
	for _, col := range m.Extras {
		w.U32s(col)
	}

	encodeBitmaps(w, m.LineageBitmaps)
	encodeBitmaps(w, m.SublineageBitmaps)
	encodeBitmaps(w, m.CountryBitmaps)
	encodeBitmaps(w, m.RegionBitmaps)
}

func decodeMetaStore(r *archive.Reader) (*MetaStore, error) {
	m := &MetaStore{}
	m.EPIs = r.U64s()
	m.Dates = r.I64s()
	m.Lineages = r.U32s()
	m.Regions = r.U32s()
	m.Countries = r.U32s()

	cols := int(r.U16())
	if r.Err() != nil {
		return nil, r.Err()
	}
	m.Extras = make([][]uint32, cols)
	for i := range m.Extras {
		m.Extras[i] = r.U32s()
	}

	var err error
	if m.LineageBitmaps, err = decodeBitmaps(r); err != nil {
		return nil, err
	}
	if m.SublineageBitmaps, err = decodeBitmaps(r); err != nil {
		return nil, err
	}
	if m.CountryBitmaps, err = decodeBitmaps(r); err != nil {
		return nil, err
	}
	if m.RegionBitmaps, err = decodeBitmaps(r); err != nil {
		return nil, err
	}

	count := len(m.EPIs)
	if len(m.Dates) != count || len(m.Lineages) != count || len(m.Regions) != count || len(m.Countries) != count {
		return nil, fmt.Errorf("storage: metadata vectors disagree on sequence count")
	}
	return m, r.Err()
}

func (s *SequenceStore) encode(w *archive.Writer) {
	w.U32(uint32(s.length))
	w.U32(s.count)
	for p := range s.positions {
		pos := &s.positions[p]
		w.U8(uint8(pos.Flipped))
		for _, bm := range pos.Bitmaps {
			w.Bitmap(bm)
		}
	}
}

func decodeSequenceStore(r *archive.Reader) (*SequenceStore, error) {
	length := r.Len()
	count := r.U32()
	if r.Err() != nil {
		return nil, r.Err()
	}

	s := &SequenceStore{
		length:    length,
		count:     count,
		positions: make([]Position, length),
	}
	for p := range s.positions {
		pos := &s.positions[p]
		pos.Flipped = symbol.Symbol(r.U8())
		for i := range pos.Bitmaps {
			pos.Bitmaps[i] = r.Bitmap()
		}
		if r.Err() != nil {
			return nil, r.Err()
		}
		if pos.Flipped != symbol.None && !pos.Flipped.IsCanonical() {
			return nil, fmt.Errorf("storage: position %d: flipped symbol %d is not canonical", p+1, pos.Flipped)
		}
	}
	return s, r.Err()
}

func encodeBitmaps(w *archive.Writer, bms []*roaring.Bitmap) {
	w.U32(uint32(len(bms)))
	for _, bm := range bms {
		w.Bitmap(bm)
	}
}

func decodeBitmaps(r *archive.Reader) ([]*roaring.Bitmap, error) {
	n := r.Len()
	if r.Err() != nil {
		return nil, r.Err()
	}
	bms := make([]*roaring.Bitmap, n)
	for i := range bms {
		bms[i] = r.Bitmap()
		if r.Err() != nil {
			return nil, r.Err()
		}
	}
	return bms, nil
}
