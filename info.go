package seqdb

import (
	"fmt"
	"io"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/seqdb/internal/parallel"
	"github.com/hupe1980/seqdb/symbol"
)

// infoWindow is the position bucket width of the container histogram.
const infoWindow = 500

// InfoDetailed writes the verbose index report: serialized size per symbol,
// roaring container statistics, the distribution of bitset containers over
// the genome (with the N and gap columns broken out) and the per-partition
// flipped-symbol rendering of the reference.
func (db *Database) InfoDetailed(w io.Writer) error {
	length := db.GenomeLength()

	sizeBySymbol := make([]uint64, symbol.Count)
	err := parallel.ForEach(symbol.Count, db.opts.workers, func(sym int) error {
		for _, p := range db.Partitions {
			for _, pos := range p.Seq.Positions() {
				sizeBySymbol[sym] += pos.Bitmaps[sym].GetSerializedSizeInBytes()
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for sym := 0; sym < symbol.Count; sym++ {
		fmt.Fprintf(w, "size for symbol '%c': %d\n", symbol.Symbol(sym).Byte(), sizeBySymbol[sym])
	}

	windows := (length / infoWindow) + 1
	var (
		mu             sync.Mutex
		total          roaring.Statistics
		bitsetByWindow = make([]uint64, windows)
		gapByWindow    = make([]uint64, windows)
		nByWindow      = make([]uint64, windows)
	)

	err = parallel.Ranges(length, infoWindow, db.opts.workers, func(lo, hi int) error {
		var local roaring.Statistics
		localBitset := make([]uint64, windows)
		localGap := make([]uint64, windows)
		localN := make([]uint64, windows)

		for pos := lo; pos < hi; pos++ {
			for _, p := range db.Partitions {
				for sym, bm := range p.Seq.Positions()[pos].Bitmaps {
					s := bm.Stats()
					addStats(&local, s)
					if s.BitmapContainers == 0 {
						continue
					}
					// classified by the symbol owning the bitmap
					switch symbol.Symbol(sym) {
					case symbol.N:
						localN[pos/infoWindow] += s.BitmapContainers
					case symbol.Gap:
						localGap[pos/infoWindow] += s.BitmapContainers
					default:
						localBitset[pos/infoWindow] += s.BitmapContainers
					}
				}
			}
		}

		mu.Lock()
		defer mu.Unlock()
		addStats(&total, local)
		for i := range localBitset {
			bitsetByWindow[i] += localBitset[i]
			gapByWindow[i] += localGap[i]
			nByWindow[i] += localN[i]
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Total bitmap containers %d, of those there are\n", total.Containers)
	fmt.Fprintf(w, "array: %d\nrun: %d\nbitset: %d\n", total.ArrayContainers, total.RunContainers, total.BitmapContainers)
	fmt.Fprintf(w, "Total bitmap values %d, of those there are\n", total.Cardinality)
	fmt.Fprintf(w, "array: %d\nrun: %d\nbitset: %d\n",
		total.ArrayContainerValues, total.RunContainerValues, total.BitmapContainerValues)
	totalBytes := total.ArrayContainerBytes + total.RunContainerBytes + total.BitmapContainerBytes
	fmt.Fprintf(w, "Total bitmap byte size %d, of those there are\n", totalBytes)
	fmt.Fprintf(w, "array: %d\nrun: %d\nbitset: %d\n",
		total.ArrayContainerBytes, total.RunContainerBytes, total.BitmapContainerBytes)

	fmt.Fprintln(w, "Bitset container distribution by position #NON_GAP (#GAP)")
	for i := 0; i < windows; i++ {
		fmt.Fprintf(w, "Pos: [%d,%d): %d (N: %d, -: %d)\n",
			i*infoWindow, (i+1)*infoWindow, bitsetByWindow[i], nByWindow[i], gapByWindow[i])
	}

	fmt.Fprintln(w, "Partition reference genomes:")
	for _, p := range db.Partitions {
		buf := make([]byte, length)
		for pos := 1; pos <= length; pos++ {
			if f := p.Seq.FlippedAt(pos); f == symbol.None {
				buf[pos-1] = 'o'
			} else {
				buf[pos-1] = f.Byte()
			}
		}
		fmt.Fprintf(w, "%s\n", buf)
	}
	return nil
}

func addStats(dst *roaring.Statistics, s roaring.Statistics) {
	dst.Cardinality += s.Cardinality
	dst.Containers += s.Containers
	dst.ArrayContainers += s.ArrayContainers
	dst.ArrayContainerBytes += s.ArrayContainerBytes
	dst.ArrayContainerValues += s.ArrayContainerValues
	dst.BitmapContainers += s.BitmapContainers
	dst.BitmapContainerBytes += s.BitmapContainerBytes
	dst.BitmapContainerValues += s.BitmapContainerValues
	dst.RunContainers += s.RunContainers
	dst.RunContainerBytes += s.RunContainerBytes
	dst.RunContainerValues += s.RunContainerValues
}
