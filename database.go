package seqdb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hupe1980/seqdb/dict"
	"github.com/hupe1980/seqdb/internal/parallel"
	"github.com/hupe1980/seqdb/internal/seqio"
	"github.com/hupe1980/seqdb/storage"
)

// Database is the frozen, read-only search index: an ordered set of
// partitions plus the shared reference genome, alias map, dictionary and
// descriptors. It is built exactly once; afterwards any number of queries
// may run concurrently.
type Database struct {
	opts options

	workdir   string
	Reference []string
	Aliases   dict.AliasMap
	Dict      *dict.Dictionary

	PangoDef *PangoDescriptor
	PartDef  *PartitioningDescriptor

	Partitions []*storage.Partition
}

// Open reads the working directory's reference genome and pango alias map.
// Both files are required; descriptors and data are loaded separately via
// the build path or a snapshot.
func Open(workdir string, opts ...Option) (*Database, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	db := &Database{opts: o, workdir: workdir}

	refPath := filepath.Join(workdir, "reference_genome.txt")
	rf, err := os.Open(refPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoReference, refPath, err)
	}
	defer rf.Close()
	sc := bufio.NewScanner(rf)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		db.Reference = append(db.Reference, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoReference, refPath, err)
	}
	if len(db.Reference) == 0 || len(db.Reference[0]) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoReference, refPath)
	}

	aliasPath := filepath.Join(workdir, "pango_alias.txt")
	af, err := os.Open(aliasPath)
	if err != nil {
		return nil, fmt.Errorf("seqdb: open %s: %w", aliasPath, err)
	}
	defer af.Close()
	db.Aliases, err = dict.LoadAliases(af)
	if err != nil {
		return nil, fmt.Errorf("seqdb: read %s: %w", aliasPath, err)
	}

	return db, nil
}

// GenomeLength returns the fixed genome length L, taken from the reference.
func (db *Database) GenomeLength() int { return len(db.Reference[0]) }

// LoadPartitioning sets the partitioning descriptor from its text form.
func (db *Database) LoadPartitioning(r io.Reader) error {
	pd, err := ReadPartitioningDescriptor(r)
	if err != nil {
		return err
	}
	db.PartDef = pd
	return nil
}

// LoadPangoDef sets the pango descriptor from its text form.
func (db *Database) LoadPangoDef(r io.Reader) error {
	pd, err := ReadPangoDescriptor(r)
	if err != nil {
		return err
	}
	db.PangoDef = pd
	return nil
}

// BuildDictionary scans the metadata of every chunk once, single-threaded,
// and interns all lineages (alias-resolved), regions, countries and division
// values. Ids handed out here are final; the later parallel build only looks
// them up.
func (db *Database) BuildDictionary(partPrefix, metaSuffix string) error {
	if db.PartDef == nil {
		return ErrNoPartitioning
	}
	d := dict.New("division")
	for i, part := range db.PartDef.Partitions {
		for j := range part.Chunks {
			path := partPrefix + chunkName(i, j) + metaSuffix
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("seqdb: open metadata %s: %w", path, err)
			}
			_, err = seqio.ScanMeta(f, func(rec seqio.MetaRecord) error {
				d.AddLineage(db.Aliases.Resolve(rec.LineageRaw))
				d.AddRegion(rec.Region)
				d.AddCountry(rec.Country)
				d.AddGeneral(rec.Division)
				return nil
			})
			f.Close()
			if err != nil {
				return fmt.Errorf("seqdb: scan metadata %s: %w", path, err)
			}
		}
	}
	db.Dict = d
	return nil
}

// Build ingests all partitions from the chunked input layout and finalizes
// them. Partitions build in parallel; within a partition, chunks are
// ingested sequentially so sid assignment stays deterministic. Any chunk
// error abandons the whole build.
func (db *Database) Build(partPrefix, metaSuffix, seqSuffix string) error {
	if db.PartDef == nil {
		return ErrNoPartitioning
	}
	if db.Dict == nil {
		return ErrNoDictionary
	}

	start := time.Now()
	length := db.GenomeLength()
	db.Partitions = make([]*storage.Partition, len(db.PartDef.Partitions))

	err := parallel.ForEach(len(db.PartDef.Partitions), db.opts.workers, func(i int) error {
		part := db.PartDef.Partitions[i]
		p := storage.NewPartition(length, part.Chunks, len(db.Dict.Columns))
		log := db.opts.logger.WithPartition(i)

		for j := range part.Chunks {
			name := chunkName(i, j)
			seqCount, seqFile, err := db.ingestChunkSequences(p, partPrefix+name+seqSuffix)
			if err != nil {
				return fmt.Errorf("seqdb: chunk %s: %w", name, err)
			}
			metaCount, err := db.ingestChunkMeta(p, partPrefix+name+metaSuffix)
			if err != nil {
				return fmt.Errorf("seqdb: chunk %s: %w", name, err)
			}
			if seqCount != metaCount {
				return fmt.Errorf("%w: chunk %s has %d sequences and %d metadata rows",
					ErrCountMismatch, name, seqCount, metaCount)
			}
			p.SequenceCount += seqCount
			log.LogChunk(name, seqCount, seqFile)
		}
		db.Partitions[i] = p
		return nil
	})
	if err != nil {
		db.Partitions = nil
		return err
	}

	if err := db.Finalize(); err != nil {
		return err
	}

	var total uint64
	for _, p := range db.Partitions {
		total += uint64(p.SequenceCount)
	}
	db.opts.logger.LogBuild(len(db.Partitions), total, time.Since(start))
	return nil
}

func (db *Database) ingestChunkSequences(p *storage.Partition, path string) (uint32, string, error) {
	rc, used, err := seqio.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer rc.Close()

	count, err := seqio.ScanGenomes(rc, db.opts.batchSize, func(batch []string) error {
		return p.Seq.Ingest(batch)
	})
	return count, used, err
}

func (db *Database) ingestChunkMeta(p *storage.Partition, path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return seqio.ScanMeta(f, func(rec seqio.MetaRecord) error {
		ts, err := time.Parse("2006-01-02", rec.Date)
		if err != nil {
			return fmt.Errorf("bad date %q: %w", rec.Date, err)
		}
		p.Meta.Add(
			rec.EPI,
			ts.Unix(),
			db.Dict.LineageID(db.Aliases.Resolve(rec.LineageRaw)),
			db.Dict.RegionID(rec.Region),
			db.Dict.CountryID(rec.Country),
			[]uint32{db.Dict.GeneralID(rec.Division)},
		)
		return nil
	})
}

// Finalize freezes all partitions in parallel: flips the per-position
// majority bitmaps, collects present lineages, precomputes the metadata
// bitmaps and run-optimizes the position bitmaps.
func (db *Database) Finalize() error {
	if db.Dict == nil {
		return ErrNoDictionary
	}
	return parallel.ForEach(len(db.Partitions), db.opts.workers, func(i int) error {
		db.Partitions[i].Finalize(db.Dict)
		db.Partitions[i].Seq.RunOptimize()
		return nil
	})
}

// SequenceCount returns the total number of sequences across partitions.
func (db *Database) SequenceCount() uint64 {
	var total uint64
	for _, p := range db.Partitions {
		total += uint64(p.SequenceCount)
	}
	return total
}

// Info writes the summary report: sequence count and index size.
func (db *Database) Info(w io.Writer) error {
	var seqCount, totalSize atomic.Uint64
	err := parallel.ForEach(len(db.Partitions), db.opts.workers, func(i int) error {
		p := db.Partitions[i]
		seqCount.Add(uint64(p.SequenceCount))
		totalSize.Add(p.Seq.SizeInBytes())
		return nil
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "sequence count: %d\ntotal size: %d\n", seqCount.Load(), totalSize.Load())
	return err
}
