package seqdb

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/seqdb/blobstore"
	"github.com/hupe1980/seqdb/dict"
	"github.com/hupe1980/seqdb/internal/archive"
	"github.com/hupe1980/seqdb/internal/parallel"
	"github.com/hupe1980/seqdb/storage"
)

var partitionMagic = [4]byte{'S', 'Q', 'P', '1'}

const snapshotVersion = uint16(1)

var (
	zstdFrameMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4FrameMagic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// Save writes the snapshot into a directory: the descriptors and dictionary
// as text, one binary archive per partition.
func (db *Database) Save(dir string) error {
	store, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return err
	}
	return db.SaveTo(context.Background(), store)
}

// Load reads a snapshot previously written by Save.
func (db *Database) Load(dir string) error {
	store, err := blobstore.NewLocalStore(dir)
	if err != nil {
		return err
	}
	return db.LoadFrom(context.Background(), store)
}

// SaveTo writes the snapshot into a blob store. Partition archives are
// written in parallel.
func (db *Database) SaveTo(ctx context.Context, store blobstore.Store) error {
	if db.PartDef == nil {
		return ErrNoPartitioning
	}
	if db.Dict == nil {
		return ErrNoDictionary
	}

	putText := func(name string, write func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := write(&buf); err != nil {
			return err
		}
		return store.Put(ctx, name, &buf, int64(buf.Len()))
	}

	if db.PangoDef != nil {
		if err := putText("pango_def.txt", func(w io.Writer) error {
			return WritePangoDescriptor(w, db.PangoDef)
		}); err != nil {
			return err
		}
	}
	if err := putText("part_def.txt", func(w io.Writer) error {
		return WritePartitioningDescriptor(w, db.PartDef)
	}); err != nil {
		return err
	}
	if err := putText("dict.txt", db.Dict.Save); err != nil {
		return err
	}

	err := parallel.ForEach(len(db.Partitions), db.opts.workers, func(i int) error {
		var buf bytes.Buffer
		if err := db.writePartitionArchive(&buf, db.Partitions[i]); err != nil {
			return fmt.Errorf("seqdb: encode partition %d: %w", i, err)
		}
		return store.Put(ctx, fmt.Sprintf("P%d.silo", i), &buf, int64(buf.Len()))
	})
	db.opts.logger.LogSnapshot("save", len(db.Partitions), err)
	return err
}

// LoadFrom reads a snapshot from a blob store. Any format or version
// mismatch fails the whole load; no partial state is kept.
func (db *Database) LoadFrom(ctx context.Context, store blobstore.Store) (err error) {
	defer func() {
		if err != nil {
			db.PartDef = nil
			db.PangoDef = nil
			db.Dict = nil
			db.Partitions = nil
		}
	}()

	readText := func(name string, read func(io.Reader) error) error {
		rc, err := store.Open(ctx, name)
		if err != nil {
			return err
		}
		defer rc.Close()
		return read(rc)
	}

	if err = readText("part_def.txt", db.LoadPartitioning); err != nil {
		return fmt.Errorf("seqdb: load part_def.txt: %w", err)
	}
	// Optional, as in the input layout.
	if e := readText("pango_def.txt", db.LoadPangoDef); e != nil {
		db.PangoDef = nil
	}
	if err = readText("dict.txt", func(r io.Reader) error {
		d, derr := dict.Load(r)
		if derr != nil {
			return derr
		}
		db.Dict = d
		return nil
	}); err != nil {
		return fmt.Errorf("seqdb: load dict.txt: %w", err)
	}

	db.Partitions = make([]*storage.Partition, len(db.PartDef.Partitions))
	err = parallel.ForEach(len(db.Partitions), db.opts.workers, func(i int) error {
		rc, err := store.Open(ctx, fmt.Sprintf("P%d.silo", i))
		if err != nil {
			return fmt.Errorf("seqdb: open partition %d: %w", i, err)
		}
		defer rc.Close()
		p, err := readPartitionArchive(rc)
		if err != nil {
			return fmt.Errorf("seqdb: decode partition %d: %w", i, err)
		}
		db.Partitions[i] = p
		return nil
	})
	db.opts.logger.LogSnapshot("load", len(db.Partitions), err)
	return err
}

// writePartitionArchive writes one partition, compressed per the configured
// codec. The uncompressed frame is: magic, version, partition records,
// CRC32 over the records.
func (db *Database) writePartitionArchive(w io.Writer, p *storage.Partition) error {
	var target io.Writer = w
	var finish func() error

	switch db.opts.compression {
	case CompressionZSTD:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		target, finish = zw, zw.Close
	case CompressionLZ4:
		lw := lz4.NewWriter(w)
		target, finish = lw, lw.Close
	case CompressionNone:
	}

	bw := bufio.NewWriterSize(target, 1<<20)
	aw := archive.NewWriter(bw)

	aw.Raw(partitionMagic[:])
	aw.U16(snapshotVersion)
	aw.BeginChecksum()
	p.Encode(aw)
	aw.EndChecksum()

	if err := aw.Err(); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if finish != nil {
		return finish()
	}
	return nil
}

// readPartitionArchive reads one partition, sniffing the compression frame.
func readPartitionArchive(r io.Reader) (*storage.Partition, error) {
	br := bufio.NewReaderSize(r, 1<<20)
	head, err := br.Peek(4)
	if err != nil {
		return nil, &FormatError{Reason: "truncated archive", cause: err}
	}

	var src io.Reader = br
	switch {
	case bytes.Equal(head, zstdFrameMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		src = zr
	case bytes.Equal(head, lz4FrameMagic):
		src = lz4.NewReader(br)
	}

	ar := archive.NewReader(src)
	var magic [4]byte
	ar.Raw(magic[:])
	if ar.Err() == nil && magic != partitionMagic {
		return nil, &FormatError{Reason: fmt.Sprintf("bad magic %q", magic)}
	}
	if version := ar.U16(); ar.Err() == nil && version != snapshotVersion {
		return nil, &FormatError{Version: version}
	}
	ar.BeginChecksum()

	p, err := storage.DecodePartition(ar)
	if err != nil {
		return nil, &FormatError{Reason: "corrupt partition record", cause: err}
	}
	if err := ar.VerifyChecksum(); err != nil {
		return nil, &FormatError{Reason: "checksum mismatch", cause: err}
	}
	return p, nil
}
