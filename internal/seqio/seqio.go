// Package seqio streams the on-disk input shape of the build: FASTA-like
// sequence files with transparent decompression and tab-separated metadata.
package seqio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// epiPrefixLen is the length of the textual prefix in front of the numeric
// part of an external sequence identifier ("EPI_ISL_").
const epiPrefixLen = 8

// Open opens path for reading, transparently decompressing by extension
// (.xz, .gz, .zst). When path itself does not exist, the compressed suffixes
// are tried in that order.
func Open(path string) (io.ReadCloser, string, error) {
	candidates := []string{path, path + ".xz", path + ".gz", path + ".zst"}
	for _, cand := range candidates {
		f, err := os.Open(cand)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		rc, err := wrapDecompression(f, cand)
		if err != nil {
			f.Close()
			return nil, "", err
		}
		return rc, cand, nil
	}
	return nil, "", fmt.Errorf("seqio: %s not found (also tried .xz, .gz, .zst): %w", path, os.ErrNotExist)
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type closerFunc func()

func (f closerFunc) Close() error { f(); return nil }

func wrapDecompression(f *os.File, path string) (io.ReadCloser, error) {
	br := bufio.NewReaderSize(f, 4*1024*1024)
	switch filepath.Ext(path) {
	case ".xz":
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: xr, closers: []io.Closer{f}}, nil
	case ".gz":
		gr, err := pgzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: gr, closers: []io.Closer{gr, f}}, nil
	case ".zst":
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return &readCloser{Reader: zr, closers: []io.Closer{closerFunc(zr.Close), f}}, nil
	default:
		return &readCloser{Reader: br, closers: []io.Closer{f}}, nil
	}
}

// ScanGenomes reads alternating header and sequence lines, collects the
// sequences into batches of batchSize and hands each batch to fn. Headers
// are opaque. Returns the number of sequences read.
func ScanGenomes(r io.Reader, batchSize int, fn func(batch []string) error) (uint32, error) {
	if batchSize <= 0 {
		batchSize = 1024
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var count uint32
	batch := make([]string, 0, batchSize)
	for sc.Scan() {
		// header line, ignored
		if !sc.Scan() {
			return count, fmt.Errorf("seqio: header without sequence line")
		}
		batch = append(batch, sc.Text())
		count++
		if len(batch) >= batchSize {
			if err := fn(batch); err != nil {
				return count, err
			}
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return count, err
	}
	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return count, err
		}
	}
	return count, nil
}

// MetaRecord is one row of a metadata file.
type MetaRecord struct {
	EPI        uint64
	LineageRaw string
	Date       string
	Region     string
	Country    string
	Division   string
}

// ScanMeta reads the tab-separated metadata rows, skipping the header line,
// and hands each record to fn. Returns the number of records read.
func ScanMeta(r io.Reader, fn func(rec MetaRecord) error) (uint32, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() { // header
		return 0, sc.Err()
	}

	var count uint32
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) < 6 {
			return count, fmt.Errorf("seqio: metadata row %d has %d fields, want 6", count+1, len(fields))
		}
		epiRaw := fields[0]
		if len(epiRaw) <= epiPrefixLen {
			return count, fmt.Errorf("seqio: malformed sequence identifier %q", epiRaw)
		}
		epi, err := strconv.ParseUint(epiRaw[epiPrefixLen:], 10, 64)
		if err != nil {
			return count, fmt.Errorf("seqio: malformed sequence identifier %q: %w", epiRaw, err)
		}
		rec := MetaRecord{
			EPI:        epi,
			LineageRaw: fields[1],
			Date:       fields[2],
			Region:     fields[3],
			Country:    fields[4],
			Division:   fields[5],
		}
		if err := fn(rec); err != nil {
			return count, err
		}
		count++
	}
	return count, sc.Err()
}
