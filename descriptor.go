package seqdb

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hupe1980/seqdb/storage"
)

// PartitionDef describes one partition of the input layout.
type PartitionDef struct {
	Name   string
	Count  uint32
	Chunks []storage.Chunk
}

// PartitioningDescriptor describes how the corpus is partitioned and
// chunked on disk.
type PartitioningDescriptor struct {
	Partitions []PartitionDef
}

// PangoCount is one entry of the pango descriptor.
type PangoCount struct {
	Lineage string
	Count   uint32
}

// PangoDescriptor lists the lineages of the corpus with their sequence
// counts.
type PangoDescriptor struct {
	Entries []PangoCount
}

// WritePartitioningDescriptor writes the text form:
//
//	P\t<name>\t<chunk_count>\t<seq_count>
//	C\t<prefix>\t<pango_count>\t<count>\t<offset>
//	L\t<pango_lineage>	(pango_count times)
func WritePartitioningDescriptor(w io.Writer, pd *PartitioningDescriptor) error {
	bw := bufio.NewWriter(w)
	for _, part := range pd.Partitions {
		fmt.Fprintf(bw, "P\t%s\t%d\t%d\n", part.Name, len(part.Chunks), part.Count)
		for _, chunk := range part.Chunks {
			fmt.Fprintf(bw, "C\t%s\t%d\t%d\t%d\n", chunk.Prefix, len(chunk.Lineages), chunk.Count, chunk.Offset)
			for _, lineage := range chunk.Lineages {
				fmt.Fprintf(bw, "L\t%s\n", lineage)
			}
		}
	}
	return bw.Flush()
}

// ReadPartitioningDescriptor parses the text form written by
// WritePartitioningDescriptor.
func ReadPartitioningDescriptor(r io.Reader) (*PartitioningDescriptor, error) {
	pd := &PartitioningDescriptor{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var line int
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		switch fields[0] {
		case "P":
			if len(fields) != 4 {
				return nil, fmt.Errorf("seqdb: part_def line %d: malformed partition record", line)
			}
			count, err := parseUint32(fields[3])
			if err != nil {
				return nil, fmt.Errorf("seqdb: part_def line %d: %w", line, err)
			}
			pd.Partitions = append(pd.Partitions, PartitionDef{Name: fields[1], Count: count})
		case "C":
			if len(pd.Partitions) == 0 {
				return nil, fmt.Errorf("seqdb: part_def line %d: chunk before partition", line)
			}
			if len(fields) != 5 {
				return nil, fmt.Errorf("seqdb: part_def line %d: malformed chunk record", line)
			}
			count, err1 := parseUint32(fields[3])
			offset, err2 := parseUint32(fields[4])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("seqdb: part_def line %d: malformed chunk numbers", line)
			}
			part := &pd.Partitions[len(pd.Partitions)-1]
			part.Chunks = append(part.Chunks, storage.Chunk{Prefix: fields[1], Count: count, Offset: offset})
		case "L":
			if len(fields) != 2 {
				return nil, fmt.Errorf("seqdb: part_def line %d: malformed lineage record", line)
			}
			if len(pd.Partitions) == 0 || len(pd.Partitions[len(pd.Partitions)-1].Chunks) == 0 {
				return nil, fmt.Errorf("seqdb: part_def line %d: lineage before chunk", line)
			}
			part := &pd.Partitions[len(pd.Partitions)-1]
			chunk := &part.Chunks[len(part.Chunks)-1]
			chunk.Lineages = append(chunk.Lineages, fields[1])
		default:
			return nil, fmt.Errorf("seqdb: part_def line %d: unknown record %q", line, fields[0])
		}
	}
	return pd, sc.Err()
}

// WritePangoDescriptor writes "lineage\tcount" lines.
func WritePangoDescriptor(w io.Writer, pd *PangoDescriptor) error {
	bw := bufio.NewWriter(w)
	for _, e := range pd.Entries {
		fmt.Fprintf(bw, "%s\t%d\n", e.Lineage, e.Count)
	}
	return bw.Flush()
}

// ReadPangoDescriptor parses "lineage\tcount" lines.
func ReadPangoDescriptor(r io.Reader) (*PangoDescriptor, error) {
	pd := &PangoDescriptor{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if sc.Text() == "" {
			continue
		}
		lineage, countStr, ok := strings.Cut(sc.Text(), "\t")
		if !ok {
			return nil, fmt.Errorf("seqdb: pango_def: malformed line %q", sc.Text())
		}
		count, err := parseUint32(countStr)
		if err != nil {
			return nil, fmt.Errorf("seqdb: pango_def: %w", err)
		}
		pd.Entries = append(pd.Entries, PangoCount{Lineage: lineage, Count: count})
	}
	return pd, sc.Err()
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// chunkName is the file-name stem of chunk j in partition i.
func chunkName(i, j int) string {
	return fmt.Sprintf("P%d_C%d", i, j)
}
