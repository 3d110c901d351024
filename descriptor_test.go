package seqdb

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/seqdb/storage"
)

func TestPartitioningDescriptorRoundTrip(t *testing.T) {
	pd := &PartitioningDescriptor{
		Partitions: []PartitionDef{
			{
				Name:  "part0",
				Count: 12,
				Chunks: []storage.Chunk{
					{Prefix: "B.1", Count: 8, Offset: 0, Lineages: []string{"B.1", "B.1.17"}},
					{Prefix: "B", Count: 4, Offset: 8, Lineages: []string{"B"}},
				},
			},
			{
				Name:  "part1",
				Count: 3,
				Chunks: []storage.Chunk{
					{Prefix: "A", Count: 3, Offset: 0, Lineages: []string{"A.2"}},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePartitioningDescriptor(&buf, pd))

	got, err := ReadPartitioningDescriptor(&buf)
	require.NoError(t, err)
	assert.Equal(t, pd, got)
}

func TestReadPartitioningDescriptorMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"chunkBeforePartition", "C\tB\t1\t2\t0\n"},
		{"lineageBeforeChunk", "P\tp\t1\t2\nL\tB\n"},
		{"unknownRecord", "X\tfoo\n"},
		{"badCount", "P\tp\t1\tmany\n"},
		{"shortPartition", "P\tp\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPartitioningDescriptor(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestPangoDescriptorRoundTrip(t *testing.T) {
	pd := &PangoDescriptor{Entries: []PangoCount{
		{Lineage: "B.1", Count: 100},
		{Lineage: "B.1.1.7", Count: 42},
	}}

	var buf bytes.Buffer
	require.NoError(t, WritePangoDescriptor(&buf, pd))

	got, err := ReadPangoDescriptor(&buf)
	require.NoError(t, err)
	assert.Equal(t, pd, got)

	_, err = ReadPangoDescriptor(strings.NewReader("B.1\n"))
	assert.Error(t, err)
}

func TestChunkName(t *testing.T) {
	assert.Equal(t, "P0_C0", chunkName(0, 0))
	assert.Equal(t, "P3_C12", chunkName(3, 12))
}
