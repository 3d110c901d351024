package seqdb

// Compression selects the partition archive compression. Load detects the
// frame type, so snapshots written with any setting can always be read back.
type Compression uint8

const (
	// CompressionZSTD compresses partition archives with zstd (default).
	CompressionZSTD Compression = iota
	// CompressionLZ4 compresses partition archives with lz4 frames.
	CompressionLZ4
	// CompressionNone stores partition archives uncompressed.
	CompressionNone
)

type options struct {
	logger      *Logger
	workers     int
	compression Compression
	batchSize   int
}

func defaultOptions() options {
	return options{
		logger:    NewLogger(nil),
		batchSize: 1024,
	}
}

// Option configures Database construction.
type Option func(*options)

// WithLogger replaces the default stderr text logger.
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithWorkers bounds the goroutines of the per-partition fan-outs of build,
// finalize, snapshot, info and query filter evaluation. Zero picks
// GOMAXPROCS. The position-parallel loops inside a partition (ingest, flip,
// run optimization, mutation counting) and the count action always use
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithCompression selects the partition archive compression for Save.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithIngestBatchSize sets how many sequences are buffered before a bulk
// insert into the position bitmaps.
func WithIngestBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}
