package seqdb

import (
	"errors"
	"fmt"
)

var (
	// ErrNoReference is returned when the reference genome file is missing
	// or holds no sequence.
	ErrNoReference = errors.New("seqdb: no reference genome")

	// ErrNoPartitioning is returned when an operation needs the partitioning
	// descriptor and none is loaded.
	ErrNoPartitioning = errors.New("seqdb: no partitioning descriptor loaded")

	// ErrNoDictionary is returned when build or query runs without a
	// dictionary.
	ErrNoDictionary = errors.New("seqdb: no dictionary loaded")

	// ErrCountMismatch is returned when the sequence and metadata files of a
	// chunk disagree on the number of sequences.
	ErrCountMismatch = errors.New("seqdb: sequence and metadata counts differ")
)

// FormatError indicates a snapshot with an unsupported archive version or a
// corrupted frame.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type FormatError struct {
	Version uint16
	Reason  string
	cause   error
}

func (e *FormatError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("seqdb: snapshot format error: %s", e.Reason)
	}
	return fmt.Sprintf("seqdb: unsupported snapshot version %d (want %d)", e.Version, snapshotVersion)
}

func (e *FormatError) Unwrap() error { return e.cause }
