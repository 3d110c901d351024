// Package seqdb is a read-optimized in-memory search engine over aligned,
// fixed-length viral genome sequences and their categorical metadata.
//
// The database is built once from partitioned FASTA-like sequence files and
// tab-separated metadata, frozen, and then serves boolean predicate queries
// (position/symbol constraints, lineage membership with sublineage
// expansion, geography, date ranges, n-of-k combinations) with count and
// per-position mutation-frequency aggregations across tens of millions of
// sequences.
//
// Storage is columnar: every genome position carries one compressed bitmap
// per symbol holding the sequence ids with that symbol there. At most
// positions one base dominates, so its near-full bitmap is stored
// complemented ("flipped") and the query simplifier folds the complement
// into the surrounding boolean algebra.
package seqdb
