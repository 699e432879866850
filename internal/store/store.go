// Package store defines the key-value store contract of spec §4.5/§6:
// three logical tables (meta, hashes, hashtables), each keyed so that
// reprocessing a document overwrites equivalent data (idempotent,
// append-only writes). Implementations must be safe for concurrent use.
package store

import (
	"context"
	"errors"

	"github.com/standardbeagle/sourcesim/internal/minhash"
	"github.com/standardbeagle/sourcesim/internal/types"
)

// ErrNotBuilt names the state in which no index data has ever been
// written. The memory and sqlite stores do not return it; they report that
// state through HasData, which the query and report paths turn into
// errors.KindIndexNotBuilt (spec §7).
var ErrNotBuilt = errors.New("index not built")

// HashtableRow is one row of the B rows per blob-id in the "hashtables"
// table: (band-index, band-value) -> blob-id.
type HashtableRow struct {
	Band  int
	Value string
	Blob  types.BlobID
}

// Store is the contract an index writer, query engine, and report
// engine share: upsert by primary key, point-lookup, range-scan the
// band table, and full-scan meta/hashtables for the report path.
type Store interface {
	// PutMeta upserts a meta row, keyed by Meta.Key() (repo, path and
	// blob-id); re-putting a row with the same key replaces its commit and
	// URL template.
	PutMeta(ctx context.Context, m types.Meta) error
	// MetaByBlob returns every meta row sharing blob (spec §4.6 step 2:
	// the exact-duplicates set).
	MetaByBlob(ctx context.Context, blob types.BlobID) ([]types.Meta, error)
	// ScanMeta streams every meta row in the store (spec §4.7 "Duplicate
	// report": group meta rows by blob-id).
	ScanMeta(ctx context.Context, fn func(types.Meta) error) error

	// PutSketch upserts the sketch row for blob. A sentinel (empty)
	// sketch is never written (spec §4.3 "Failure modes").
	PutSketch(ctx context.Context, blob types.BlobID, sk minhash.Sketch) error
	// Sketch looks up the sketch for blob.
	Sketch(ctx context.Context, blob types.BlobID) (minhash.Sketch, bool, error)

	// PutBands upserts the B band rows for blob.
	PutBands(ctx context.Context, blob types.BlobID, bands []string) error
	// BlobsInBand returns every blob-id sharing (band, value) (spec §4.6
	// step 4). Implementations should cap fan-out per spec §9 and report
	// how many rows were dropped via the second return value.
	BlobsInBand(ctx context.Context, band int, value string, cap int) (blobs []types.BlobID, truncated int, err error)
	// ScanBuckets streams every (band, value) bucket with at least two
	// distinct blob-ids, for the similar-report graph of spec §4.7. The
	// bucket list is collected before fn is first called: the memory store
	// copies every qualifying bucket with its blob-ids, the sqlite store
	// loads the (band, value) keys and fetches each bucket's blob-ids as it
	// calls fn.
	ScanBuckets(ctx context.Context, fn func(bucket HashtableRow, blobs []types.BlobID) error) error

	// HasData reports whether any document has ever been indexed, used
	// to distinguish ErrNotBuilt (spec §4.6 "If no DocFreq exists").
	HasData(ctx context.Context) (bool, error)

	// DocFreqPath returns the filesystem path the store expects the
	// sibling DocFreq JSON document to live at (spec §4.2 persistence:
	// "exactly one authoritative DocFreq exists per index").
	DocFreqPath() string

	Close() error
}
