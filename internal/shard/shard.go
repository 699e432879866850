// Package shard assigns documents to worker shards by hash of blob-id,
// per spec §5: "A worker pool shards documents by hash of blob-id."
package shard

import (
	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/sourcesim/internal/types"
)

// Of returns the shard index in [0, n) for blob.
func Of(blob types.BlobID, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64String(string(blob)) % uint64(n))
}
