package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/sourcesim/internal/hashid"
	"github.com/standardbeagle/sourcesim/internal/minhash"
	"github.com/standardbeagle/sourcesim/internal/store"
	"github.com/standardbeagle/sourcesim/internal/types"
)

func TestPutMetaAndLookupByBlob(t *testing.T) {
	ctx := context.Background()
	s := New("docfreq.json")

	m1 := types.Meta{Blob: "b1", Repo: "r", Path: "a.go"}
	m2 := types.Meta{Blob: "b1", Repo: "r", Path: "b.go"}
	require.NoError(t, s.PutMeta(ctx, m1))
	require.NoError(t, s.PutMeta(ctx, m2))

	rows, err := s.MetaByBlob(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestPutMetaUpsertByKey(t *testing.T) {
	ctx := context.Background()
	s := New("docfreq.json")

	m := types.Meta{Blob: "b1", Repo: "r", Commit: "c1", Path: "a.go"}
	require.NoError(t, s.PutMeta(ctx, m))

	m.Commit = "c2"
	require.NoError(t, s.PutMeta(ctx, m))

	rows, err := s.MetaByBlob(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "re-putting the same key should overwrite, not duplicate")
	require.Equal(t, "c2", rows[0].Commit)

	var all []types.Meta
	require.NoError(t, s.ScanMeta(ctx, func(m types.Meta) error {
		all = append(all, m)
		return nil
	}))
	require.Len(t, all, 1)
}

func TestSketchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New("docfreq.json")

	sk := minhash.Sketch{{K: 1, T: 2}, {K: 3, T: 4}}
	require.NoError(t, s.PutSketch(ctx, "blob1", sk))

	got, ok, err := s.Sketch(ctx, "blob1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sk, got)
}

func TestPutSketchSkipsEmptySentinel(t *testing.T) {
	ctx := context.Background()
	s := New("docfreq.json")

	empty := minhash.Sketch{{K: 0, T: 0}, {K: 0, T: 0}}
	require.NoError(t, s.PutSketch(ctx, "blob1", empty))

	_, ok, err := s.Sketch(ctx, "blob1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutBandsAndBlobsInBand(t *testing.T) {
	ctx := context.Background()
	s := New("docfreq.json")

	require.NoError(t, s.PutBands(ctx, "blobA", []string{"v0", "v1"}))
	require.NoError(t, s.PutBands(ctx, "blobB", []string{"v0", "v2"}))

	blobs, truncated, err := s.BlobsInBand(ctx, 0, "v0", 10)
	require.NoError(t, err)
	require.Equal(t, 0, truncated)
	require.ElementsMatch(t, []types.BlobID{"blobA", "blobB"}, blobs)
}

func TestBlobsInBandRespectsCap(t *testing.T) {
	ctx := context.Background()
	s := New("docfreq.json")

	for i := 0; i < 5; i++ {
		blob := types.BlobID(hashid.BlobID([]byte{byte(i)}))
		require.NoError(t, s.PutBands(ctx, blob, []string{"v0"}))
	}

	blobs, truncated, err := s.BlobsInBand(ctx, 0, "v0", 3)
	require.NoError(t, err)
	require.Len(t, blobs, 3)
	require.Equal(t, 2, truncated)
}

func TestScanBucketsOnlySharedBuckets(t *testing.T) {
	ctx := context.Background()
	s := New("docfreq.json")

	require.NoError(t, s.PutBands(ctx, "solo", []string{"v0"}))
	require.NoError(t, s.PutBands(ctx, "shareA", []string{"v1"}))
	require.NoError(t, s.PutBands(ctx, "shareB", []string{"v1"}))

	var rows []store.HashtableRow
	var blobSets [][]types.BlobID
	err := s.ScanBuckets(ctx, func(row store.HashtableRow, blobs []types.BlobID) error {
		rows = append(rows, row)
		blobSets = append(blobSets, blobs)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rows, 1, "singleton buckets must be excluded from the graph scan")
	require.ElementsMatch(t, []types.BlobID{"shareA", "shareB"}, blobSets[0])
}

func TestHasData(t *testing.T) {
	ctx := context.Background()
	s := New("docfreq.json")

	has, err := s.HasData(ctx)
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, s.PutMeta(ctx, types.Meta{Blob: "b1", Repo: "r", Path: "a.go"}))

	has, err = s.HasData(ctx)
	require.NoError(t, err)
	require.True(t, has)
}

func TestDocFreqPath(t *testing.T) {
	s := New("/tmp/x.json")
	require.Equal(t, "/tmp/x.json", s.DocFreqPath())
}
