// Package report implements the Report Engine (C7) of spec §4.7: a
// duplicate report grouping meta rows by blob-id, and a similar report
// that unions blob-ids connected through any shared LSH bucket and emits
// connected components, grounded in the teacher's
// internal/analysis/duplicate_detector.go grouping logic and extended
// with a union-find the teacher itself does not need (the teacher
// compares a fixed pair list; this domain requires all-pairs clustering
// over a streaming bucket scan per spec §4.7's "never materialize all
// pairs").
package report

import (
	"context"
	"sort"

	"github.com/standardbeagle/sourcesim/internal/config"
	"github.com/standardbeagle/sourcesim/internal/docfreq"
	"github.com/standardbeagle/sourcesim/internal/errors"
	"github.com/standardbeagle/sourcesim/internal/minhash"
	"github.com/standardbeagle/sourcesim/internal/store"
	"github.com/standardbeagle/sourcesim/internal/types"
)

// DuplicateCluster is one group of meta rows sharing a blob-id.
type DuplicateCluster struct {
	Blob types.BlobID
	Docs []types.Meta
}

// SimilarComponent is one connected component of the banded-equality
// graph, size >= 2.
type SimilarComponent struct {
	Blobs []types.BlobID
}

// Result is the all-pairs output of spec §4.7.
type Result struct {
	Duplicates []DuplicateCluster
	Similar    []SimilarComponent
	// TruncatedBuckets counts buckets whose pair emission was capped by
	// the configured bucket-cap (spec §9 "banded bucket fan-out").
	TruncatedBuckets int
}

// Engine produces reports over one Store.
type Engine struct {
	cfg   *config.Config
	store store.Store
}

// New returns an Engine over st.
func New(cfg *config.Config, st store.Store) *Engine {
	return &Engine{cfg: cfg, store: st}
}

// Run produces both the duplicate report and the similar report.
func (e *Engine) Run(ctx context.Context, filterBySimilarity bool) (*Result, error) {
	built, err := e.store.HasData(ctx)
	if err != nil {
		return nil, errors.New(errors.KindStoreUnavailable, "report", err)
	}
	if !built {
		return nil, errors.New(errors.KindIndexNotBuilt, "report", nil)
	}

	duplicates, err := e.duplicateReport(ctx)
	if err != nil {
		return nil, err
	}

	similar, truncated, err := e.similarReport(ctx, filterBySimilarity)
	if err != nil {
		return nil, err
	}

	return &Result{Duplicates: duplicates, Similar: similar, TruncatedBuckets: truncated}, nil
}

// duplicateReport groups meta rows by blob-id and emits every group of
// size >= 2 (spec §4.7 "Duplicate report").
func (e *Engine) duplicateReport(ctx context.Context) ([]DuplicateCluster, error) {
	byBlob := make(map[types.BlobID][]types.Meta)
	err := e.store.ScanMeta(ctx, func(m types.Meta) error {
		byBlob[m.Blob] = append(byBlob[m.Blob], m)
		return nil
	})
	if err != nil {
		return nil, errors.New(errors.KindStoreUnavailable, "report", err)
	}

	var clusters []DuplicateCluster
	for blob, docs := range byBlob {
		if len(docs) < 2 {
			continue
		}
		clusters = append(clusters, DuplicateCluster{Blob: blob, Docs: docs})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Blob < clusters[j].Blob })
	return clusters, nil
}

// similarReport streams the hashtables buckets, union-finding every pair
// within a qualifying bucket, then emits connected components of size
// >= 2, optionally re-estimating each component's internal similarity
// and dropping components below the floor (spec §4.7).
func (e *Engine) similarReport(ctx context.Context, filterBySimilarity bool) ([]SimilarComponent, int, error) {
	uf := newUnionFind()
	truncated := 0

	err := e.store.ScanBuckets(ctx, func(bucket store.HashtableRow, blobs []types.BlobID) error {
		cap := e.cfg.Similarity.BucketCap
		if cap > 0 && len(blobs) > cap {
			truncated++
			blobs = blobs[:cap]
		}
		for i := 1; i < len(blobs); i++ {
			uf.union(blobs[0], blobs[i])
		}
		return nil
	})
	if err != nil {
		return nil, 0, errors.New(errors.KindStoreUnavailable, "report", err)
	}

	components := uf.components()
	var out []SimilarComponent
	for _, blobs := range components {
		if len(blobs) < 2 {
			continue
		}
		if filterBySimilarity {
			ok, err := e.componentMeetsFloor(ctx, blobs)
			if err != nil {
				return nil, 0, err
			}
			if !ok {
				continue
			}
		}
		sort.Slice(blobs, func(i, j int) bool { return blobs[i] < blobs[j] })
		out = append(out, SimilarComponent{Blobs: blobs})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Blobs) == 0 || len(out[j].Blobs) == 0 {
			return false
		}
		return out[i].Blobs[0] < out[j].Blobs[0]
	})
	return out, truncated, nil
}

// componentMeetsFloor re-estimates pairwise similarity between every
// sketch in the component and keeps it only if every pair clears the
// configured floor (spec §4.7 "optionally filter... by re-estimating
// pairwise similarity").
func (e *Engine) componentMeetsFloor(ctx context.Context, blobs []types.BlobID) (bool, error) {
	sketches := make([]minhash.Sketch, 0, len(blobs))
	for _, b := range blobs {
		sk, ok, err := e.store.Sketch(ctx, b)
		if err != nil {
			return false, errors.New(errors.KindStoreUnavailable, "report", err)
		}
		if !ok {
			return false, nil
		}
		sketches = append(sketches, sk)
	}
	floor := e.cfg.Similarity.SimilarityFloor
	for i := 0; i < len(sketches); i++ {
		for j := i + 1; j < len(sketches); j++ {
			if minhash.Agreement(sketches[i], sketches[j]) < floor {
				return false, nil
			}
		}
	}
	return true, nil
}

// DocFreq exposes the store's DocFreq for callers that want to annotate
// a report with vocabulary statistics; not part of the core report
// shape but convenient for the CLI's summary line.
func (e *Engine) DocFreq() (*docfreq.DocFreq, error) {
	return docfreq.Load(e.store.DocFreqPath())
}

// unionFind is a dense-remapped union-find over blob-ids, per spec
// §4.7's implementation constraint.
type unionFind struct {
	index  map[types.BlobID]int
	blobs  []types.BlobID
	parent []int
	rank   []int
}

func newUnionFind() *unionFind {
	return &unionFind{index: make(map[types.BlobID]int)}
}

func (u *unionFind) idOf(b types.BlobID) int {
	if i, ok := u.index[b]; ok {
		return i
	}
	i := len(u.blobs)
	u.index[b] = i
	u.blobs = append(u.blobs, b)
	u.parent = append(u.parent, i)
	u.rank = append(u.rank, 0)
	return i
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b types.BlobID) {
	ra, rb := u.find(u.idOf(a)), u.find(u.idOf(b))
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

func (u *unionFind) components() [][]types.BlobID {
	groups := make(map[int][]types.BlobID)
	for i, blob := range u.blobs {
		root := u.find(i)
		groups[root] = append(groups[root], blob)
	}
	out := make([][]types.BlobID, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out
}
