// Package query implements the Query Engine (C6) of spec §4.6: given one
// document's bytes, reproduce its sketch against the stored DocFreq,
// probe the band table for candidates, and partition them into
// duplicates and similar, grounded in the teacher's
// internal/analysis/duplicate_detector.go candidate-scoring shape.
package query

import (
	"context"
	"fmt"

	"github.com/standardbeagle/sourcesim/internal/config"
	"github.com/standardbeagle/sourcesim/internal/docfreq"
	"github.com/standardbeagle/sourcesim/internal/errors"
	"github.com/standardbeagle/sourcesim/internal/extract"
	"github.com/standardbeagle/sourcesim/internal/hashid"
	"github.com/standardbeagle/sourcesim/internal/lsh"
	"github.com/standardbeagle/sourcesim/internal/minhash"
	"github.com/standardbeagle/sourcesim/internal/store"
	"github.com/standardbeagle/sourcesim/internal/types"
)

// SimilarHit pairs a candidate's metadata with its estimated similarity
// to the query document.
type SimilarHit struct {
	Meta       types.Meta
	Similarity float64
}

// Result is the two-set output of spec §4.6.
type Result struct {
	Duplicates []types.Meta
	Similar    []SimilarHit
}

// Engine answers single-document queries against one Store.
type Engine struct {
	cfg      *config.Config
	store    store.Store
	registry *extract.Registry
}

// New returns an Engine over st.
func New(cfg *config.Config, st store.Store) (*Engine, error) {
	registry, err := extract.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("init extractor registry: %w", err)
	}
	return &Engine{cfg: cfg, store: st, registry: registry}, nil
}

// Query runs the 7-step procedure of spec §4.6 for one file's bytes at
// path.
func (e *Engine) Query(ctx context.Context, path string, content []byte) (*Result, error) {
	built, err := e.store.HasData(ctx)
	if err != nil {
		return nil, errors.New(errors.KindStoreUnavailable, "query", err)
	}
	if !built {
		return nil, errors.New(errors.KindIndexNotBuilt, "query", nil).
			WithReason("run hash before query")
	}

	blob := hashid.BlobID(content)

	duplicates, err := e.store.MetaByBlob(ctx, blob)
	if err != nil {
		return nil, errors.New(errors.KindStoreUnavailable, "query", err)
	}

	df, err := docfreq.Load(e.store.DocFreqPath())
	if err != nil {
		return nil, errors.New(errors.KindIndexNotBuilt, "query", err)
	}

	result := &Result{Duplicates: duplicates}

	var features []types.Feature
	if extractor := e.registry.For(path); extractor != nil {
		features, err = extractor.Extract(path, content)
		if err != nil {
			return nil, errors.New(errors.KindExtractorSkipped, "query", err).WithDoc(path)
		}
	}

	sketcher := minhash.New(df, minhash.Params{
		K: e.cfg.Similarity.K, Bands: e.cfg.Similarity.Bands,
		Rows: e.cfg.Similarity.Rows, Seed: e.cfg.Similarity.Seed,
	})
	bag := sketcher.Weights(features)
	if len(bag) == 0 {
		// Edge case (spec §4.6): empty bag returns only duplicates.
		return result, nil
	}

	querySketch := sketcher.Sketch(bag)
	if querySketch.IsEmpty() {
		return result, nil
	}

	bander := lsh.New(e.cfg.Similarity.Bands, e.cfg.Similarity.Rows)
	bands := bander.Band(querySketch)

	excluded := map[types.BlobID]struct{}{blob: {}}
	for _, m := range duplicates {
		excluded[m.Blob] = struct{}{}
	}

	candidates := make(map[types.BlobID]struct{})
	for band, value := range bands {
		blobs, _, err := e.store.BlobsInBand(ctx, band, value, e.cfg.Similarity.BucketCap)
		if err != nil {
			return nil, errors.New(errors.KindStoreUnavailable, "query", err)
		}
		for _, b := range blobs {
			if _, skip := excluded[b]; skip {
				continue
			}
			candidates[b] = struct{}{}
		}
	}

	floor := e.cfg.Similarity.SimilarityFloor
	for candidate := range candidates {
		sk, ok, err := e.store.Sketch(ctx, candidate)
		if err != nil {
			return nil, errors.New(errors.KindStoreUnavailable, "query", err)
		}
		if !ok {
			continue
		}
		sim := minhash.Agreement(querySketch, sk)
		if sim < floor {
			continue
		}
		metas, err := e.store.MetaByBlob(ctx, candidate)
		if err != nil {
			return nil, errors.New(errors.KindStoreUnavailable, "query", err)
		}
		for _, m := range metas {
			result.Similar = append(result.Similar, SimilarHit{Meta: m, Similarity: sim})
		}
	}

	return result, nil
}
