// Package index implements the Index Writer (C5) of spec §4.5: a
// two-pass pipeline — first build the corpus-wide DocFreq, then sketch,
// band and persist every document — sharded across a worker pool per
// spec §5, grounded in the teacher's internal/indexing pipeline
// structure (a master coordinator dispatching to per-shard workers).
package index

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/sourcesim/internal/config"
	"github.com/standardbeagle/sourcesim/internal/docfreq"
	"github.com/standardbeagle/sourcesim/internal/errors"
	"github.com/standardbeagle/sourcesim/internal/extract"
	"github.com/standardbeagle/sourcesim/internal/hashid"
	"github.com/standardbeagle/sourcesim/internal/lsh"
	"github.com/standardbeagle/sourcesim/internal/minhash"
	"github.com/standardbeagle/sourcesim/internal/shard"
	"github.com/standardbeagle/sourcesim/internal/store"
	"github.com/standardbeagle/sourcesim/internal/types"
	"github.com/standardbeagle/sourcesim/internal/walker"
)

// pendingDoc is one extracted document waiting for the sketch/band pass,
// held in memory between the two passes (spec §4.2: DocFreq must be
// complete, and broadcast, before any sketch is computed).
type pendingDoc struct {
	key      types.DocKey
	meta     types.Meta
	features []types.Feature
}

// Writer runs the full index-build pipeline against one Store.
type Writer struct {
	cfg      *config.Config
	store    store.Store
	registry *extract.Registry
}

// New returns a Writer over st using cfg's walk/similarity parameters
// and the default extractor registry.
func New(cfg *config.Config, st store.Store) (*Writer, error) {
	registry, err := extract.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("init extractor registry: %w", err)
	}
	return &Writer{cfg: cfg, store: st, registry: registry}, nil
}

// Run walks cfg.Project.Root, builds DocFreq, then sketches, bands and
// persists every document. It returns a SkipSummary of per-document
// errors (spec §7); a non-nil error return means an infrastructure
// failure that aborts the whole job.
func (w *Writer) Run(ctx context.Context, granularity types.Granularity) (*errors.SkipSummary, error) {
	summary := errors.NewSkipSummary()

	docs, df, err := w.buildDocFreq(ctx, granularity, summary)
	if err != nil {
		return summary, err
	}

	if err := docfreq.Save(w.store.DocFreqPath(), df); err != nil {
		return summary, errors.New(errors.KindStoreUnavailable, "save-docfreq", err)
	}

	if err := w.sketchAndWrite(ctx, docs, df, summary); err != nil {
		return summary, err
	}

	return summary, nil
}

// buildDocFreq is pass one: walk the repository, extract features per
// document, and accumulate the (N, T, D) triple. Extracted documents are
// held in memory for pass two since DocFreq must be complete before any
// weight can be computed (spec §4.3 depends on the finished N and D).
func (w *Writer) buildDocFreq(ctx context.Context, granularity types.Granularity, summary *errors.SkipSummary) ([]pendingDoc, *docfreq.DocFreq, error) {
	fsWalker := walker.New(w.cfg)
	builder := docfreq.NewBuilder()

	// featureCache reuses an already-extracted feature bag for a blob seen
	// earlier in this run, so a repeated file's content is only run through
	// the extractor once. It never gates whether a document is recorded:
	// every non-binary (repo,commit,path) still gets its own meta row and
	// DocFreq contribution, since duplicate files are distinct documents.
	featureCache := make(map[types.BlobID][]types.Feature)
	var docs []pendingDoc

	walkErr := fsWalker.Walk(ctx, func(f walker.File) error {
		if f.IsBinary {
			return nil
		}
		blob := hashid.BlobID(f.Content)

		extractor := w.registry.For(f.Path)
		if extractor == nil {
			summary.Add(errors.New(errors.KindExtractorSkipped, "extract", nil).
				WithDoc(f.Path).WithReason("no extractor for extension"))
			meta := types.Meta{Blob: blob, Repo: f.Repo, Commit: f.Commit, Path: f.Path}
			docs = append(docs, pendingDoc{key: meta.Key(), meta: meta})
			builder.Add(meta.Key(), nil)
			return nil
		}

		if granularity == types.GranularityFunc {
			return w.addFuncDocuments(f, blob, extractor, builder, &docs, summary)
		}
		return w.addFileDocument(f, blob, extractor, builder, &docs, summary, featureCache)
	})
	if walkErr != nil {
		return nil, nil, errors.New(errors.KindInputUnreadable, "walk", walkErr)
	}

	return docs, builder.Build(), nil
}

func (w *Writer) addFileDocument(f walker.File, blob types.BlobID, ex extract.Extractor, builder *docfreq.Builder, docs *[]pendingDoc, summary *errors.SkipSummary, featureCache map[types.BlobID][]types.Feature) error {
	features, cached := featureCache[blob]
	if !cached {
		var err error
		features, err = ex.Extract(f.Path, f.Content)
		if err != nil {
			summary.Add(errors.New(errors.KindExtractorSkipped, "extract", err).WithDoc(f.Path))
			features = nil
		}
		featureCache[blob] = features
	}
	meta := types.Meta{Blob: blob, Repo: f.Repo, Commit: f.Commit, Path: f.Path}
	*docs = append(*docs, pendingDoc{key: meta.Key(), meta: meta, features: features})
	builder.Add(meta.Key(), features)
	return nil
}

// addFuncDocuments implements the function-granularity mode of spec §9:
// one sub-document per function/method the extractor's Functions reports, keyed
// "<repo>//<path>@<blob>:<name>:<line>". Each function's identity (its
// Meta.Blob, and therefore its meta row and sketch/band storage key) is
// the SHA1 of that function's own byte range, not the enclosing file's
// blob — otherwise every function in a file would collide on one store
// key and only the last one written would survive.
func (w *Writer) addFuncDocuments(f walker.File, blob types.BlobID, ex extract.Extractor, builder *docfreq.Builder, docs *[]pendingDoc, summary *errors.SkipSummary) error {
	funcEx, ok := ex.(extract.FuncExtractor)
	if !ok {
		return w.addFileDocument(f, blob, ex, builder, docs, summary, make(map[types.BlobID][]types.Feature))
	}
	boundaries, err := funcEx.Functions(f.Path, f.Content)
	if err != nil {
		summary.Add(errors.New(errors.KindExtractorSkipped, "functions", err).WithDoc(f.Path))
		return nil
	}
	if len(boundaries) == 0 {
		return w.addFileDocument(f, blob, ex, builder, docs, summary, make(map[types.BlobID][]types.Feature))
	}

	for _, fb := range boundaries {
		if fb.Start < 0 || fb.End > len(f.Content) || fb.Start >= fb.End {
			continue
		}
		snippet := f.Content[fb.Start:fb.End]
		features, err := ex.Extract(f.Path, snippet)
		if err != nil {
			summary.Add(errors.New(errors.KindExtractorSkipped, "extract", err).
				WithDoc(f.Path).WithReason(fb.Name))
			continue
		}
		funcBlob := hashid.BlobID(snippet)
		key := types.NewFuncKey(f.Repo, f.Path, funcBlob, fb.Name, fb.Line)
		meta := types.Meta{Blob: funcBlob, Repo: f.Repo, Commit: f.Commit, Path: f.Path}
		*docs = append(*docs, pendingDoc{key: key, meta: meta, features: features})
		builder.Add(key, features)
	}
	return nil
}

// sketchAndWrite is pass two: shard pendingDocs across a worker pool by
// hash of blob-id (spec §5), sketch/band/write each one, and accumulate
// per-document errors into summary under a shared mutex (the store
// itself is assumed safe for concurrent use; the summary is not).
func (w *Writer) sketchAndWrite(ctx context.Context, docs []pendingDoc, df *docfreq.DocFreq, summary *errors.SkipSummary) error {
	sketcher := minhash.New(df, minhash.Params{
		K: w.cfg.Similarity.K, Bands: w.cfg.Similarity.Bands,
		Rows: w.cfg.Similarity.Rows, Seed: w.cfg.Similarity.Seed,
	})
	bander := lsh.New(w.cfg.Similarity.Bands, w.cfg.Similarity.Rows)

	workers := w.cfg.Walk.ParallelWorkers
	if workers < 1 {
		workers = 1
	}
	shards := make([][]pendingDoc, workers)
	for _, d := range docs {
		idx := shard.Of(d.meta.Blob, workers)
		shards[idx] = append(shards[idx], d)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range shards {
		s := s
		g.Go(func() error {
			for _, d := range s {
				if gctx.Err() != nil {
					return errors.New(errors.KindCancelled, "sketch", gctx.Err())
				}
				if err := w.writeOne(gctx, d, sketcher, bander); err != nil {
					if err.Kind.Fatal() {
						return err
					}
					mu.Lock()
					summary.Add(err)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (w *Writer) writeOne(ctx context.Context, d pendingDoc, sketcher *minhash.Sketcher, bander lsh.Bander) *errors.Error {
	if err := w.store.PutMeta(ctx, d.meta); err != nil {
		return errors.New(errors.KindStoreUnavailable, "put-meta", err).WithDoc(string(d.key))
	}

	bag := sketcher.Weights(d.features)
	if len(bag) == 0 {
		return errors.New(errors.KindSketchEmpty, "sketch", nil).WithDoc(string(d.key))
	}

	sk := sketcher.Sketch(bag)
	if sk.IsEmpty() {
		return errors.New(errors.KindSketchEmpty, "sketch", nil).WithDoc(string(d.key))
	}

	if err := w.store.PutSketch(ctx, d.meta.Blob, sk); err != nil {
		return errors.New(errors.KindStoreUnavailable, "put-sketch", err).WithDoc(string(d.key))
	}
	if err := w.store.PutBands(ctx, d.meta.Blob, bander.Band(sk)); err != nil {
		return errors.New(errors.KindStoreUnavailable, "put-bands", err).WithDoc(string(d.key))
	}
	return nil
}
