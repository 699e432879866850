// Package memory implements an in-process Store, letting the CLI run
// end-to-end without a running database — the store §6 calls an
// external collaborator is, here, a few maps behind one mutex covering the
// three logical tables.
package memory

import (
	"context"
	"sync"

	"github.com/standardbeagle/sourcesim/internal/minhash"
	"github.com/standardbeagle/sourcesim/internal/store"
	"github.com/standardbeagle/sourcesim/internal/types"
)

type bucketKey struct {
	band  int
	value string
}

// Store is a sync.RWMutex-guarded in-memory implementation of
// store.Store.
type Store struct {
	mu sync.RWMutex

	meta        map[types.DocKey]types.Meta
	metaByID    map[types.BlobID][]types.DocKey
	sketches    map[types.BlobID]minhash.Sketch
	buckets     map[bucketKey][]types.BlobID
	docFreqPath string
}

// New returns an empty in-memory store. docFreqPath is a nominal
// filesystem location the CLI writes/reads the sibling DocFreq JSON
// document at.
func New(docFreqPath string) *Store {
	return &Store{
		meta:        make(map[types.DocKey]types.Meta),
		metaByID:    make(map[types.BlobID][]types.DocKey),
		sketches:    make(map[types.BlobID]minhash.Sketch),
		buckets:     make(map[bucketKey][]types.BlobID),
		docFreqPath: docFreqPath,
	}
}

func (s *Store) PutMeta(_ context.Context, m types.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := m.Key()
	if _, exists := s.meta[key]; !exists {
		s.metaByID[m.Blob] = append(s.metaByID[m.Blob], key)
	}
	s.meta[key] = m
	return nil
}

func (s *Store) MetaByBlob(_ context.Context, blob types.BlobID) ([]types.Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.metaByID[blob]
	out := make([]types.Meta, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.meta[k])
	}
	return out, nil
}

func (s *Store) ScanMeta(_ context.Context, fn func(types.Meta) error) error {
	s.mu.RLock()
	rows := make([]types.Meta, 0, len(s.meta))
	for _, m := range s.meta {
		rows = append(rows, m)
	}
	s.mu.RUnlock()

	for _, m := range rows {
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) PutSketch(_ context.Context, blob types.BlobID, sk minhash.Sketch) error {
	if sk.IsEmpty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sketches[blob] = sk
	return nil
}

func (s *Store) Sketch(_ context.Context, blob types.BlobID) (minhash.Sketch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sk, ok := s.sketches[blob]
	return sk, ok, nil
}

func (s *Store) PutBands(_ context.Context, blob types.BlobID, bands []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for band, value := range bands {
		key := bucketKey{band: band, value: value}
		blobs := s.buckets[key]
		present := false
		for _, b := range blobs {
			if b == blob {
				present = true
				break
			}
		}
		if !present {
			s.buckets[key] = append(blobs, blob)
		}
	}
	return nil
}

func (s *Store) BlobsInBand(_ context.Context, band int, value string, cap int) ([]types.BlobID, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blobs := s.buckets[bucketKey{band: band, value: value}]
	if cap <= 0 || len(blobs) <= cap {
		out := make([]types.BlobID, len(blobs))
		copy(out, blobs)
		return out, 0, nil
	}
	out := make([]types.BlobID, cap)
	copy(out, blobs[:cap])
	return out, len(blobs) - cap, nil
}

func (s *Store) ScanBuckets(_ context.Context, fn func(store.HashtableRow, []types.BlobID) error) error {
	s.mu.RLock()
	type entry struct {
		key   bucketKey
		blobs []types.BlobID
	}
	entries := make([]entry, 0, len(s.buckets))
	for k, v := range s.buckets {
		if len(v) < 2 {
			continue
		}
		cp := make([]types.BlobID, len(v))
		copy(cp, v)
		entries = append(entries, entry{key: k, blobs: cp})
	}
	s.mu.RUnlock()

	for _, e := range entries {
		row := store.HashtableRow{Band: e.key.band, Value: e.key.value}
		if err := fn(row, e.blobs); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) HasData(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.meta) > 0, nil
}

func (s *Store) DocFreqPath() string {
	return s.docFreqPath
}

func (s *Store) Close() error {
	return nil
}
