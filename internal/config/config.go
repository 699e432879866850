// Package config loads the engine's configuration, following the
// teacher's pattern: a typed Config struct with defaults baked into its
// constructor, optionally overlaid by an on-disk KDL document
// (internal/config/kdl_config.go), further overlaid by CLI flags in
// cmd/sourcesim.
package config

import (
	"path/filepath"
	"runtime"
)

// Config is the full configuration for one indexing/query/report job.
type Config struct {
	Project    Project
	Similarity Similarity
	Store      Store
	Walk       Walk
}

// Project describes the corpus root being indexed.
type Project struct {
	Root string
}

// Similarity carries the fixed sketch parameters of spec §4.3/§4.4.
// Changing any of these after an index has been built invalidates it
// (spec §3 "if sketch parameters change, the index must be rebuilt").
type Similarity struct {
	K               int     // number of MinHash rows, K = Bands * Rows
	Bands           int     // B
	Rows            int     // R
	Seed            int64   // seed for the r/c/beta parameter matrices
	SimilarityFloor float64 // default query/report similarity threshold
	BucketCap       int     // per-band-bucket pair emission cap (spec §9)
}

// DefaultSimilarity returns the spec's suggested defaults: K=128, B=32, R=4.
func DefaultSimilarity() Similarity {
	return Similarity{
		K:               128,
		Bands:           32,
		Rows:            4,
		Seed:            1,
		SimilarityFloor: 0.5,
		BucketCap:       10000,
	}
}

// Store configures how the engine reaches the backing key-value store.
type Store struct {
	// Kind selects the Store implementation: "memory" or "sqlite". Defaults
	// to "sqlite" so separate CLI invocations (hash, then query) against
	// the same project root see the same index.
	Kind string
	// DB is the sqlite file path the CLI's --db flag carries.
	DB string
}

// Walk configures the default filesystem repository walker.
type Walk struct {
	Include        []string
	Exclude        []string
	MaxFileSize    int64
	ParallelWorkers int
}

// New returns a Config populated with defaults, mirroring the teacher's
// parseKDL zero-state before any file or flag is applied.
func New(root string) *Config {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return &Config{
		Project:    Project{Root: root},
		Similarity: DefaultSimilarity(),
		Store:      Store{Kind: "sqlite", DB: filepath.Join(root, ".sourcesim.db")},
		Walk: Walk{
			Include:         []string{"**/*"},
			Exclude:         []string{"**/.git/**", "**/node_modules/**", "**/vendor/**"},
			MaxFileSize:     10 * 1024 * 1024,
			ParallelWorkers: workers,
		},
	}
}
