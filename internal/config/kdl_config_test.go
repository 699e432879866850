package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeKDL(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".sourcesim.kdl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.kdl"), "/repo")
	require.NoError(t, err)
	require.Equal(t, DefaultSimilarity(), cfg.Similarity)
	require.Equal(t, "/repo", cfg.Project.Root)
}

func TestLoadOverlaysSimilarity(t *testing.T) {
	path := writeKDL(t, `
similarity {
  k 64
  bands 16
  rows 4
  seed 7
  similarity-floor 0.6
  bucket-cap 500
}
`)
	cfg, err := Load(path, "/repo")
	require.NoError(t, err)
	require.Equal(t, 64, cfg.Similarity.K)
	require.Equal(t, 16, cfg.Similarity.Bands)
	require.Equal(t, 4, cfg.Similarity.Rows)
	require.Equal(t, int64(7), cfg.Similarity.Seed)
	require.InDelta(t, 0.6, cfg.Similarity.SimilarityFloor, 1e-9)
	require.Equal(t, 500, cfg.Similarity.BucketCap)
}

func TestLoadRejectsInconsistentBandsRows(t *testing.T) {
	path := writeKDL(t, `
similarity {
  k 100
  bands 16
  rows 4
}
`)
	_, err := Load(path, "/repo")
	require.Error(t, err)
}

func TestLoadOverlaysStoreAndWalk(t *testing.T) {
	path := writeKDL(t, `
store {
  kind "sqlite"
  db "/tmp/sourcesim.db"
}
walk {
  include "**/*.go" "**/*.py"
  exclude "**/.git/**"
  max-file-size 2048
  parallel-workers 2
}
`)
	cfg, err := Load(path, "/repo")
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.Store.Kind)
	require.Equal(t, "/tmp/sourcesim.db", cfg.Store.DB)
	require.Equal(t, []string{"**/*.go", "**/*.py"}, cfg.Walk.Include)
	require.Equal(t, []string{"**/.git/**"}, cfg.Walk.Exclude)
	require.Equal(t, int64(2048), cfg.Walk.MaxFileSize)
	require.Equal(t, 2, cfg.Walk.ParallelWorkers)
}

func TestLoadRejectsMalformedKDL(t *testing.T) {
	path := writeKDL(t, `this is not { valid kdl`)
	_, err := Load(path, "/repo")
	require.Error(t, err)
}

func TestLoadRelativeProjectRootResolvesAgainstConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".sourcesim.kdl")
	require.NoError(t, os.WriteFile(path, []byte(`
project {
  root "../otherroot"
}
`), 0o644))

	cfg, err := Load(path, "/repo")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(filepath.Dir(path), "../otherroot"), cfg.Project.Root)
}
