package docfreq

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/sourcesim/internal/types"
)

func TestBuilderDeterminism(t *testing.T) {
	docA := types.DocKey("r//a.go@blob1")
	docB := types.DocKey("r//b.go@blob2")

	build := func() *DocFreq {
		b := NewBuilder()
		b.Add(docA, []types.Feature{{Token: "foo", Weight: 2}, {Token: "bar", Weight: 1}})
		b.Add(docB, []types.Feature{{Token: "foo", Weight: 1}, {Token: "baz", Weight: 3}})
		return b.Build()
	}

	first := build()
	second := build()

	require.Equal(t, first.N, second.N)
	require.Equal(t, first.tokens, second.tokens)
	require.Equal(t, first.df, second.df)

	require.Equal(t, 2, first.N)
	require.Equal(t, []string{"bar", "baz", "foo"}, first.tokens)
	require.Equal(t, 2, first.DF("foo"))
	require.Equal(t, 1, first.DF("bar"))
	require.Equal(t, -1, first.Index("nonexistent"))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Add(types.DocKey("r//a.go@blob1"), []types.Feature{{Token: "foo", Weight: 2}})
	b.Add(types.DocKey("r//b.go@blob2"), []types.Feature{{Token: "bar", Weight: 1}})
	df := b.Build()

	path := filepath.Join(t.TempDir(), "docfreq.json")
	require.NoError(t, Save(path, df))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, df.N, loaded.N)
	require.Equal(t, df.Len(), loaded.Len())
	require.Equal(t, df.DF("foo"), loaded.DF("foo"))
	require.Equal(t, df.Index("foo"), loaded.Index("foo"))
}

func TestLoadRejectsMalformedSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"docs": "not-a-number", "tokens": [], "df": {}}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
