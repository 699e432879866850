package lsh

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/sourcesim/internal/docfreq"
	"github.com/standardbeagle/sourcesim/internal/minhash"
	"github.com/standardbeagle/sourcesim/internal/types"
)

func buildSketcher(t *testing.T, overlap bool) *minhash.Sketcher {
	t.Helper()
	tokens := make([]string, 0, 64)
	for i := 0; i < 64; i++ {
		tokens = append(tokens, fmt.Sprintf("tok%d", i))
	}
	b := docfreq.NewBuilder()
	for i := 0; i < 10; i++ {
		var feats []types.Feature
		for _, tok := range tokens {
			feats = append(feats, types.Feature{Token: tok, Weight: 1})
		}
		b.Add(types.DocKey(fmt.Sprintf("r//d%d.go@b%d", i, i)), feats)
	}
	// One document without features keeps every token's IDF, and so every
	// TF-IDF weight, above zero.
	b.Add(types.DocKey("r//empty.go@bempty"), nil)
	df := b.Build()
	return minhash.New(df, minhash.Params{K: 32, Bands: 8, Rows: 4, Seed: 5})
}

func TestBandCountMatchesBands(t *testing.T) {
	s := buildSketcher(t, true)
	bander := New(8, 4)

	sk := s.SketchFeatures([]types.Feature{{Token: "tok0", Weight: 2}, {Token: "tok1", Weight: 1}})
	bands := bander.Band(sk)

	require.Len(t, bands, 8)
}

func TestBandDeterminism(t *testing.T) {
	s := buildSketcher(t, true)
	bander := New(8, 4)

	feats := []types.Feature{{Token: "tok3", Weight: 4}, {Token: "tok7", Weight: 1}}
	sk := s.SketchFeatures(feats)

	first := bander.Band(sk)
	second := bander.Band(sk)
	require.Equal(t, first, second)
}

func TestIdenticalSketchesShareEveryBand(t *testing.T) {
	s := buildSketcher(t, true)
	bander := New(8, 4)

	feats := []types.Feature{{Token: "tok3", Weight: 4}, {Token: "tok7", Weight: 1}}
	skA := s.SketchFeatures(feats)
	skB := s.SketchFeatures(feats)

	bandsA := bander.Band(skA)
	bandsB := bander.Band(skB)
	require.Equal(t, bandsA, bandsB)
}

func TestDisjointSketchesLikelyDifferInSomeBand(t *testing.T) {
	s := buildSketcher(t, true)
	bander := New(8, 4)

	a := s.SketchFeatures([]types.Feature{{Token: "tok0", Weight: 3}})
	b := s.SketchFeatures([]types.Feature{{Token: "tok60", Weight: 3}})

	bandsA := bander.Band(a)
	bandsB := bander.Band(b)

	diff := 0
	for i := range bandsA {
		if bandsA[i] != bandsB[i] {
			diff++
		}
	}
	require.Greater(t, diff, 0)
}
