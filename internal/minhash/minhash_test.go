package minhash

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/sourcesim/internal/docfreq"
	"github.com/standardbeagle/sourcesim/internal/types"
)

func buildDF(tokens []string, n int) *docfreq.DocFreq {
	b := docfreq.NewBuilder()
	for i := 0; i < n; i++ {
		key := types.DocKey(fmt.Sprintf("r//doc%d.go@blob%d", i, i))
		var features []types.Feature
		for _, tok := range tokens {
			features = append(features, types.Feature{Token: tok, Weight: 1})
		}
		b.Add(key, features)
	}
	// One document without features keeps every token's IDF, and so every
	// TF-IDF weight, above zero.
	b.Add(types.DocKey("r//empty.go@blobempty"), nil)
	return b.Build()
}

func TestSketchDeterminism(t *testing.T) {
	df := buildDF([]string{"alpha", "beta", "gamma"}, 5)
	s := New(df, Params{K: 16, Bands: 4, Rows: 4, Seed: 42})

	features := []types.Feature{{Token: "alpha", Weight: 3}, {Token: "beta", Weight: 1}}
	first := s.SketchFeatures(features)
	second := s.SketchFeatures(features)

	require.Equal(t, first, second)
}

func TestIdenticalBytesIdenticalSketch(t *testing.T) {
	df := buildDF([]string{"foo", "bar"}, 4)
	s := New(df, Params{K: 8, Bands: 4, Rows: 2, Seed: 7})

	a := s.SketchFeatures([]types.Feature{{Token: "foo", Weight: 2}})
	b := s.SketchFeatures([]types.Feature{{Token: "foo", Weight: 2}})
	require.Equal(t, a, b)
}

func TestEmptyBagIsSentinel(t *testing.T) {
	df := buildDF([]string{"foo"}, 3)
	s := New(df, Params{K: 8, Bands: 4, Rows: 2, Seed: 1})

	sk := s.Sketch(map[int]float64{})
	require.True(t, sk.IsEmpty())
}

// TestCalibration exercises spec property 3 at K=128: over 200 random
// weighted-bag pairs with a known generalized Jaccard J, the mean absolute
// difference between row agreement and J stays below 0.12.
func TestCalibration(t *testing.T) {
	const k = 128
	vocab := 200
	tokens := make([]string, vocab)
	for i := range tokens {
		tokens[i] = string(rune('a'+i%26)) + string(rune('A'+(i/26)%26))
	}
	df := buildDF(tokens, 20)
	s := New(df, Params{K: k, Bands: 32, Rows: 4, Seed: 99})

	rng := rand.New(rand.NewSource(1))
	const trials = 200
	var totalErr float64

	for trial := 0; trial < trials; trial++ {
		overlap := 20 + rng.Intn(40)
		onlyA := rng.Intn(20)
		onlyB := rng.Intn(20)

		shared := make([]types.Feature, 0, overlap)
		for i := 0; i < overlap; i++ {
			shared = append(shared, types.Feature{Token: tokens[i], Weight: uint32(1 + rng.Intn(3))})
		}
		aOnly := make([]types.Feature, 0, onlyA)
		for i := 0; i < onlyA; i++ {
			aOnly = append(aOnly, types.Feature{Token: tokens[overlap+i], Weight: uint32(1 + rng.Intn(3))})
		}
		bOnly := make([]types.Feature, 0, onlyB)
		for i := 0; i < onlyB; i++ {
			bOnly = append(bOnly, types.Feature{Token: tokens[overlap+onlyA+i], Weight: uint32(1 + rng.Intn(3))})
		}

		featA := append(append([]types.Feature{}, shared...), aOnly...)
		featB := append(append([]types.Feature{}, shared...), bOnly...)

		skA := s.SketchFeatures(featA)
		skB := s.SketchFeatures(featB)
		if skA.IsEmpty() || skB.IsEmpty() {
			continue
		}

		est := Agreement(skA, skB)
		trueJ := trueJaccard(s, featA, featB)
		totalErr += math.Abs(est - trueJ)
	}

	meanErr := totalErr / float64(trials)
	require.Less(t, meanErr, 0.12, "mean |estimate - true J| should be small over many trials")
}

func trueJaccard(s *Sketcher, a, b []types.Feature) float64 {
	wa := s.Weights(a)
	wb := s.Weights(b)

	var minSum, maxSum float64
	seen := make(map[int]struct{})
	for i, v := range wa {
		seen[i] = struct{}{}
		other := wb[i]
		minSum += math.Min(v, other)
		maxSum += math.Max(v, other)
	}
	for i, v := range wb {
		if _, ok := seen[i]; ok {
			continue
		}
		minSum += math.Min(0, v)
		maxSum += math.Max(0, v)
	}
	if maxSum == 0 {
		return 0
	}
	return minSum / maxSum
}

func TestAgreementSymmetric(t *testing.T) {
	df := buildDF([]string{"x", "y", "z"}, 6)
	s := New(df, Params{K: 16, Bands: 4, Rows: 4, Seed: 3})

	a := s.SketchFeatures([]types.Feature{{Token: "x", Weight: 2}, {Token: "y", Weight: 1}})
	b := s.SketchFeatures([]types.Feature{{Token: "y", Weight: 1}, {Token: "z", Weight: 4}})

	require.Equal(t, Agreement(a, b), Agreement(b, a))
}
