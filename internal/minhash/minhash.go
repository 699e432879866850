// Package minhash implements spec §4.3 (C3), the heart of the system:
// TF-IDF weighting of a document's feature bag and the Ioffe weighted
// MinHash sketch over that bag.
//
// Design note on the r/c/beta parameter matrices: rather than
// materializing three |T| x K matrices (spec §5 estimates ~150GB at
// |T|=50M, K=128, forcing row-chunking), this implementation derives
// r[i,k], c[i,k] and beta[i,k] on demand from a seeded hash of
// (seed, i, k). The seed is the only artifact that needs to be
// persisted alongside DocFreq to reproduce the matrices "verbatim"
// (spec §4.3) — generation is O(1) per (token, hash-row) pair, matching
// the spec's own per-pair constant-time requirement, without ever
// holding the full matrix in memory.
package minhash

import (
	"math"
	"math/rand"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/sourcesim/internal/docfreq"
	"github.com/standardbeagle/sourcesim/internal/hashid"
	"github.com/standardbeagle/sourcesim/internal/types"
)

// Params are the fixed sketch parameters of spec §4.3, held constant for
// the lifetime of one index.
type Params struct {
	K     int // K = Bands * Rows
	Bands int
	Rows  int
	Seed  int64
}

// Sketcher computes weighted MinHash sketches against one DocFreq.
type Sketcher struct {
	df     *docfreq.DocFreq
	params Params
}

// New returns a Sketcher bound to df and params.
func New(df *docfreq.DocFreq, params Params) *Sketcher {
	return &Sketcher{df: df, params: params}
}

// Weights computes the sparse TF-IDF bag of spec §4.3 for one document's
// features: w[i] = log(1+tf[i]) * log(N/D[token]). Tokens absent from T,
// or whose resulting weight is <= 0, are dropped.
func (s *Sketcher) Weights(features []types.Feature) map[int]float64 {
	tf := make(map[string]uint64, len(features))
	for _, f := range features {
		tf[f.Token] += uint64(f.Weight)
	}

	w := make(map[int]float64, len(tf))
	n := float64(s.df.N)
	for token, count := range tf {
		i := s.df.Index(token)
		if i < 0 {
			continue
		}
		df := s.df.DF(token)
		if df <= 0 || n <= 0 {
			continue
		}
		weight := math.Log(1+float64(count)) * math.Log(n/float64(df))
		if weight > 0 {
			w[i] = weight
		}
	}
	return w
}

// Sketch is a fixed-length array of K (k*, t*) pairs, spec §3.
type Sketch []hashid.BandPair

// IsEmpty reports whether sk is the all-(0,0) sentinel spec §4.3
// assigns to a document whose bag has no in-vocabulary support.
func (sk Sketch) IsEmpty() bool {
	for _, p := range sk {
		if p.K != 0 || p.T != 0 {
			return false
		}
	}
	return true
}

// Sketch computes the Ioffe weighted MinHash sketch of a TF-IDF bag,
// streaming once over the bag's support and maintaining K running
// minima, per spec §4.3's performance guidance.
func (s *Sketcher) Sketch(bag map[int]float64) Sketch {
	k := s.params.K
	best := make([]float64, k)
	for i := range best {
		best[i] = math.Inf(1)
	}
	sk := make(Sketch, k)

	for i, wi := range bag {
		if wi <= 0 {
			continue
		}
		logw := math.Log(wi)
		for row := 0; row < k; row++ {
			r, c, beta := paramsAt(s.params.Seed, i, row)

			t := math.Floor(logw/r + beta)
			y := math.Exp(r * (t - beta))
			z := y * math.Exp(r)
			a := c / z

			if a < best[row] || (a == best[row] && int64(i) < sk[row].K) {
				best[row] = a
				sk[row] = hashid.BandPair{K: int64(i), T: int64(t)}
			}
		}
	}
	return sk
}

// SketchFeatures is a convenience wrapper combining Weights and Sketch.
func (s *Sketcher) SketchFeatures(features []types.Feature) Sketch {
	return s.Sketch(s.Weights(features))
}

// paramsAt derives r[i,k] ~ Gamma(2,1), c[i,k] ~ Gamma(2,1) and
// beta[i,k] ~ Uniform(0,1) deterministically from (seed, i, k).
func paramsAt(seed int64, i, k int) (r, c, beta float64) {
	h := xxhash.New()
	var buf [24]byte
	putInt64(buf[0:8], seed)
	putInt64(buf[8:16], int64(i))
	putInt64(buf[16:24], int64(k))
	_, _ = h.Write(buf[:])
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	r = gammaShape2(rng)
	c = gammaShape2(rng)
	beta = rng.Float64()
	if r == 0 {
		r = 1e-12
	}
	return r, c, beta
}

// gammaShape2 draws from Gamma(2, 1) using the exact sum-of-exponentials
// construction valid for integer shape: Gamma(n,1) = -sum(ln(U_i)).
func gammaShape2(rng *rand.Rand) float64 {
	u1 := rng.Float64()
	u2 := rng.Float64()
	if u1 <= 0 {
		u1 = 1e-12
	}
	if u2 <= 0 {
		u2 = 1e-12
	}
	return -(math.Log(u1) + math.Log(u2))
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * (7 - i)))
	}
}

// Agreement computes the row-wise agreement rate between two sketches,
// the unbiased estimator of generalized Jaccard similarity (spec §4.3,
// §8 property 3).
func Agreement(a, b Sketch) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}
