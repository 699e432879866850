// Package lsh implements spec §4.4 (C4): splitting a sketch's K rows
// into B contiguous bands of R rows each and reducing each band to a
// single opaque BandValue.
package lsh

import (
	"github.com/standardbeagle/sourcesim/internal/hashid"
	"github.com/standardbeagle/sourcesim/internal/minhash"
)

// Bander splits sketches of a fixed K into Bands bands of Rows rows.
type Bander struct {
	Bands int
	Rows  int
}

// New returns a Bander for the given band/row split.
func New(bands, rows int) Bander {
	return Bander{Bands: bands, Rows: rows}
}

// Band reduces sk into Bands BandValues, one per contiguous R-row slice.
func (b Bander) Band(sk minhash.Sketch) []string {
	values := make([]string, b.Bands)
	for band := 0; band < b.Bands; band++ {
		start := band * b.Rows
		end := start + b.Rows
		if end > len(sk) {
			end = len(sk)
		}
		values[band] = hashid.BandValue(sk[start:end])
	}
	return values
}
