// Package extract supplies the default feature extractor spec §6 treats
// as an external collaborator: "a request/response contract: input = a
// parsed syntax tree ..., output = a sequence of (name, weight) pairs".
// This package is not part of the similarity engine's core — callers are
// free to swap in their own extractor — but a concrete implementation is
// provided so the CLI runs end-to-end, covering a representative subset
// of languages rather than every grammar the teacher pack carries.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/surgebase/porter2"

	"github.com/standardbeagle/sourcesim/internal/types"
)

// Extractor turns a file's bytes into a feature bag, per spec §6.
type Extractor interface {
	// Supports reports whether this extractor handles path's language.
	Supports(path string) bool
	// Extract returns the (token, weight) pairs for the whole file.
	Extract(path string, content []byte) ([]types.Feature, error)
}

// FuncBoundary names one function-level sub-document for the -m func
// granularity mode of spec §9 ("Function-level granularity").
type FuncBoundary struct {
	Name  string
	Line  int
	Start int
	End   int
}

// FuncExtractor is implemented by extractors that can additionally
// locate function boundaries within a file, enabling per-function
// documents keyed "<repo>//<path>@<blob>:<name>:<line>".
type FuncExtractor interface {
	Extractor
	Functions(path string, content []byte) ([]FuncBoundary, error)
}

// Registry dispatches to the first registered Extractor whose Supports
// returns true for a given path, mirroring the teacher's per-extension
// dispatch in internal/parser/parser_language_setup.go.
type Registry struct {
	extractors []Extractor
}

// NewDefault returns a Registry with the tree-sitter-backed Go/Python
// extractor and the go-fast-backed JavaScript/TypeScript extractor.
func NewDefault() (*Registry, error) {
	ts, err := newTreeSitterExtractor()
	if err != nil {
		return nil, fmt.Errorf("init tree-sitter extractor: %w", err)
	}
	return &Registry{
		extractors: []Extractor{ts, newGoFastExtractor()},
	}, nil
}

// For returns the extractor registered for path's extension, or nil.
func (r *Registry) For(path string) Extractor {
	for _, e := range r.extractors {
		if e.Supports(path) {
			return e
		}
	}
	return nil
}

// Extract dispatches path to its registered extractor.
func (r *Registry) Extract(path string, content []byte) ([]types.Feature, error) {
	e := r.For(path)
	if e == nil {
		return nil, fmt.Errorf("no extractor registered for %s", filepath.Ext(path))
	}
	return e.Extract(path, content)
}

// normalizeToken splits an identifier on camelCase and snake_case
// boundaries and stems each subword with porter2, the way
// internal/semantic/stemmer.go normalizes symbol names for matching.
// Subwords shorter than 3 runes are kept as-is (stemming short tokens is
// noisy and the teacher's stemmer applies the same minimum length).
func normalizeToken(name string) []string {
	parts := splitIdentifier(name)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(p)
		if p == "" {
			continue
		}
		if len([]rune(p)) >= 3 {
			p = porter2.Stem(p)
		}
		out = append(out, p)
	}
	return out
}

func splitIdentifier(name string) []string {
	var parts []string
	var cur []rune
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-':
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = nil
			}
		case unicode.IsUpper(r) && i > 0 && !unicode.IsUpper(runes[i-1]):
			if len(cur) > 0 {
				parts = append(parts, string(cur))
			}
			cur = []rune{r}
		default:
			cur = append(cur, r)
		}
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

// bag accumulates normalized subword tokens into a weighted feature bag,
// the way spec §3 requires: "equal tokens within one document are
// summed."
type bag struct {
	counts map[string]uint32
}

func newBag() *bag {
	return &bag{counts: make(map[string]uint32)}
}

func (b *bag) addIdentifier(name string) {
	for _, tok := range normalizeToken(name) {
		b.counts[tok]++
	}
}

func (b *bag) features() []types.Feature {
	out := make([]types.Feature, 0, len(b.counts))
	for tok, w := range b.counts {
		out = append(out, types.Feature{Token: tok, Weight: w})
	}
	return out
}
