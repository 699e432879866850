// Package docfreq builds and persists the corpus-wide document-frequency
// table (spec §4.2, C2): the ordered token vocabulary and per-token
// document counts that every sketch is computed against.
package docfreq

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/standardbeagle/sourcesim/internal/types"
)

// DocFreq is the immutable (N, T, D) triple of spec §3: N distinct
// documents, T the lexicographically ordered vocabulary, D the
// token -> document-frequency map. Position in T is the token's stable
// integer index used by every downstream sketch.
type DocFreq struct {
	N      int
	tokens []string
	index  map[string]int
	df     map[string]int
}

// Builder accumulates (document-key, features) records the way C2
// requires: duplicates within one document count once toward a token's
// document frequency.
type Builder struct {
	docs       map[types.DocKey]struct{}
	tokenDocs  map[string]map[types.DocKey]struct{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		docs:      make(map[types.DocKey]struct{}),
		tokenDocs: make(map[string]map[types.DocKey]struct{}),
	}
}

// Add records one document's feature bag. Calling Add twice for the same
// key with different features is idempotent per key for the purpose of N,
// but token sets are unioned; callers should only Add a key once.
func (b *Builder) Add(key types.DocKey, features []types.Feature) {
	b.docs[key] = struct{}{}
	for _, f := range features {
		set, ok := b.tokenDocs[f.Token]
		if !ok {
			set = make(map[types.DocKey]struct{})
			b.tokenDocs[f.Token] = set
		}
		set[key] = struct{}{}
	}
}

// Build finalizes the (N, T, D) triple. T is the sorted keys of D,
// giving deterministic, bit-for-bit reproducible output for the same
// input multiset (spec §4.2 guarantees).
func (b *Builder) Build() *DocFreq {
	tokens := make([]string, 0, len(b.tokenDocs))
	df := make(map[string]int, len(b.tokenDocs))
	for tok, docs := range b.tokenDocs {
		tokens = append(tokens, tok)
		df[tok] = len(docs)
	}
	sort.Strings(tokens)

	index := make(map[string]int, len(tokens))
	for i, t := range tokens {
		index[t] = i
	}

	return &DocFreq{
		N:      len(b.docs),
		tokens: tokens,
		index:  index,
		df:     df,
	}
}

// Len returns |T|, the vocabulary size.
func (d *DocFreq) Len() int {
	return len(d.tokens)
}

// Index returns the stable position of token in T, or -1 if the token
// was never observed in the corpus (spec §3: "tokens not in T are
// silently dropped").
func (d *DocFreq) Index(token string) int {
	if i, ok := d.index[token]; ok {
		return i
	}
	return -1
}

// Token returns the token at position i in T.
func (d *DocFreq) Token(i int) string {
	return d.tokens[i]
}

// DF returns the document frequency of token, or 0 if unknown.
func (d *DocFreq) DF(token string) int {
	return d.df[token]
}

// jsonDoc is the on-disk shape described in spec §6: docs, tokens (the
// sorted keys of df, serialized explicitly "for reader stability"), df.
type jsonDoc struct {
	Docs   int            `json:"docs"`
	Tokens []string       `json:"tokens"`
	DF     map[string]int `json:"df"`
}

// schema validates the persisted DocFreq document against the shape
// spec §6 documents, the way internal/mcp's tool handlers validate
// payloads against a declared jsonschema.Schema.
var schema = buildSchema()

func buildSchema() *jsonschema.Schema {
	zero := 0.0
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"docs", "tokens", "df"},
		Properties: map[string]*jsonschema.Schema{
			"docs":   {Type: "integer", Minimum: &zero},
			"tokens": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"df":     {Type: "object"},
		},
	}
}

// Save writes the DocFreq as the JSON document of spec §6.
func Save(path string, d *DocFreq) error {
	doc := jsonDoc{Docs: d.N, Tokens: d.tokens, DF: d.df}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal docfreq: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads and validates a DocFreq JSON document, rebuilding the
// token -> index map from the serialized T.
func Load(path string) (*DocFreq, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read docfreq: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode docfreq: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve docfreq schema: %w", err)
	}
	if err := resolved.Validate(raw); err != nil {
		return nil, fmt.Errorf("docfreq %s failed schema validation: %w", path, err)
	}

	var doc jsonDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode docfreq: %w", err)
	}

	tokens := make([]string, len(doc.Tokens))
	copy(tokens, doc.Tokens)
	sort.Strings(tokens)
	index := make(map[string]int, len(tokens))
	for i, t := range tokens {
		index[t] = i
	}

	return &DocFreq{N: doc.Docs, tokens: tokens, index: index, df: doc.DF}, nil
}
