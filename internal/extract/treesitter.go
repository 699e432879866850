package extract

import (
	"fmt"
	"path/filepath"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/standardbeagle/sourcesim/internal/types"
)

// goQuery and pythonQuery capture every identifier-like leaf plus the
// names of function/method declarations, which is all the feature-weighting
// model needs: a bag of subword tokens per document (spec §3). The
// enclosing @func node is captured as well but is not turned into tokens.
const (
	goQuery = `
		(identifier) @id
		(field_identifier) @id
		(type_identifier) @id
		(function_declaration name: (identifier) @func.name) @func
		(method_declaration name: (field_identifier) @func.name) @func
	`
	goFuncQuery = `
		(function_declaration name: (identifier) @name) @func
		(method_declaration name: (field_identifier) @name) @func
	`
	pythonQuery = `
		(identifier) @id
		(function_definition name: (identifier) @func.name) @func
	`
	pythonFuncQuery = `
		(function_definition name: (identifier) @name) @func
	`
)

type tsLang struct {
	ext       string
	parser    *tree_sitter.Parser
	language  *tree_sitter.Language
	query     *tree_sitter.Query
	funcQuery *tree_sitter.Query
}

// treeSitterExtractor extracts identifier-token bags for Go and Python,
// grounded in internal/parser/parser_language_setup.go's per-extension
// parser+query registration.
type treeSitterExtractor struct {
	byExt map[string]*tsLang
}

func newTreeSitterExtractor() (*treeSitterExtractor, error) {
	e := &treeSitterExtractor{byExt: make(map[string]*tsLang)}

	if err := e.register(".go", tree_sitter_go.Language(), goQuery, goFuncQuery); err != nil {
		return nil, err
	}
	if err := e.register(".py", tree_sitter_python.Language(), pythonQuery, pythonFuncQuery); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *treeSitterExtractor) register(ext string, langPtr unsafe.Pointer, queryStr, funcQueryStr string) error {
	language := tree_sitter.NewLanguage(langPtr)
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(language); err != nil {
		return fmt.Errorf("set language for %s: %w", ext, err)
	}
	query, queryErr := tree_sitter.NewQuery(language, queryStr)
	if queryErr != nil {
		return fmt.Errorf("compile query for %s: %w", ext, queryErr)
	}
	funcQuery, funcErr := tree_sitter.NewQuery(language, funcQueryStr)
	if funcErr != nil {
		return fmt.Errorf("compile func query for %s: %w", ext, funcErr)
	}
	e.byExt[ext] = &tsLang{ext: ext, parser: parser, language: language, query: query, funcQuery: funcQuery}
	return nil
}

func (e *treeSitterExtractor) Supports(path string) bool {
	_, ok := e.byExt[filepath.Ext(path)]
	return ok
}

func (e *treeSitterExtractor) Extract(path string, content []byte) ([]types.Feature, error) {
	lang, ok := e.byExt[filepath.Ext(path)]
	if !ok {
		return nil, fmt.Errorf("unsupported extension %s", filepath.Ext(path))
	}
	tree := lang.parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: tree-sitter returned no tree", path)
	}
	defer tree.Close()

	b := newBag()
	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	matches := cursor.Matches(lang.query, tree.RootNode(), content)
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, c := range match.Captures {
			if lang.query.CaptureNames()[c.Index] == "func" {
				continue
			}
			name := string(content[c.Node.StartByte():c.Node.EndByte()])
			b.addIdentifier(name)
		}
	}
	return b.features(), nil
}

// Functions locates function/method declarations for the
// function-granularity mode of spec §9. For Go these are always top-level;
// for Python every function_definition matches, including class methods
// and functions nested inside other functions.
func (e *treeSitterExtractor) Functions(path string, content []byte) ([]FuncBoundary, error) {
	lang, ok := e.byExt[filepath.Ext(path)]
	if !ok {
		return nil, fmt.Errorf("unsupported extension %s", filepath.Ext(path))
	}
	tree := lang.parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: tree-sitter returned no tree", path)
	}
	defer tree.Close()

	var out []FuncBoundary
	cursor := tree_sitter.NewQueryCursor()
	defer cursor.Close()

	matches := cursor.Matches(lang.funcQuery, tree.RootNode(), content)
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		var fb FuncBoundary
		for _, c := range match.Captures {
			switch lang.funcQuery.CaptureNames()[c.Index] {
			case "name":
				fb.Name = string(content[c.Node.StartByte():c.Node.EndByte()])
			case "func":
				fb.Start = int(c.Node.StartByte())
				fb.End = int(c.Node.EndByte())
				fb.Line = int(c.Node.StartPosition().Row) + 1
			}
		}
		if fb.Name != "" {
			out = append(out, fb)
		}
	}
	return out, nil
}
