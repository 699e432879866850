package extract

import (
	"fmt"
	"path/filepath"

	"github.com/t14raptor/go-fast/ast"
	"github.com/t14raptor/go-fast/parser"

	"github.com/standardbeagle/sourcesim/internal/types"
)

// goFastExtractor extracts identifier-token bags for JavaScript and
// TypeScript source using go-fast's AST, grounded in
// internal/analysis/javascript_gofast_analyzer.go's hand-rolled visitor
// (go-fast predates a generic ast.Walk, so the teacher walks statement
// kinds explicitly — this extractor does the same, reduced to the
// declaration-level names that matter for a feature bag: functions,
// classes, methods, fields and variables, including those declared inside
// function bodies, blocks and if-branches).
type goFastExtractor struct{}

func newGoFastExtractor() *goFastExtractor {
	return &goFastExtractor{}
}

func (g *goFastExtractor) Supports(path string) bool {
	switch filepath.Ext(path) {
	case ".js", ".jsx", ".ts", ".tsx", ".mjs":
		return true
	default:
		return false
	}
}

func (g *goFastExtractor) Extract(path string, content []byte) ([]types.Feature, error) {
	program, err := parser.ParseFile(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	b := newBag()
	for _, stmt := range program.Body {
		visitStmt(stmt.Stmt, b)
	}
	return b.features(), nil
}

func visitStmt(stmt ast.Stmt, b *bag) {
	if stmt == nil {
		return
	}
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		if s.Function != nil && s.Function.Name != nil {
			b.addIdentifier(s.Function.Name.Name)
			if s.Function.Body != nil {
				for _, bodyStmt := range s.Function.Body.List {
					visitStmt(bodyStmt.Stmt, b)
				}
			}
		}

	case *ast.ClassDeclaration:
		if s.Class != nil && s.Class.Name != nil {
			b.addIdentifier(s.Class.Name.Name)
		}
		if s.Class != nil {
			for _, element := range s.Class.Body {
				visitClassElement(element.Element, b)
			}
		}

	case *ast.VariableDeclaration:
		for _, decl := range s.List {
			if decl.Target == nil || decl.Target.Target == nil {
				continue
			}
			if ident, ok := decl.Target.Target.(*ast.Identifier); ok {
				b.addIdentifier(ident.Name)
			}
		}

	case *ast.BlockStatement:
		for _, bodyStmt := range s.List {
			visitStmt(bodyStmt.Stmt, b)
		}

	case *ast.IfStatement:
		if s.Consequent.Stmt != nil {
			visitStmt(s.Consequent.Stmt, b)
		}
		if s.Alternate != nil && s.Alternate.Stmt != nil {
			visitStmt(s.Alternate.Stmt, b)
		}
	}
}

func visitClassElement(element ast.Element, b *bag) {
	if element == nil {
		return
	}
	switch e := element.(type) {
	case *ast.MethodDefinition:
		if e.Key != nil && e.Key.Expr != nil {
			if ident, ok := e.Key.Expr.(*ast.Identifier); ok {
				b.addIdentifier(ident.Name)
			}
		}
	case *ast.FieldDefinition:
		if e.Key != nil && e.Key.Expr != nil {
			if ident, ok := e.Key.Expr.(*ast.Identifier); ok {
				b.addIdentifier(ident.Name)
			}
		}
	}
}
