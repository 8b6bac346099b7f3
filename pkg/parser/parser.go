// Package parser implements : a recursive-descent grammar over
// the full surface language (top-level items, statements, a ten-level
// expression precedence chain, generics), with error recovery that
// synchronizes on the next statement/brace boundary instead of aborting on
// the first failure.
//
// Grounded on pkg/vm/parsing.go (the one Parser in the
// teacher repo that actually finishes its FromAST pass; pkg/jack/parsing.go
// leaves its own FromAST unimplemented) using github.com/prataprc/goparsec
// throughout: pc.NewAST builds the traversable tree, pc.Atom/pc.Token are
// the lexical leaves, grammar.And/OrdChoice/Kleene/Many compose productions, and
// FromAST walks the resulting pc.Queryable with one HandleX method per node
// kind, exactly as pkg/vm/parsing.go does for its flatter VM opcode grammar.
package parser

import (
	"fmt"
	"io"
	"os"

	pc "github.com/prataprc/goparsec"

	"github.com/kestrel-lang/kestrelc/pkg/ast"
	"github.com/kestrel-lang/kestrelc/pkg/token"
)

// Parser reads one translation unit from an io.Reader and produces a
// pkg/ast.TranslationUnit plus the position cache needed to render
// diagnostics against it later in the pipeline.
type Parser struct {
	file   string
	reader io.Reader
}

// NewParser mirrors NewParser(r io.Reader) Parser, adding the
// source file name the reference implementation never needed (Jack/VM sources
// were always single-module) but every diagnostic rendered from a multi-file
// build requires.
func NewParser(file string, r io.Reader) Parser {
	return Parser{file: file, reader: r}
}

// Parse runs the full Text -> AST -> typed-AST pipeline. It returns the
// parsed TranslationUnit, the PositionCache backing its node positions, the
// batch of recoverable ParseErrors encountered, and a non-nil error only
// when the input could not be scanned at all. A parse is accepted only if
// this batch is empty and the whole input was consumed: trailing content
// pRecover couldn't even resynchronize on (no following ';', '{', or '}')
// is reported here as one more ParseError rather than silently dropped.
func (p *Parser) Parse() (ast.TranslationUnit, *token.PositionCache, []ParseError, error) {
	content, err := io.ReadAll(p.reader)
	if err != nil {
		return ast.TranslationUnit{}, nil, nil, fmt.Errorf("cannot read from 'io.Reader': %w", err)
	}

	root, ok, consumed := p.fromSource(content)
	if !ok {
		return ast.TranslationUnit{}, nil, nil, fmt.Errorf("%s: failed to parse AST from input content", p.file)
	}

	cache := token.NewPositionCache(p.file, content)
	tu, errs := ConvertTranslationUnit(root, p.file, content, cache)
	if !consumed {
		line, col := cache.LineCol(len(content))
		errs = append(errs, ParseError{
			File:    p.file,
			Line:    line,
			Col:     col,
			Excerpt: cache.LineText(len(content)),
			Message: "input was not fully consumed: trailing content after the last recognized item",
		})
	}
	return tu, cache, errs, nil
}

// fromSource scans the input with the package grammar and returns the raw
// traversable AST, whether a root was produced at all, and whether the
// scanner reached end-of-input afterward — the acceptance rule needs both,
// not just the first. Honors the same debug env vars as the reference
// implementation's FromSource (PARSEC_DEBUG/EXPORT_AST/PRINT_AST).
func (p *Parser) fromSource(source []byte) (root pc.Queryable, ok bool, consumed bool) {
	if os.Getenv("PARSEC_DEBUG") != "" {
		grammar.SetDebug()
	}

	root, remainder := grammar.Parsewith(pProgram, pc.NewScanner(source))
	atEndNode, _ := pc.End()(remainder)

	if os.Getenv("EXPORT_AST") != "" {
		if file, ferr := os.Create(fmt.Sprintf("%s/debug.ast.dot", os.Getenv("DEBUG_FOLDER"))); ferr == nil {
			defer file.Close()
			file.Write([]byte(grammar.Dotstring(`"Kestrel AST"`)))
		}
	}
	if os.Getenv("PRINT_AST") != "" {
		grammar.Prettyprint()
	}

	return root, root != nil, atEndNode != nil
}
