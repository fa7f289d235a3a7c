package duplicates

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/cda/pkg/parser"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Tokenizer turns file text into a normalized token sequence.
// It is a pure function of its input and normalization level and is safe
// for concurrent use.
type Tokenizer struct {
	level Normalization
}

// NewTokenizer creates a tokenizer for the given normalization level.
func NewTokenizer(level Normalization) *Tokenizer {
	return &Tokenizer{level: level}
}

// Level returns the normalization level.
func (t *Tokenizer) Level() Normalization {
	return t.level
}

// Tokenize lexes text written in lang. Languages with a tree-sitter grammar
// are lexed from syntax tree leaves; everything else uses a generic scanner.
// Fails with ErrUnreadableSource for text that is not UTF-8 or contains NUL bytes.
func (t *Tokenizer) Tokenize(text []byte, lang parser.Language) ([]Token, error) {
	return t.TokenizeContext(context.Background(), nil, text, lang)
}

// TokenizeContext is Tokenize with a caller-owned parser (may be nil) and
// a context that aborts long parses.
func (t *Tokenizer) TokenizeContext(ctx context.Context, psr *parser.Parser, text []byte, lang parser.Language) ([]Token, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}

	offset := 0
	if bytes.HasPrefix(text, utf8BOM) {
		text = text[len(utf8BOM):]
		offset = len(utf8BOM)
	}

	var (
		tokens []Token
		ok     bool
	)
	if _, err := parser.GetTreeSitterLanguage(lang); err == nil {
		if psr == nil {
			psr = parser.New()
			defer psr.Close()
		}
		tokens, ok = lexTree(ctx, psr, text, lang)
		if !ok && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if !ok {
		tokens = lexGeneric(text)
	}

	for i := range tokens {
		tokens[i].Text = t.level.apply(tokens[i].Kind, tokens[i].Text)
		tokens[i].StartByte += offset
		tokens[i].EndByte += offset
	}
	return tokens, nil
}

// checkText rejects binary or undecodable input.
func checkText(text []byte) error {
	if bytes.IndexByte(text, 0) >= 0 {
		return fmt.Errorf("%w: contains NUL bytes", ErrUnreadableSource)
	}
	if !utf8.Valid(text) {
		return fmt.Errorf("%w: not valid UTF-8", ErrUnreadableSource)
	}
	return nil
}

// lexTree collects tokens from the leaves of a syntax tree. Comments are
// dropped, string and number literals are taken whole, and zero-width
// (error recovery) nodes are skipped. ok is false when no tree was produced.
func lexTree(ctx context.Context, psr *parser.Parser, text []byte, lang parser.Language) (tokens []Token, ok bool) {
	result, err := psr.Parse(ctx, text, lang, "")
	if err != nil || result.Tree == nil {
		return nil, false
	}
	defer result.Close()

	tokens = make([]Token, 0, len(text)/4)
	parser.WalkTyped(result.Tree.RootNode(), text, func(node *sitter.Node, nodeType string, source []byte) bool {
		if strings.Contains(nodeType, "comment") {
			return false
		}
		start, end := int(node.StartByte()), int(node.EndByte())
		if start >= end || end > len(source) {
			return false
		}

		if node.IsNamed() {
			if kind, isLit := literalKind(nodeType); isLit {
				tokens = append(tokens, nodeToken(node, kind, source))
				return false
			}
		}
		if node.ChildCount() > 0 {
			return true
		}

		raw := source[start:end]
		if len(bytes.TrimSpace(raw)) == 0 {
			return false
		}
		tokens = append(tokens, nodeToken(node, leafKind(node.IsNamed(), nodeType, raw), source))
		return false
	})
	return tokens, true
}

func nodeToken(node *sitter.Node, kind TokenKind, source []byte) Token {
	sp, ep := node.StartPoint(), node.EndPoint()
	endLine := int(ep.Row) + 1
	// A token ending with a newline ends on the previous line.
	if ep.Column == 0 && ep.Row > sp.Row {
		endLine--
	}
	return Token{
		Kind:      kind,
		Text:      string(source[node.StartByte():node.EndByte()]),
		Line:      int(sp.Row) + 1,
		Column:    int(sp.Column) + 1,
		EndLine:   endLine,
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
	}
}

var (
	numberMarkers = []string{
		"number", "integer", "float", "int_literal", "imaginary",
		"real_literal", "hex_literal", "oct_literal", "bin_literal",
	}
	stringMarkers = []string{
		"string", "char", "rune_literal", "heredoc", "regex",
	}
)

// literalKind classifies named literal nodes across grammars.
func literalKind(nodeType string) (TokenKind, bool) {
	if strings.Contains(nodeType, "bool") {
		return 0, false
	}
	for _, m := range numberMarkers {
		if strings.Contains(nodeType, m) {
			return KindNumber, true
		}
	}
	for _, m := range stringMarkers {
		if strings.Contains(nodeType, m) {
			return KindString, true
		}
	}
	return 0, false
}

// leafKind classifies a non-literal leaf.
func leafKind(named bool, nodeType string, raw []byte) TokenKind {
	if named {
		switch {
		case strings.Contains(nodeType, "identifier"),
			nodeType == "name", nodeType == "constant", nodeType == "word":
			return KindIdentifier
		default:
			return KindKeyword
		}
	}
	r, _ := utf8.DecodeRune(raw)
	if unicode.IsLetter(r) || r == '_' {
		return KindKeyword
	}
	return KindOperator
}

// countNonBlankLines counts lines containing anything besides whitespace.
func countNonBlankLines(text []byte) int {
	n := 0
	for len(text) > 0 {
		line := text
		if i := bytes.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i], text[i+1:]
		} else {
			text = nil
		}
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}
