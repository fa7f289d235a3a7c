package duplicates

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"
)

// lexGeneric splits text into raw (un-normalized) tokens without a grammar.
// Whitespace, // line comments and /* */ block comments are dropped;
// strings, numbers, identifiers, multi-character operators and single
// characters become tokens.
func lexGeneric(src []byte) []Token {
	tokens := make([]Token, 0, len(src)/4)
	i, line, lineStart := 0, 1, 0

	for i < len(src) {
		c := src[i]

		if c == '\n' {
			i++
			line++
			lineStart = i
			continue
		}
		if isWhitespace(c) {
			i++
			continue
		}
		if c >= utf8.RuneSelf {
			if r, size := utf8.DecodeRune(src[i:]); unicode.IsSpace(r) {
				i += size
				continue
			}
		}

		// Comments
		if c == '/' && i+1 < len(src) {
			switch src[i+1] {
			case '/':
				for i < len(src) && src[i] != '\n' {
					i++
				}
				continue
			case '*':
				end := bytes.Index(src[i+2:], blockCommentEnd)
				stop := len(src)
				if end >= 0 {
					stop = i + 2 + end + 2
				}
				for j := i; j < stop; j++ {
					if src[j] == '\n' {
						line++
						lineStart = j + 1
					}
				}
				i = stop
				continue
			}
		}

		start, startLine, col := i, line, i-lineStart+1
		var kind TokenKind

		switch {
		case c == '"' || c == '\'' || c == '`':
			i = scanString(src, i, c)
			kind = KindString
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			i = scanNumber(src, i)
			kind = KindNumber
		case isIdentifierStartAt(src, i):
			i = scanIdentifier(src, i)
			kind = KindIdentifier
			if isKeyword(string(src[start:i])) {
				kind = KindKeyword
			}
		default:
			n := operatorLen(src, i)
			if n == 0 {
				_, n = utf8.DecodeRune(src[i:])
			}
			i += n
			kind = KindOperator
		}

		text := string(src[start:i])
		endLine := startLine
		if nl := strings.Count(text, "\n"); nl > 0 {
			endLine += nl
			line = endLine
			lineStart = start + strings.LastIndexByte(text, '\n') + 1
		}

		tokens = append(tokens, Token{
			Kind:      kind,
			Text:      text,
			Line:      startLine,
			Column:    col,
			EndLine:   endLine,
			StartByte: start,
			EndByte:   i,
		})
	}

	return tokens
}

// scanString returns the index just past a string literal starting at i.
// Single and double quoted strings stop at an unescaped newline when unterminated.
func scanString(src []byte, i int, quote byte) int {
	j := i + 1
	for j < len(src) {
		c := src[j]
		switch {
		case c == '\\':
			j += 2
			continue
		case c == quote:
			return j + 1
		case c == '\n' && quote != '`':
			return j
		}
		j++
	}
	return len(src)
}

// scanNumber returns the index just past a numeric literal starting at i.
func scanNumber(src []byte, i int) int {
	hex := i+1 < len(src) && src[i] == '0' && (src[i+1] == 'x' || src[i+1] == 'X')
	j := i
	for j < len(src) {
		c := src[j]
		switch {
		case isDigit(c) || isASCIILetter(c) || c == '_':
			j++
		case c == '.' && j+1 < len(src) && isDigit(src[j+1]):
			j++
		case (c == '+' || c == '-') && !hex && j > i && (src[j-1] == 'e' || src[j-1] == 'E'):
			j++
		default:
			return j
		}
	}
	return j
}

// scanIdentifier returns the index just past an identifier starting at i.
func scanIdentifier(src []byte, i int) int {
	j := i
	for j < len(src) {
		c := src[j]
		if c < utf8.RuneSelf {
			if isIdentifierChar(c) {
				j++
				continue
			}
			return j
		}
		r, size := utf8.DecodeRune(src[j:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return j
		}
		j += size
	}
	return j
}

var blockCommentEnd = []byte("*/")

var operators3 = []string{"<<=", ">>=", "...", "===", "!==", "**=", "&^=", "<=>", "??="}

var operators2 = map[string]bool{
	"==": true, "!=": true, "<=": true, ">=": true, "&&": true, "||": true,
	"<<": true, ">>": true, "+=": true, "-=": true, "*=": true, "/=": true,
	"%=": true, "&=": true, "|=": true, "^=": true, "++": true, "--": true,
	"->": true, "=>": true, "::": true, "..": true, "??": true, ":=": true,
	"<-": true, "**": true, "&^": true, "?.": true,
}

// operatorLen returns the byte length of a multi-character operator at i, or 0.
func operatorLen(src []byte, i int) int {
	if i+3 <= len(src) {
		op3 := string(src[i : i+3])
		for _, op := range operators3 {
			if op3 == op {
				return 3
			}
		}
	}
	if i+2 <= len(src) && operators2[string(src[i:i+2])] {
		return 2
	}
	return 0
}

// keywords is a pre-allocated set of programming language keywords.
// Keywords survive identifier folding.
var keywords = map[string]bool{
	// Go
	"func": true, "return": true, "if": true, "else": true, "for": true,
	"range": true, "switch": true, "case": true, "default": true, "break": true,
	"continue": true, "goto": true, "fallthrough": true, "defer": true,
	"go": true, "select": true, "chan": true, "map": true, "struct": true,
	"interface": true, "type": true, "var": true, "const": true, "package": true,
	"import": true, "nil": true, "true": true, "false": true,
	// Rust
	"fn": true, "let": true, "mut": true, "match": true, "loop": true,
	"while": true, "impl": true, "trait": true, "mod": true, "use": true,
	"pub": true, "crate": true, "self": true, "Self": true, "where": true,
	"async": true, "await": true, "static": true, "extern": true, "unsafe": true,
	"enum": true, "move": true, "ref": true, "as": true, "in": true,
	// Python
	"def": true, "class": true, "elif": true, "try": true, "except": true,
	"finally": true, "with": true, "lambda": true, "yield": true, "assert": true,
	"raise": true, "pass": true, "del": true, "global": true, "nonlocal": true,
	"and": true, "or": true, "not": true, "is": true, "from": true,
	// JavaScript/TypeScript
	"function": true, "new": true, "this": true, "super": true,
	"extends": true, "implements": true, "export": true, "throw": true,
	"catch": true, "instanceof": true, "typeof": true, "void": true,
	"delete": true, "debugger": true,
	// Java, C family, Swift, Kotlin, Ruby
	"public": true, "private": true, "protected": true, "final": true,
	"abstract": true, "override": true, "do": true, "then": true, "end": true,
	"namespace": true, "using": true, "template": true, "typename": true,
	"sizeof": true, "val": true, "object": true, "when": true, "guard": true,
	"unless": true, "until": true, "begin": true, "rescue": true,
	// Common
	"null": true, "undefined": true,
}

// isKeyword checks if a token is a programming language keyword.
func isKeyword(token string) bool {
	return keywords[token]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentifierChar(c byte) bool {
	return isASCIILetter(c) || isDigit(c) || c == '_' || c == '$'
}

func isIdentifierStartAt(src []byte, i int) bool {
	c := src[i]
	if c < utf8.RuneSelf {
		return isASCIILetter(c) || c == '_' || c == '$'
	}
	r, _ := utf8.DecodeRune(src[i:])
	return unicode.IsLetter(r)
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v'
}
