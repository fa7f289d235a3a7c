package duplicates

import (
	"fmt"
	"strings"
)

// Normalization selects how token text is rewritten before hashing.
type Normalization uint8

const (
	// Exact keeps token text verbatim; only whitespace and comments are dropped.
	Exact Normalization = iota
	// IdentifierFold replaces identifiers and literals with placeholders of
	// the same kind so renamed copies still match.
	IdentifierFold
)

// Placeholder texts used by IdentifierFold.
const (
	placeholderIdentifier = "$id"
	placeholderString     = "$str"
	placeholderNumber     = "$num"
)

// ParseNormalization parses a level name. The empty string selects the default.
func ParseNormalization(s string) (Normalization, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return Exact, nil
	case "", "identifier-fold", "identifier_fold", "fold":
		return IdentifierFold, nil
	default:
		return 0, fmt.Errorf("%w: unknown normalization %q", ErrConfigurationInvalid, s)
	}
}

// String returns the string representation.
func (n Normalization) String() string {
	switch n {
	case Exact:
		return "exact"
	case IdentifierFold:
		return "identifier-fold"
	default:
		return fmt.Sprintf("normalization(%d)", uint8(n))
	}
}

// MarshalText encodes the level by name.
func (n Normalization) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText decodes a level name.
func (n *Normalization) UnmarshalText(text []byte) error {
	v, err := ParseNormalization(string(text))
	if err != nil {
		return err
	}
	*n = v
	return nil
}

// apply returns the hashed text of a token of the given kind.
func (n Normalization) apply(kind TokenKind, text string) string {
	if n != IdentifierFold {
		return text
	}
	switch kind {
	case KindIdentifier:
		return placeholderIdentifier
	case KindString:
		return placeholderString
	case KindNumber:
		return placeholderNumber
	default:
		return text
	}
}
