package duplicates

import (
	"fmt"

	"github.com/panbanda/cda/pkg/parser"
	"github.com/panbanda/cda/pkg/source"
)

// SourceFile is one file of either tree. Path is relative to its tree root.
// Content is either held in memory or read on demand from a ContentSource
// by the worker that tokenizes the file.
type SourceFile struct {
	Path     string
	Side     Side
	Language parser.Language

	content []byte
	src     source.ContentSource
	srcPath string
}

// NewSourceFile creates a file with in-memory content. The language is
// detected from the path.
func NewSourceFile(path string, side Side, content []byte) SourceFile {
	return SourceFile{
		Path:     path,
		Side:     side,
		Language: parser.DetectLanguage(path),
		content:  content,
	}
}

// LazySourceFile creates a file whose content is read from src when needed.
// src is asked for path itself; use a source rooted at the tree root.
func LazySourceFile(path string, side Side, src source.ContentSource) SourceFile {
	return SourceFile{
		Path:     path,
		Side:     side,
		Language: parser.DetectLanguage(path),
		src:      src,
		srcPath:  path,
	}
}

// WithLanguage returns a copy of f with the language overridden.
func (f SourceFile) WithLanguage(lang parser.Language) SourceFile {
	f.Language = lang
	return f
}

// Content returns the file text, reading it from the source if necessary.
// Read failures wrap ErrUnreadableSource.
func (f SourceFile) Content() ([]byte, error) {
	if f.content != nil || f.src == nil {
		return f.content, nil
	}
	data, err := f.src.Read(f.srcPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableSource, err)
	}
	return data, nil
}
