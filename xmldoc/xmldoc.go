// Package xmldoc holds documents extracted from the console as parsed XML
// trees and evaluates namespaced field paths against them.
//
// Namespace declarations are kept exactly as the console rendered them; no
// prefix is rewritten or cleaned up during parsing.
package xmldoc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// ErrEmpty is returned when the raw content is blank.
var ErrEmpty = errors.New("xmldoc: empty document")

// ErrNoMatch is returned when a field path selects no node.
var ErrNoMatch = errors.New("xmldoc: no node matches field path")

// Document is one extracted document: its identifier in the collection and
// its parsed tree. It is immutable once parsed.
type Document struct {
	ID   string
	root *xmlquery.Node
	size int
}

// Parse parses raw as XML and binds it to id.
func Parse(id, raw string) (Document, error) {
	if strings.TrimSpace(raw) == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmpty, id)
	}
	root, err := xmlquery.Parse(strings.NewReader(raw))
	if err != nil {
		return Document{}, fmt.Errorf("xmldoc: parse %s: %w", id, err)
	}
	if root.SelectElement("*") == nil {
		return Document{}, fmt.Errorf("xmldoc: parse %s: no root element", id)
	}
	return Document{ID: id, root: root, size: len(raw)}, nil
}

// Size is the length in bytes of the raw text the document was parsed from.
func (d Document) Size() int { return d.size }

// Root returns the local name of the document element.
func (d Document) Root() string {
	if d.root == nil {
		return ""
	}
	if el := d.root.SelectElement("*"); el != nil {
		return el.Data
	}
	return ""
}

// Field is a compiled field path with its namespace binding.
type Field struct {
	path string
	expr *xpath.Expr
}

// CompileField compiles path, binding prefix to uri. An empty prefix
// compiles the path without namespace resolution.
func CompileField(path, prefix, uri string) (Field, error) {
	if strings.TrimSpace(path) == "" {
		return Field{}, errors.New("xmldoc: empty field path")
	}
	var (
		expr *xpath.Expr
		err  error
	)
	if prefix != "" {
		expr, err = xpath.CompileWithNS(path, map[string]string{prefix: uri})
	} else {
		expr, err = xpath.Compile(path)
	}
	if err != nil {
		return Field{}, fmt.Errorf("xmldoc: compile %q: %w", path, err)
	}
	return Field{path: path, expr: expr}, nil
}

// MustCompileField is CompileField that panics on error. For tests and
// package-level defaults.
func MustCompileField(path, prefix, uri string) Field {
	f, err := CompileField(path, prefix, uri)
	if err != nil {
		panic(err)
	}
	return f
}

// Path returns the field path as written.
func (f Field) Path() string { return f.path }

// Value evaluates the field against d and returns the text of the first
// matching node. The text is the node's leading character data, as in an
// ElementTree .text lookup, so nested markup after it is ignored.
func (f Field) Value(d Document) (string, error) {
	if d.root == nil || f.expr == nil {
		return "", fmt.Errorf("%w: %s", ErrNoMatch, f.path)
	}
	n := xmlquery.QuerySelector(d.root, f.expr)
	if n == nil {
		return "", fmt.Errorf("%w: %s in %s", ErrNoMatch, f.path, d.ID)
	}
	return leadingText(n), nil
}

func leadingText(n *xmlquery.Node) string {
	switch n.Type {
	case xmlquery.AttributeNode, xmlquery.TextNode, xmlquery.CharDataNode:
		return n.InnerText()
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.TextNode && c.Type != xmlquery.CharDataNode {
			break
		}
		b.WriteString(c.Data)
	}
	return b.String()
}
