// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package htmlsel provides small typed queries over HTML documents so callers
// can describe what they look for (an element, an attribute, a marker
// substring, an id) without depending on the HTML library.
package htmlsel

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrParse is returned when a document cannot be parsed at all.
var ErrParse = errors.New("unparseable html")

// Query selects attribute values from elements.
type Query struct {
	// Element is the tag name, e.g. "a" or "iframe".
	Element string

	// ID restricts matches to the element with this id attribute.
	ID string

	// Attr is the attribute whose value is returned.
	Attr string

	// Contains keeps only values containing this literal substring.
	Contains string
}

// Selector returns the CSS selector equivalent of q.
func (q Query) Selector() string {
	var b strings.Builder
	b.WriteString(q.Element)
	if q.ID != "" {
		fmt.Fprintf(&b, "[id=%q]", q.ID)
	}
	if q.Contains != "" {
		fmt.Fprintf(&b, "[%s*=%q]", q.Attr, q.Contains)
	} else {
		fmt.Fprintf(&b, "[%s]", q.Attr)
	}
	return b.String()
}

// Document is a parsed HTML document.
type Document struct {
	doc *goquery.Document
}

// Parse reads an HTML document from r. The HTML5 parser recovers from most
// malformed markup, so only read failures surface as ErrParse.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &Document{doc: doc}, nil
}

// ParseString parses an in-memory HTML string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// All returns every matching attribute value in document order.
func (d *Document) All(q Query) []string {
	var out []string
	d.doc.Find(q.Selector()).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(q.Attr); ok {
			out = append(out, v)
		}
	})
	return out
}

// First returns the first matching attribute value.
func (d *Document) First(q Query) (string, bool) {
	return d.doc.Find(q.Selector()).First().Attr(q.Attr)
}
