// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package htmlsel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestQuerySelector(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"attr only", Query{Element: "a", Attr: "href"}, `a[href]`},
		{"contains", Query{Element: "a", Attr: "href", Contains: "scholar_url"}, `a[href*="scholar_url"]`},
		{"id", Query{Element: "iframe", ID: "pdf", Attr: "src"}, `iframe[id="pdf"][src]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.Selector())
		})
	}
}

func TestAllDocumentOrder(t *testing.T) {
	doc, err := ParseString(`<p><a href="/x?m=1">1</a><a href="/y">no</a><a href="/z?m=2">2</a><a>none</a></p>`)
	require.NoError(t, err)

	got := doc.All(Query{Element: "a", Attr: "href", Contains: "?m="})
	assert.Equal(t, []string{"/x?m=1", "/z?m=2"}, got)
}

func TestFirstByID(t *testing.T) {
	doc, err := ParseString(`<iframe id="other" src="a.pdf"></iframe><iframe id="pdf" src="//cdn.example.org/b.pdf"></iframe>`)
	require.NoError(t, err)

	src, ok := doc.First(Query{Element: "iframe", ID: "pdf", Attr: "src"})
	require.True(t, ok)
	assert.Equal(t, "//cdn.example.org/b.pdf", src)

	_, ok = doc.First(Query{Element: "embed", ID: "pdf", Attr: "src"})
	assert.False(t, ok)
}

func TestMalformedMarkupRecovers(t *testing.T) {
	doc, err := ParseString(`<div><a href="keep?scholar_url=1">x<table><a href="b`)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep?scholar_url=1"}, doc.All(Query{Element: "a", Attr: "href", Contains: "scholar_url"}))
}

func TestParseReadError(t *testing.T) {
	_, err := Parse(failingReader{})
	assert.ErrorIs(t, err, ErrParse)
}
