// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/scholar-harvest/internal/htmlsel"
	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// ErrNoTarget means a mirror response did not reveal a PDF location.
var ErrNoTarget = errors.New("mirror response has no pdf target")

// DefaultMirrorURL is the iframe mirror base the publisher URL is appended to.
const DefaultMirrorURL = "http://sci-hub.bz/"

// Mirror resolves a citation without a direct PDF link to a downloadable URL
// in one hop: a lookup request, then a parse of its response.
type Mirror interface {
	// Name labels the mirror in logs.
	Name() string

	// LookupURL returns the URL of the lookup request for c.
	LookupURL(c *types.Citation) (string, error)

	// Target extracts the absolute PDF URL from a lookup response.
	Target(resp *http.Response) (string, error)
}

// viewerQuery finds the embedded PDF viewer on a mirror page.
var viewerQuery = htmlsel.Query{Element: "iframe", ID: "pdf", Attr: "src"}

// IframeMirror requests <Base><publisherURL> and reads the PDF location from
// the page's embedded viewer.
type IframeMirror struct {
	Base string
}

func (m IframeMirror) Name() string { return string(types.MirrorIframe) }

// LookupURL concatenates the mirror base and the publisher URL verbatim.
func (m IframeMirror) LookupURL(c *types.Citation) (string, error) {
	if !c.HasPublisherURL() {
		return "", errors.New("citation has no publisher url")
	}
	base := m.Base
	if base == "" {
		base = DefaultMirrorURL
	}
	return base + c.PublisherURL, nil
}

// Target parses the page and returns the viewer source. Protocol-relative and
// relative sources are resolved against the page URL.
func (m IframeMirror) Target(resp *http.Response) (string, error) {
	doc, err := htmlsel.Parse(resp.Body)
	if err != nil {
		return "", err
	}
	src, ok := doc.First(viewerQuery)
	if !ok || src == "" {
		return "", ErrNoTarget
	}
	return absoluteURL(resp, src)
}

// absoluteURL resolves ref against the URL of the request that produced resp.
func absoluteURL(resp *http.Response, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: bad target %q: %v", ErrNoTarget, ref, err)
	}
	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL.ResolveReference(u)
	} else if u.Scheme == "" {
		u.Scheme = "http"
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: target %q has no host", ErrNoTarget, ref)
	}
	return u.String(), nil
}
