// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package body extracts scholar alert links from HTML message bodies.
package body

import (
	"github.com/pdiddy/scholar-harvest/internal/htmlsel"
)

// Marker is the substring that identifies an alert redirect link.
const Marker = "scholar_url"

// linkQuery selects anchor hrefs carrying the alert marker.
var linkQuery = htmlsel.Query{Element: "a", Attr: "href", Contains: Marker}

// Result is the outcome of parsing one message body.
type Result struct {
	Links []string

	// Err is set when the body could not be parsed at all. Links is empty then.
	Err error
}

// Parse collects every marked anchor href in document order.
func Parse(html string) Result {
	doc, err := htmlsel.ParseString(html)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Links: doc.All(linkQuery)}
}

// Links is Parse without the failure reason.
func Links(html string) []string {
	return Parse(html).Links
}
