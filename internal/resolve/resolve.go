// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns alert redirect links into publisher URLs and DOIs.
// Every function here is pure: no network access.
package resolve

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

var (
	// ErrMalformedLink means the raw link is not a parseable URL.
	ErrMalformedLink = errors.New("malformed link")

	// ErrMissingURLParam means the link has no url query parameter.
	ErrMissingURLParam = errors.New("link has no url parameter")

	// ErrNoDOI means no DOI could be found in the publisher URL.
	ErrNoDOI = errors.New("no doi in url")
)

// urlParam is the query parameter of an alert redirect that holds the target.
const urlParam = "url"

// doiPattern matches a DOI embedded anywhere in a URL: "10." followed by a
// registrant code of at least four digits, optional dotted sub-codes, a
// slash, and a suffix that stops at %, ", #, ? or whitespace.
var doiPattern = regexp.MustCompile(`(?i)(10[.][0-9]{4,}(?:[.][0-9]+)*/[^%"#?\s]+)`)

// doiNoise matches publisher path and query fragments that are not part of
// the DOI suffix.
var doiNoise = regexp.MustCompile(`/full|/abstract|\.pdf|&type=printable`)

// doiShape is the minimal shape a stripped DOI must keep.
var doiShape = regexp.MustCompile(`^10[.][0-9]{4,}(?:[.][0-9]+)*/.+$`)

// PublisherURL returns the value of the url query parameter of raw. Only the
// url pair has to decode; other parameters may carry bad escapes or bare
// semicolons, and a semicolon inside the target (";jsessionid=") is kept.
func PublisherURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedLink, err)
	}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err != nil || k != urlParam {
			continue
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedLink, err)
		}
		if v == "" {
			return "", ErrMissingURLParam
		}
		return v, nil
	}
	return "", ErrMissingURLParam
}

// DOI extracts the first DOI from publisherURL and strips publisher noise
// (/full, /abstract, .pdf, &type=printable). Stripping repeats until nothing
// changes, so DOI applied to its own output returns the same string.
func DOI(publisherURL string) (string, error) {
	m := doiPattern.FindStringSubmatch(publisherURL)
	if m == nil {
		return "", ErrNoDOI
	}
	doi := m[1]
	for {
		stripped := doiNoise.ReplaceAllString(doi, "")
		if stripped == doi {
			break
		}
		doi = stripped
	}
	if !doiShape.MatchString(doi) {
		return "", fmt.Errorf("%w: %q reduces to %q", ErrNoDOI, m[1], doi)
	}
	return doi, nil
}

// NewCitation builds a citation for raw with the given id. The citation is
// always returned; the error names the first resolution step that failed.
// Only a publisher URL failure is recorded in Failure.
func NewCitation(id, messageID, raw string) (*types.Citation, error) {
	c := &types.Citation{
		ID:           id,
		MessageID:    messageID,
		RawLink:      raw,
		Status:       types.StatusPending,
		DiscoveredAt: time.Now().UTC(),
	}

	pub, err := PublisherURL(raw)
	if err != nil {
		c.Failure = err.Error()
		return c, err
	}
	c.PublisherURL = pub

	doi, err := DOI(pub)
	if err != nil {
		return c, err
	}
	c.DOI = doi
	return c, nil
}
