// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// DefaultOpenAlexURL is the OpenAlex works endpoint.
const DefaultOpenAlexURL = "https://api.openalex.org/works/"

// openAlexWork captures the fields we need from an OpenAlex work record.
type openAlexWork struct {
	BestOALocation *openAlexLocation `json:"best_oa_location"`
}

// openAlexLocation represents an open-access location in the OpenAlex response.
type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
}

// OpenAlexMirror looks the DOI up in OpenAlex and uses the best open-access
// location's PDF URL.
type OpenAlexMirror struct {
	// Base is the works endpoint; DefaultOpenAlexURL when empty.
	Base string

	// Mailto joins the OpenAlex polite pool when set.
	Mailto string
}

func (m OpenAlexMirror) Name() string { return string(types.MirrorOpenAlex) }

// LookupURL returns the works URL for the citation's DOI.
func (m OpenAlexMirror) LookupURL(c *types.Citation) (string, error) {
	if !c.HasDOI() {
		return "", errors.New("citation has no doi")
	}
	base := m.Base
	if base == "" {
		base = DefaultOpenAlexURL
	}
	u := base + "https://doi.org/" + c.DOI
	if m.Mailto != "" {
		u += "?mailto=" + url.QueryEscape(m.Mailto)
	}
	return u, nil
}

// Target decodes the work record and returns its open-access PDF URL.
func (m OpenAlexMirror) Target(resp *http.Response) (string, error) {
	var work openAlexWork
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return "", fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	if work.BestOALocation == nil || work.BestOALocation.PDFURL == "" {
		return "", ErrNoTarget
	}
	return absoluteURL(resp, work.BestOALocation.PDFURL)
}
