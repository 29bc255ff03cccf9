// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reference fetches formatted bibliographic references for DOIs from
// a citation formatting service. Failures are soft: callers keep the
// citation without a reference.
package reference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// ErrUnavailable wraps every failure to obtain a reference.
var ErrUnavailable = errors.New("reference unavailable")

const (
	// DefaultURL is the CrossCite formatting endpoint.
	DefaultURL = "https://citation.crosscite.org/format"

	// DefaultStyle is the CSL style requested when none is configured.
	DefaultStyle = "entomologia-experimentalis-et-applicata"

	// DefaultLang is the locale requested when none is configured.
	DefaultLang = "en-US"

	// Timeout bounds each reference request.
	Timeout = 10 * time.Second

	defaultConcurrency = 4

	// maxReferenceBytes caps how much of a response is kept.
	maxReferenceBytes = 64 << 10
)

// Source returns the formatted reference for a DOI.
type Source interface {
	Fetch(ctx context.Context, doi string) (string, error)
}

// Fetcher calls the formatting service over HTTP.
type Fetcher struct {
	client *http.Client
	cfg    types.ReferenceConfig
	logger *zap.Logger
}

// NewFetcher builds a Fetcher. Zero config fields take the package defaults
// and the request timeout is always Timeout.
func NewFetcher(cfg types.ReferenceConfig, logger *zap.Logger) *Fetcher {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Style == "" {
		cfg.Style = DefaultStyle
	}
	if cfg.Lang == "" {
		cfg.Lang = DefaultLang
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	cfg.Timeout = Timeout
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// RequestURL returns the service URL for doi.
func (f *Fetcher) RequestURL(doi string) (string, error) {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parsing reference service url: %w", err)
	}
	q := u.Query()
	q.Set("style", f.cfg.Style)
	q.Set("lang", f.cfg.Lang)
	q.Set("doi", doi)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch issues a single request for doi and returns the response body.
// Timeouts, non-2xx responses and transport errors wrap ErrUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, doi string) (string, error) {
	apiURL, err := f.RequestURL(doi)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "text/plain")
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: HTTP %d for %s", ErrUnavailable, resp.StatusCode, doi)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Annotate fills Reference on every citation that has a DOI, running up to
// concurrency lookups at once. Failures are logged and leave Reference
// empty. It returns the number of references set.
func Annotate(ctx context.Context, src Source, citations []*types.Citation, concurrency int, logger *zap.Logger) int {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	found := make([]bool, len(citations))
	for i, c := range citations {
		if !c.HasDOI() {
			continue
		}
		g.Go(func() error {
			ref, err := src.Fetch(ctx, c.DOI)
			if err != nil {
				logger.Warn("reference lookup failed",
					zap.String("id", c.ID),
					zap.String("doi", c.DOI),
					zap.Error(err),
				)
				return nil
			}
			if ref == "" {
				return nil
			}
			c.Reference = ref
			found[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range found {
		if ok {
			n++
		}
	}
	return n
}
