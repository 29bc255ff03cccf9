// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

const sampleReference = "White C, Brown D (2023) CrossRef paper title. Entomologia Experimentalis et Applicata 171: 1-10.\n"

func newReferenceServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("doi") {
		case "10.1234/ok":
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, sampleReference)
		case "10.1234/slow":
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		default:
			http.Error(w, "DOI not found", http.StatusNotFound)
		}
	}))
}

func TestRequestURL(t *testing.T) {
	f := NewFetcher(types.ReferenceConfig{}, nil)
	got, err := f.RequestURL("10.1111/eea.13001")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "citation.crosscite.org", u.Host)
	assert.Equal(t, "/format", u.Path)
	assert.Equal(t, DefaultStyle, u.Query().Get("style"))
	assert.Equal(t, DefaultLang, u.Query().Get("lang"))
	assert.Equal(t, "10.1111/eea.13001", u.Query().Get("doi"))
}

func TestFetchTimeoutIsFixed(t *testing.T) {
	f := NewFetcher(types.ReferenceConfig{HTTPConfig: types.HTTPConfig{Timeout: time.Hour}}, nil)
	assert.Equal(t, Timeout, f.client.Timeout)
}

func TestFetch(t *testing.T) {
	ts := newReferenceServer(t)
	defer ts.Close()

	f := NewFetcher(types.ReferenceConfig{URL: ts.URL + "/format"}, nil)

	ref, err := f.Fetch(context.Background(), "10.1234/ok")
	require.NoError(t, err)
	assert.Equal(t, "White C, Brown D (2023) CrossRef paper title. Entomologia Experimentalis et Applicata 171: 1-10.", ref)

	_, err = f.Fetch(context.Background(), "10.1234/missing")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFetchTimeout(t *testing.T) {
	ts := newReferenceServer(t)
	defer ts.Close()

	f := NewFetcher(types.ReferenceConfig{URL: ts.URL}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, "10.1234/slow")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchTransportError(t *testing.T) {
	ts := newReferenceServer(t)
	ts.Close()

	f := NewFetcher(types.ReferenceConfig{URL: ts.URL}, nil)
	_, err := f.Fetch(context.Background(), "10.1234/ok")
	assert.ErrorIs(t, err, ErrUnavailable)
}

type fakeSource struct {
	mu    sync.Mutex
	calls []string
	refs  map[string]string
}

func (s *fakeSource) Fetch(_ context.Context, doi string) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, doi)
	s.mu.Unlock()
	if ref, ok := s.refs[doi]; ok {
		return ref, nil
	}
	return "", errors.New("not found")
}

func TestAnnotate(t *testing.T) {
	src := &fakeSource{refs: map[string]string{"10.1/a": "Ref A", "10.1/c": "Ref C"}}
	cits := []*types.Citation{
		{ID: "1", DOI: "10.1/a"},
		{ID: "2", DOI: "10.1/b"},
		{ID: "3"},
		{ID: "4", DOI: "10.1/c"},
	}

	n := Annotate(context.Background(), src, cits, 2, nil)

	assert.Equal(t, 2, n)
	assert.Equal(t, "Ref A", cits[0].Reference)
	assert.Empty(t, cits[1].Reference)
	assert.Empty(t, cits[2].Reference)
	assert.Equal(t, "Ref C", cits[3].Reference)
	assert.ElementsMatch(t, []string{"10.1/a", "10.1/b", "10.1/c"}, src.calls)
}
