// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

func sampleCitations() []*types.Citation {
	t0 := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	return []*types.Citation{
		{
			ID:           "a1",
			MessageID:    "msg-1",
			RawLink:      "https://scholar.google.com/scholar_url?url=https://journals.plos.org/x/10.1371/journal.pone.0001&hl=en",
			PublisherURL: "https://journals.plos.org/x/10.1371/journal.pone.0001",
			DOI:          "10.1371/journal.pone.0001",
			Reference:    "Smith J (2020) A paper, with commas. PLOS ONE 1: 1.",
			Status:       types.StatusCompleted,
			PDFPath:      "/results/a1.pdf",
			SourceURL:    "http://mirror.example/a1.pdf",
			DiscoveredAt: t0,
		},
		{
			ID:           "b2",
			MessageID:    "msg-1",
			RawLink:      "https://scholar.google.com/scholar_url?url=https://example.org/article/42",
			PublisherURL: "https://example.org/article/42",
			Status:       types.StatusPending,
			DiscoveredAt: t0.Add(time.Second),
		},
		{
			ID:           "c3",
			MessageID:    "msg-2",
			RawLink:      "https://scholar.google.com/scholar_url?hl=en",
			Status:       types.StatusPending,
			Failure:      "missing url parameter",
			DiscoveredAt: t0.Add(2 * time.Second),
		},
		{
			ID:           "d4",
			MessageID:    "msg-2",
			RawLink:      "https://scholar.google.com/scholar_url?url=https://www.nature.com/articles/10.1038/s41586-020-0001",
			PublisherURL: "https://www.nature.com/articles/10.1038/s41586-020-0001",
			DOI:          "10.1038/s41586-020-0001",
			Status:       types.StatusFailed,
			Failure:      "mirror returned HTTP 403",
			DiscoveredAt: t0.Add(3 * time.Second),
		},
	}
}

func TestCSVSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(dir)
	require.NoError(t, sink.Save(context.Background(), sampleCitations()))

	f, err := os.Open(filepath.Join(dir, "output.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 5)
	assert.Equal(t, []string{"UUID", "URL", "DOI", "Reference"}, rows[0])
	assert.Equal(t, []string{
		"a1",
		"https://journals.plos.org/x/10.1371/journal.pone.0001",
		"10.1371/journal.pone.0001",
		"Smith J (2020) A paper, with commas. PLOS ONE 1: 1.",
	}, rows[1])
	assert.Equal(t, []string{"b2", "https://example.org/article/42", "", ""}, rows[2])
	assert.Equal(t, []string{"c3", "", "", ""}, rows[3])
}

func TestCSVSinkOverwrites(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(dir)
	cits := sampleCitations()
	require.NoError(t, sink.Save(context.Background(), cits))
	require.NoError(t, sink.Save(context.Background(), cits[:1]))

	data, err := os.ReadFile(sink.Path)
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestMetadataSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink := NewMetadataSink(dir)
	cits := sampleCitations()
	require.NoError(t, sink.Save(context.Background(), cits))

	got, err := sink.Load("a1")
	require.NoError(t, err)
	assert.Equal(t, cits[0].DOI, got.DOI)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.True(t, cits[0].DiscoveredAt.Equal(got.DiscoveredAt))

	raw, err := os.ReadFile(filepath.Join(dir, "metadata", "c3.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "download_status: pending")
	assert.NotContains(t, string(raw), "doi:")

	all, err := sink.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a1", all[0].ID)
	assert.Equal(t, "d4", all[3].ID)
}

func TestMetadataSinkLoadAllMissingDir(t *testing.T) {
	all, err := NewMetadataSink(t.TempDir()).LoadAll()
	assert.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteStoreUpsertAndList(t *testing.T) {
	dir := t.TempDir()
	db, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	cits := sampleCitations()
	require.NoError(t, db.Save(ctx, cits))

	// Second save updates in place.
	cits[1].Status = types.StatusCompleted
	cits[1].PDFPath = "/results/b2.pdf"
	require.NoError(t, db.Save(ctx, cits))

	all, err := db.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"a1", "b2", "c3", "d4"}, ids(all))
	assert.Equal(t, types.StatusCompleted, all[1].Status)
	assert.Equal(t, "/results/b2.pdf", all[1].PDFPath)
	assert.Equal(t, "missing url parameter", all[2].Failure)
	assert.True(t, cits[3].DiscoveredAt.Equal(all[3].DiscoveredAt))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"status completed", Filter{Status: types.StatusCompleted}, []string{"a1", "b2"}},
		{"status failed", Filter{Status: types.StatusFailed}, []string{"d4"}},
		{"doi prefix", Filter{DOIPrefix: "10.1038"}, []string{"d4"}},
		{"doi prefix underscore literal", Filter{DOIPrefix: "10_1038"}, nil},
		{"with reference", Filter{WithReference: true}, []string{"a1"}},
		{"limit", Filter{Limit: 2}, []string{"a1", "b2"}},
		{"combined", Filter{Status: types.StatusCompleted, DOIPrefix: "10.1371"}, []string{"a1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	counts, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[types.DownloadStatus]int{
		types.StatusCompleted: 2,
		types.StatusPending:   1,
		types.StatusFailed:    1,
	}, counts)
}

func TestSQLiteStoreListOrdersWithinSecond(t *testing.T) {
	db, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	t0 := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, db.Save(ctx, []*types.Citation{
		{ID: "a-late", RawLink: "l1", Status: types.StatusPending, DiscoveredAt: t0.Add(120 * time.Millisecond)},
		{ID: "b-early", RawLink: "l2", Status: types.StatusPending, DiscoveredAt: t0.Add(100 * time.Millisecond)},
		{ID: "c-whole", RawLink: "l3", Status: types.StatusPending, DiscoveredAt: t0},
	}))

	got, err := db.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c-whole", "b-early", "a-late"}, ids(got))
	assert.True(t, t0.Add(100*time.Millisecond).Equal(got[1].DiscoveredAt))
}

func TestSQLiteStoreReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	require.NoError(t, db.Save(ctx, sampleCitations()[:2]))
	require.NoError(t, db.Close())

	db, err = NewSQLiteStore(dir)
	require.NoError(t, err)
	defer db.Close()
	all, err := db.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

type failingSink struct{ err error }

func (f failingSink) Save(context.Context, []*types.Citation) error { return f.err }

func TestMultiAttemptsAllSinks(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("sink down")
	csvSink := NewCSVSink(dir)

	err := Multi(failingSink{boom}, csvSink).Save(context.Background(), sampleCitations())
	assert.ErrorIs(t, err, boom)
	assert.FileExists(t, csvSink.Path)

	assert.NoError(t, Multi().Save(context.Background(), nil))
}

func ids(cs []*types.Citation) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}
