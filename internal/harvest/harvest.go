// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest runs one end-to-end pass: read alert messages, extract and
// resolve their links, look up references, persist the citations, download
// PDFs and persist the final state.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/scholar-harvest/internal/body"
	"github.com/pdiddy/scholar-harvest/internal/mailbox"
	"github.com/pdiddy/scholar-harvest/internal/metrics"
	"github.com/pdiddy/scholar-harvest/internal/reference"
	"github.com/pdiddy/scholar-harvest/internal/resolve"
	"github.com/pdiddy/scholar-harvest/internal/retrieve"
	"github.com/pdiddy/scholar-harvest/internal/store"
	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// Retriever downloads PDFs for citations. *retrieve.Engine satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, citations []*types.Citation) (retrieve.Summary, error)
}

// Report summarizes one harvest run.
type Report struct {
	Messages     int
	Links        int
	Unparseable  int
	Unresolved   int
	WithDOI      int
	References   int
	Retrieval    retrieve.Summary
	Citations    []*types.Citation
	RetrievalErr error
}

// Harvester wires the pipeline stages together.
type Harvester struct {
	mailbox   mailbox.Reader
	retriever Retriever
	sink      store.Sink

	references     reference.Source
	refConcurrency int

	newID   func() string
	logger  *zap.Logger
	metrics *metrics.Metrics
	out     io.Writer
}

// Option configures a Harvester.
type Option func(*Harvester)

// WithReferences enables reference lookup for citations with a DOI.
func WithReferences(src reference.Source, concurrency int) Option {
	return func(h *Harvester) {
		h.references = src
		h.refConcurrency = concurrency
	}
}

// WithIDGenerator replaces uuid.NewString for citation IDs.
func WithIDGenerator(fn func() string) Option {
	return func(h *Harvester) { h.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harvester) { h.logger = l }
}

// WithMetrics records citation and reference counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Harvester) { h.metrics = m }
}

// WithProgress prints stage summaries to w.
func WithProgress(w io.Writer) Option {
	return func(h *Harvester) { h.out = w }
}

// New returns a Harvester reading from mb, downloading with r and saving to
// sink.
func New(mb mailbox.Reader, r Retriever, sink store.Sink, opts ...Option) *Harvester {
	h := &Harvester{
		mailbox:   mb,
		retriever: r,
		sink:      sink,
		newID:     uuid.NewString,
		logger:    zap.NewNop(),
		out:       io.Discard,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes one harvest. Citations are saved before retrieval starts and
// again once it finishes, so a fatal retrieval error still leaves every
// citation persisted. The returned error joins the retrieval error with any
// save error.
func (h *Harvester) Run(ctx context.Context) (Report, error) {
	var rep Report

	msgs, err := h.mailbox.Messages(ctx)
	if err != nil {
		if len(msgs) == 0 {
			return rep, fmt.Errorf("reading mailbox: %w", err)
		}
		h.logger.Warn("some messages could not be read", zap.Error(err))
	}
	rep.Messages = len(msgs)

	citations := h.Discover(msgs, &rep)
	rep.Citations = citations
	fmt.Fprintf(h.out, "Found %d links in %d messages\n", rep.Links, rep.Messages)

	if h.references != nil {
		rep.References = reference.Annotate(ctx, h.references, citations, h.refConcurrency, h.logger)
		h.metrics.AddReferences(rep.References)
		fmt.Fprintf(h.out, "Retrieved %d references for %d DOIs\n", rep.References, rep.WithDOI)
	}

	if err := h.save(ctx, citations); err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	rep.Retrieval, rep.RetrievalErr = h.retriever.Retrieve(ctx, citations)
	if rep.RetrievalErr != nil {
		h.logger.Error("retrieval finished with errors", zap.Error(rep.RetrievalErr))
	}
	h.metrics.RecordCitations(citations)

	// The final save must not be skipped because the run was cancelled.
	saveErr := h.save(context.WithoutCancel(ctx), citations)
	return rep, errors.Join(rep.RetrievalErr, saveErr)
}

// Discover extracts and resolves every alert link in msgs, in message order
// then document order. Each link becomes one citation with a fresh ID, even
// when it fails to resolve.
func (h *Harvester) Discover(msgs []mailbox.Message, rep *Report) []*types.Citation {
	if rep == nil {
		rep = &Report{}
	}
	var citations []*types.Citation
	for _, m := range msgs {
		res := body.Parse(m.HTML())
		if res.Err != nil {
			rep.Unparseable++
			h.logger.Debug("unparseable message body", zap.String("message", m.ID), zap.Error(res.Err))
			continue
		}
		for _, link := range res.Links {
			rep.Links++
			c, err := resolve.NewCitation(h.newID(), m.ID, link)
			switch {
			case err == nil:
			case errors.Is(err, resolve.ErrNoDOI):
				h.logger.Debug("no doi in publisher url",
					zap.String("id", c.ID), zap.String("url", c.PublisherURL))
			default:
				rep.Unresolved++
				h.logger.Warn("unresolvable link",
					zap.String("id", c.ID), zap.String("link", link), zap.Error(err))
			}
			if c.HasDOI() {
				rep.WithDOI++
			}
			citations = append(citations, c)
		}
	}
	return citations
}

func (h *Harvester) save(ctx context.Context, citations []*types.Citation) error {
	if h.sink == nil {
		return nil
	}
	if err := h.sink.Save(ctx, citations); err != nil {
		return fmt.Errorf("saving citations: %w", err)
	}
	return nil
}
