// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve downloads PDFs for resolved citations. Each citation is
// either fetched directly, looked up on a mirror whose response names the
// real PDF location (which is then fetched as a chained request in the same
// run), or skipped. All requests go through one bounded Scheduler.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/scholar-harvest/internal/httputil"
	"github.com/pdiddy/scholar-harvest/internal/metrics"
	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// ErrOutputFile marks a failure to create a download's output file. It is
// the only retrieval failure reported to the caller of Retrieve.
var ErrOutputFile = errors.New("cannot create output file")

// Route is the retrieval path chosen for a citation.
type Route int

const (
	// RouteSkip issues no request; the citation stays pending.
	RouteSkip Route = iota
	// RouteDirect streams the publisher URL to disk.
	RouteDirect
	// RouteMirror looks the citation up on the mirror first.
	RouteMirror
)

func (r Route) String() string {
	switch r {
	case RouteDirect:
		return "direct"
	case RouteMirror:
		return "mirror"
	default:
		return "skip"
	}
}

// Classify picks the route for c: a publisher URL whose path ends in .pdf is
// fetched directly, otherwise a DOI sends it to the mirror.
func Classify(c *types.Citation) Route {
	if !c.HasPublisherURL() {
		return RouteSkip
	}
	if IsPDFURL(c.PublisherURL) {
		return RouteDirect
	}
	if c.HasDOI() {
		return RouteMirror
	}
	return RouteSkip
}

// IsPDFURL reports whether rawURL's path has a .pdf extension. Case is
// ignored, so ".PDF" paths are direct links too.
func IsPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), ".pdf")
}

// Summary counts citations by outcome after a run.
type Summary struct {
	Completed int
	Failed    int
	Skipped   int
	Existing  int
}

// Total returns the number of citations considered.
func (s Summary) Total() int {
	return s.Completed + s.Failed + s.Skipped
}

// HasFailures reports whether any download failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Engine drives per-citation retrieval through a Scheduler.
type Engine struct {
	sched   Scheduler
	client  *httputil.Client
	mirror  Mirror
	dir     string
	logger  *zap.Logger
	metrics *metrics.Metrics

	outMu sync.Mutex
	out   io.Writer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMirror sets the fallback mirror (default IframeMirror{DefaultMirrorURL}).
func WithMirror(m Mirror) EngineOption {
	return func(e *Engine) { e.mirror = m }
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records request counters.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithProgress prints one status line per finished citation to w.
func WithProgress(w io.Writer) EngineOption {
	return func(e *Engine) { e.out = w }
}

// NewEngine returns an engine writing <id>.pdf files into dir.
func NewEngine(sched Scheduler, client *httputil.Client, dir string, opts ...EngineOption) *Engine {
	e := &Engine{
		sched:  sched,
		client: client,
		mirror: IframeMirror{Base: DefaultMirrorURL},
		dir:    dir,
		logger: zap.NewNop(),
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PDFPath returns where the PDF for id is written.
func (e *Engine) PDFPath(id string) string {
	return filepath.Join(e.dir, id+".pdf")
}

// Retrieve queues every eligible citation, runs the scheduler to completion
// and summarizes the outcome. Individual download failures only mark their
// citation failed. The returned error is non-nil when the results directory
// or an output file could not be created, or the run was cancelled.
func (e *Engine) Retrieve(ctx context.Context, citations []*types.Citation) (Summary, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating results directory %s: %w", e.dir, err)
	}

	var existing int
	for _, c := range citations {
		if e.Submit(c) && c.Status == types.StatusCompleted {
			existing++
		}
	}

	runErr := e.sched.Run(ctx)

	s := Summarize(citations)
	s.Existing = existing
	fmt.Fprintf(e.out, "\nRetrieval summary: %d completed, %d failed, %d skipped (total: %d)\n",
		s.Completed, s.Failed, s.Skipped, s.Total())
	return s, runErr
}

// Submit queues the first request for c and reports whether c was handled.
// A citation whose PDF is already on disk is marked completed without a
// request.
func (e *Engine) Submit(c *types.Citation) bool {
	route := Classify(c)
	if route == RouteSkip {
		e.logger.Debug("no retrieval route", zap.String("id", c.ID))
		return false
	}
	if dest := e.PDFPath(c.ID); fileExists(dest) {
		c.PDFPath = dest
		e.transition(c, types.StatusCompleted)
		e.printf("skipped: %s (already exists)\n", c.ID)
		return true
	}

	switch route {
	case RouteDirect:
		e.sched.Queue(func(ctx context.Context) error {
			e.transition(c, types.StatusDirect)
			return e.download(ctx, c, c.PublisherURL, metrics.KindDirect)
		})
	case RouteMirror:
		e.sched.Queue(func(ctx context.Context) error {
			return e.lookup(ctx, c)
		})
	}
	return true
}

// lookup performs the mirror request and, when the response names a PDF,
// queues the chained download into the running scheduler.
func (e *Engine) lookup(ctx context.Context, c *types.Citation) error {
	e.transition(c, types.StatusMirrorLookup)
	start := time.Now()

	lookupURL, err := e.mirror.LookupURL(c)
	if err != nil {
		e.fail(c, metrics.KindMirror, start, err)
		return nil
	}

	resp, err := e.client.Get(ctx, lookupURL, "")
	if err != nil {
		e.fail(c, metrics.KindMirror, start, fmt.Errorf("mirror request: %w", err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.fail(c, metrics.KindMirror, start, fmt.Errorf("mirror returned HTTP %d", resp.StatusCode))
		return nil
	}

	target, err := e.mirror.Target(resp)
	if err != nil {
		e.fail(c, metrics.KindMirror, start, fmt.Errorf("%s mirror: %w", e.mirror.Name(), err))
		return nil
	}
	e.metrics.ObserveRequest(metrics.KindMirror, "ok", start)

	e.transition(c, types.StatusChained)
	e.sched.Queue(func(ctx context.Context) error {
		return e.download(ctx, c, target, metrics.KindChained)
	})
	return nil
}

// download streams rawURL to the citation's PDF path.
func (e *Engine) download(ctx context.Context, c *types.Citation, rawURL, kind string) error {
	start := time.Now()

	resp, err := e.client.Get(ctx, rawURL, "application/pdf")
	if err != nil {
		e.fail(c, kind, start, fmt.Errorf("requesting %s: %w", rawURL, err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.fail(c, kind, start, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL))
		return nil
	}

	dest := e.PDFPath(c.ID)
	n, err := writeStream(resp.Body, dest)
	e.metrics.AddBytes(n)
	if err != nil {
		e.fail(c, kind, start, err)
		if errors.Is(err, ErrOutputFile) {
			return fmt.Errorf("citation %s: %w", c.ID, err)
		}
		return nil
	}

	c.PDFPath = dest
	c.SourceURL = rawURL
	c.Failure = ""
	e.transition(c, types.StatusCompleted)
	e.metrics.ObserveRequest(kind, "ok", start)
	e.logger.Info("pdf downloaded",
		zap.String("id", c.ID),
		zap.String("url", rawURL),
		zap.String("kind", kind),
		zap.Int64("bytes", n),
	)
	e.printf("completed: %s (%s)\n", c.ID, kind)
	return nil
}

// writeStream copies r into destPath through a temporary file in the same
// directory, renaming on success, so a failed transfer leaves no file
// behind. Only temp file creation errors wrap ErrOutputFile.
func writeStream(r io.Reader, destPath string) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutputFile, err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

func (e *Engine) transition(c *types.Citation, to types.DownloadStatus) {
	e.logger.Debug("status change",
		zap.String("id", c.ID),
		zap.String("from", string(c.Status)),
		zap.String("to", string(to)),
	)
	c.Status = to
}

func (e *Engine) fail(c *types.Citation, kind string, start time.Time, err error) {
	c.Failure = err.Error()
	e.transition(c, types.StatusFailed)
	e.metrics.ObserveRequest(kind, "failed", start)
	e.logger.Warn("retrieval failed",
		zap.String("id", c.ID),
		zap.String("kind", kind),
		zap.Error(err),
	)
	e.printf("failed:  %s (%v)\n", c.ID, err)
}

func (e *Engine) printf(format string, args ...any) {
	e.outMu.Lock()
	defer e.outMu.Unlock()
	fmt.Fprintf(e.out, format, args...)
}

// Summarize counts citations by status. Citations left pending count as
// skipped.
func Summarize(citations []*types.Citation) Summary {
	var s Summary
	for _, c := range citations {
		switch c.Status {
		case types.StatusCompleted:
			s.Completed++
		case types.StatusFailed:
			s.Failed++
		default:
			s.Skipped++
		}
	}
	return s
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
