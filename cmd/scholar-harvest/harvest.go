// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/scholar-harvest/internal/harvest"
	"github.com/pdiddy/scholar-harvest/internal/httputil"
	"github.com/pdiddy/scholar-harvest/internal/logging"
	"github.com/pdiddy/scholar-harvest/internal/mailbox"
	"github.com/pdiddy/scholar-harvest/internal/metrics"
	"github.com/pdiddy/scholar-harvest/internal/reference"
	"github.com/pdiddy/scholar-harvest/internal/retrieve"
	"github.com/pdiddy/scholar-harvest/internal/store"
	"github.com/pdiddy/scholar-harvest/pkg/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Extract alert links, resolve them and download the PDFs",
	Long: `Harvest reads every message in the mailbox directory (*.eml, *.html),
extracts the alert links, resolves publisher URLs and DOIs, fetches formatted
references, and downloads PDFs into the results directory. Direct .pdf links
are fetched as-is; other links with a DOI go through the configured mirror.

Individual download failures are reported but do not fail the command. The
command exits non-zero only when an output file cannot be created.`,
	RunE: runHarvest,
}

func init() {
	f := harvestCmd.Flags()
	f.String("mailbox-dir", defaultMailboxDir, "directory of exported alert messages")
	f.String("from", "", "only read .eml messages whose sender contains this")
	f.Int("concurrency", defaultConcurrency, "maximum requests in flight")
	f.Duration("timeout", defaultTimeout, "per-download HTTP timeout")
	f.String("mirror", string(types.MirrorIframe), "mirror strategy: iframe or openalex")
	f.String("mirror-url", retrieve.DefaultMirrorURL, "mirror base URL the publisher URL is appended to")
	f.Float64("rate-limit", 0, "maximum requests per second per host (0 = unlimited)")
	f.Bool("no-references", false, "skip formatted reference lookup")
	f.String("metrics-file", "", "write Prometheus metrics to this file after the run")

	viper.BindPFlag("mailbox.dir", f.Lookup("mailbox-dir"))
	viper.BindPFlag("mailbox.from", f.Lookup("from"))
	viper.BindPFlag("retrieval.concurrency", f.Lookup("concurrency"))
	viper.BindPFlag("retrieval.timeout", f.Lookup("timeout"))
	viper.BindPFlag("retrieval.mirror", f.Lookup("mirror"))
	viper.BindPFlag("retrieval.mirror_url", f.Lookup("mirror-url"))
	viper.BindPFlag("retrieval.rate_limit", f.Lookup("rate-limit"))
	viper.BindPFlag("metrics_file", f.Lookup("metrics-file"))

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	out := cmd.OutOrStdout()

	engine := newEngine(cfg, logger, m, out)

	db, err := store.NewSQLiteStore(cfg.ResultsDir)
	if err != nil {
		return err
	}
	defer db.Close()
	sink := store.Multi(store.NewCSVSink(cfg.ResultsDir), store.NewMetadataSink(cfg.ResultsDir), db)

	opts := []harvest.Option{
		harvest.WithLogger(logger),
		harvest.WithMetrics(m),
		harvest.WithProgress(out),
	}
	if noRefs, _ := cmd.Flags().GetBool("no-references"); !noRefs {
		fetcher := reference.NewFetcher(cfg.Reference, logger.Named("reference"))
		opts = append(opts, harvest.WithReferences(fetcher, cfg.Reference.Concurrency))
	}

	mb := mailbox.DirReader{Dir: cfg.Mailbox.Dir, From: cfg.Mailbox.From}
	logger.Info("starting harvest",
		zap.String("mailbox", cfg.Mailbox.Dir),
		zap.String("results", cfg.ResultsDir),
		zap.Int("concurrency", cfg.Retrieval.Concurrency),
		zap.String("mirror", string(cfg.Retrieval.Mirror)),
	)

	rep, runErr := harvest.New(mb, engine, sink, opts...).Run(ctx)
	logger.Info("harvest finished",
		zap.Int("messages", rep.Messages),
		zap.Int("links", rep.Links),
		zap.Int("completed", rep.Retrieval.Completed),
		zap.Int("failed", rep.Retrieval.Failed),
		zap.Int("skipped", rep.Retrieval.Skipped),
	)

	if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
		logger.Warn("metrics not written", zap.Error(err))
	}
	if runErr != nil {
		return fmt.Errorf("harvest: %w", runErr)
	}
	return nil
}

// newEngine builds the retrieval engine and its shared executor from cfg.
func newEngine(cfg types.HarvestConfig, logger *zap.Logger, m *metrics.Metrics, out io.Writer) *retrieve.Engine {
	rc := cfg.Retrieval
	hc := &http.Client{Timeout: rc.Timeout}
	client := httputil.NewClient(hc,
		httputil.WithUserAgent(rc.UserAgent),
		httputil.WithHostLimiter(httputil.NewHostLimiter(rc.RateLimit)),
		httputil.WithMaxRetries(rc.MaxRetries),
		httputil.WithRetryDelay(rc.RetryDelay),
		httputil.WithLogger(logger.Named("http")),
	)

	var mirror retrieve.Mirror = retrieve.IframeMirror{Base: rc.MirrorURL}
	if rc.Mirror == types.MirrorOpenAlex {
		mirror = retrieve.OpenAlexMirror{Mailto: viper.GetString("retrieval.mailto")}
	}

	exec := retrieve.NewExecutor(rc.Concurrency,
		retrieve.WithExecutorLogger(logger.Named("executor")),
		retrieve.WithExecutorMetrics(m),
	)
	return retrieve.NewEngine(exec, client, rc.ResultsDir,
		retrieve.WithMirror(mirror),
		retrieve.WithLogger(logger.Named("retrieve")),
		retrieve.WithMetrics(m),
		retrieve.WithProgress(out),
	)
}
