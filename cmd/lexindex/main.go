// Command lexindex builds and queries the token-vector document index.
//
// Subcommands:
//
//	index      ingest token-count files into the document index
//	resources  register source documents with derived identifiers
//	terms      rebuild the corpus-wide term frequency table
//	query      rank indexed documents against a query from the command line
//	serve      run the HTTP search service
//	events     tail the run/search event stream and log aggregate stats
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dangtom700/lexindex/internal/events"
	"github.com/dangtom700/lexindex/internal/ingest"
	"github.com/dangtom700/lexindex/internal/rank"
	"github.com/dangtom700/lexindex/internal/search"
	"github.com/dangtom700/lexindex/internal/store"
	"github.com/dangtom700/lexindex/internal/vector"
	"github.com/dangtom700/lexindex/pkg/config"
	"github.com/dangtom700/lexindex/pkg/health"
	"github.com/dangtom700/lexindex/pkg/kafka"
	"github.com/dangtom700/lexindex/pkg/logger"
	"github.com/dangtom700/lexindex/pkg/metrics"
	"github.com/dangtom700/lexindex/pkg/middleware"
	pkgredis "github.com/dangtom700/lexindex/pkg/redis"
	"github.com/dangtom700/lexindex/pkg/sqldb"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: lexindex <command> [flags]

commands:
  index      ingest token-count files into the document index
  resources  register source documents with derived identifiers
  terms      rebuild the corpus-wide term frequency table
  query      rank indexed documents against a query string
  serve      run the HTTP search service
  events     tail the event stream and log aggregate stats
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "configs/development.yaml", "path to config file")
	reset := fs.Bool("reset", false, "drop and recreate the target tables before writing")
	queryStr := fs.String("q", "", "query string (query command)")
	queryFile := fs.String("qfile", "", "path to a token-count JSON file to query with (query command)")
	topN := fs.Int("top", 0, "maximum results to return (query command)")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var exitCode int
	switch command {
	case "index", "resources", "terms":
		exitCode = runBatch(ctx, cfg, command, *reset)
	case "query":
		exitCode = runQuery(ctx, cfg, *queryStr, *queryFile, *topN)
	case "serve":
		exitCode = runServe(ctx, cfg)
	case "events":
		exitCode = runEvents(ctx, cfg)
	default:
		usage()
		exitCode = 2
	}
	os.Exit(exitCode)
}

func openStore(ctx context.Context, cfg *config.Config) (*store.SQLStore, func(), error) {
	client, err := sqldb.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return store.New(client), func() { _ = client.Close() }, nil
}

func runBatch(ctx context.Context, cfg *config.Config, kind string, reset bool) int {
	runID := fmt.Sprintf("%s-%d", kind, time.Now().Unix())
	ctx = logger.WithRunID(ctx, runID)
	slog.Info("starting batch run", "kind", kind, "run_id", runID, "driver", cfg.Store.Driver, "reset", reset)

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		return 1
	}
	defer closeStore()

	m := metrics.New()
	pipeline := ingest.NewPipeline(st, cfg.Ingest, m)

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RunEvents)
		defer producer.Close()
	}

	var summary *ingest.RunSummary
	switch kind {
	case "index":
		summary, err = pipeline.RunIndex(ctx, reset)
	case "resources":
		summary, err = pipeline.RunResources(ctx, reset)
	case "terms":
		summary, err = pipeline.RunGlobalTerms(ctx, reset)
	}
	publishRunEvent(ctx, producer, kind, summary, err)
	if err != nil {
		slog.Error("batch run failed", "kind", kind, "error", err)
		return 1
	}

	slog.Info("batch run complete",
		"kind", summary.Kind,
		"documents", summary.Documents,
		"term_rows", summary.TermRows,
		"failures", len(summary.Failures),
		"duration", summary.Duration,
	)
	for _, failure := range summary.Failures {
		slog.Warn("document skipped", "document", failure.Document, "reason", failure.Reason)
	}
	return 0
}

func publishRunEvent(ctx context.Context, producer *kafka.Producer, kind string, summary *ingest.RunSummary, runErr error) {
	if producer == nil {
		return
	}
	event := events.RunEvent{
		Type:      events.EventRunComplete,
		Kind:      kind,
		RunID:     logger.RunIDFromContext(ctx),
		Timestamp: time.Now().UTC(),
	}
	if summary != nil {
		event.Documents = summary.Documents
		event.TermRows = summary.TermRows
		event.Failures = len(summary.Failures)
		event.LatencyMs = summary.Duration.Milliseconds()
	}
	if runErr != nil {
		event.Type = events.EventRunFailed
		event.Error = runErr.Error()
	}
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := producer.Publish(publishCtx, kafka.Event{Key: kind, Value: event}); err != nil {
		slog.Warn("failed to publish run event", "error", err)
	}
}

func runQuery(ctx context.Context, cfg *config.Config, query, queryFile string, topN int) int {
	var counts vector.TokenCount
	switch {
	case queryFile != "":
		var err error
		counts, err = vector.FromFile(queryFile)
		if err != nil {
			slog.Error("failed to read query file", "file", queryFile, "error", err)
			return 1
		}
		if query == "" {
			query = queryFile
		}
	case strings.TrimSpace(query) != "":
		counts = vector.FromQuery(query)
	default:
		fmt.Fprintln(os.Stderr, "query command requires -q \"some words\" or -qfile tokens.json")
		return 2
	}

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		return 1
	}
	defer closeStore()

	ranker := rank.New(st, cfg.Query, metrics.New())
	result, err := ranker.Rank(ctx, counts, topN)
	if err != nil {
		slog.Error("query failed", "error", err)
		return 1
	}

	fmt.Printf("query: %s\nterms: %s\nmatched %d of %d documents\n\n",
		query, strings.Join(result.Terms, " "), len(result.Results), result.TotalDocs)
	for _, doc := range result.Results {
		if doc.ID != "" {
			fmt.Printf("%.6f  [[%s]]  %s\n", doc.Score, doc.Name, doc.ID)
		} else {
			fmt.Printf("%.6f  [[%s]]\n", doc.Score, doc.Name)
		}
	}
	return 0
}

func runServe(ctx context.Context, cfg *config.Config) int {
	slog.Info("starting search service", "port", cfg.Server.Port, "driver", cfg.Store.Driver)

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		return 1
	}
	defer closeStore()

	m := metrics.New()
	ranker := rank.New(st, cfg.Query, m)

	var queryCache *search.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.New(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = search.NewQueryCache(redisClient, cfg.Redis)
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var collector *events.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		collector = events.NewCollector(producer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		slog.Info("search event collector started", "topic", cfg.Kafka.Topics.SearchEvents)
	}

	checker := health.NewChecker()
	checker.Register("store", func(ctx context.Context) health.ComponentHealth {
		if err := st.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := search.NewHandler(ranker, queryCache, collector, m)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		return 1
	}
	slog.Info("search service stopped")
	return 0
}

func runEvents(ctx context.Context, cfg *config.Config) int {
	if !cfg.Kafka.Enabled {
		fmt.Fprintln(os.Stderr, "kafka is disabled in the configuration")
		return 1
	}

	tailer := events.NewTailer()
	go tailer.LogLoop(ctx, 10*time.Second)

	runConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RunEvents, tailer.Handle)
	searchConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, tailer.Handle)
	defer runConsumer.Close()
	defer searchConsumer.Close()

	errCh := make(chan error, 2)
	go func() { errCh <- runConsumer.Start(ctx) }()
	go func() { errCh <- searchConsumer.Start(ctx) }()

	slog.Info("tailing event topics",
		"run_topic", cfg.Kafka.Topics.RunEvents,
		"search_topic", cfg.Kafka.Topics.SearchEvents,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			slog.Error("consumer error", "error", err)
			return 1
		}
	}

	stats := tailer.Snapshot()
	slog.Info("event stream summary",
		"runs", stats.Runs,
		"failed_runs", stats.FailedRuns,
		"searches", stats.Searches,
		"cache_hits", stats.CacheHits,
	)
	return 0
}
