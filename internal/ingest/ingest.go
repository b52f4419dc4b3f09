// Package ingest implements the batch pipelines that build the index: the
// relational-distance run over token-count files, the resource-metadata
// scan, and the corpus-wide term rebuild. Filtering and weighting of
// independent documents runs in parallel; all writes for a run land in a
// single store transaction.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dangtom700/lexindex/internal/ident"
	"github.com/dangtom700/lexindex/internal/store"
	"github.com/dangtom700/lexindex/internal/vector"
	"github.com/dangtom700/lexindex/pkg/config"
	apperrors "github.com/dangtom700/lexindex/pkg/errors"
	"github.com/dangtom700/lexindex/pkg/metrics"
	"github.com/dangtom700/lexindex/pkg/tracing"
)

// Failure records one document that could not be ingested.
type Failure struct {
	Document string `json:"document"`
	Reason   string `json:"reason"`
}

// RunSummary reports what one batch run accomplished.
type RunSummary struct {
	Kind      string        `json:"kind"`
	Documents int           `json:"documents"`
	TermRows  int           `json:"term_rows"`
	Failures  []Failure     `json:"failures,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Pipeline drives the batch ingestion runs against a Store.
type Pipeline struct {
	store   store.Store
	cfg     config.IngestConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(st store.Store, cfg config.IngestConfig, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		store:   st,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "ingest"),
	}
}

// documentResult is one document's fully computed rows, ready for the batch
// write.
type documentResult struct {
	doc   store.DocumentRecord
	terms []store.TermWeightRecord
}

// RunIndex performs the relational-distance build: every token-count file
// under the token directory becomes one file_token row plus its
// relation_distance rows. Under the abort policy the first bad document
// fails the run and nothing is committed; under the continue policy bad
// documents are recorded in the summary and the rest commit.
func (p *Pipeline) RunIndex(ctx context.Context, reset bool) (*RunSummary, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "index-run")
	defer func() { span.End(); span.Log() }()

	files, err := p.listTokenFiles()
	if err != nil {
		return nil, err
	}
	p.logger.Info("relational distance run starting",
		"files", len(files),
		"reset", reset,
		"policy", p.cfg.FailurePolicy,
	)

	if err := p.store.InitDocumentTables(ctx, store.ResetOptions{Reset: reset}); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaFailure, err)
	}

	results, failures, err := p.processDocuments(ctx, files)
	if err != nil {
		return nil, err
	}

	// Deterministic write order regardless of worker scheduling.
	sort.Slice(results, func(i, j int) bool { return results[i].doc.Name < results[j].doc.Name })

	docs := make([]store.DocumentRecord, 0, len(results))
	terms := make([]store.TermWeightRecord, 0)
	for _, res := range results {
		docs = append(docs, res.doc)
		terms = append(terms, res.terms...)
	}

	_, writeSpan := tracing.StartChildSpan(ctx, "store-write")
	err = p.store.WriteDocuments(ctx, docs, terms)
	writeSpan.End()
	if err != nil {
		return nil, fmt.Errorf("writing index run: %w", err)
	}

	p.metrics.DocsIndexedTotal.Add(float64(len(docs)))
	p.metrics.DocsFailedTotal.Add(float64(len(failures)))
	p.metrics.IngestRunDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())

	summary := &RunSummary{
		Kind:      "index",
		Documents: len(docs),
		TermRows:  len(terms),
		Failures:  failures,
		Duration:  time.Since(start),
	}
	p.logger.Info("relational distance run finished",
		"documents", summary.Documents,
		"term_rows", summary.TermRows,
		"failures", len(summary.Failures),
		"duration", summary.Duration,
	)
	return summary, nil
}

// processDocuments loads, filters, and weights every token file with a
// bounded worker pool. Document computation is purely local, so workers
// never touch the store; only the caller writes.
func (p *Pipeline) processDocuments(ctx context.Context, files []string) ([]documentResult, []Failure, error) {
	workers := p.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	results := make([]documentResult, 0, len(files))
	failures := make([]Failure, 0)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := p.processOne(file)
			if err != nil {
				docErr := apperrors.ForDocument(documentName(file), err)
				if p.cfg.FailurePolicy == "continue" {
					p.logger.Warn("skipping document", "document", docErr.Document, "error", err)
					mu.Lock()
					failures = append(failures, Failure{Document: docErr.Document, Reason: err.Error()})
					mu.Unlock()
					return nil
				}
				return docErr
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Document < failures[j].Document })
	return results, failures, nil
}

// processOne computes one document's rows. The norm comes from the full,
// unfiltered counts; the filter gates then decide which tokens get stored.
func (p *Pipeline) processOne(file string) (documentResult, error) {
	counts, err := vector.FromFile(file)
	if err != nil {
		return documentResult{}, fmt.Errorf("%w: %v", apperrors.ErrDocumentUnreadable, err)
	}

	name := documentName(file)
	norm := vector.Norm(counts)
	weighted, stats, err := vector.FilterWeightStats(counts, p.cfg.MaxTokenLength, p.cfg.MinTokenCount, norm)
	if err != nil {
		return documentResult{}, err
	}
	p.recordFilterStats(stats)

	res := documentResult{
		doc: store.DocumentRecord{
			Name:         name,
			TotalTokens:  counts.Total(),
			UniqueTokens: counts.Unique(),
			Norm:         norm,
		},
		terms: make([]store.TermWeightRecord, 0, len(weighted)),
	}
	for _, wt := range weighted {
		res.terms = append(res.terms, store.TermWeightRecord{
			Name:   name,
			Token:  wt.Token,
			Count:  wt.Count,
			Weight: wt.Weight,
		})
	}
	return res, nil
}

// RunResources scans the resource directory, consults the chunking
// subsystem's table, derives each file's identifier, and upserts file_info
// in one transaction.
func (p *Pipeline) RunResources(ctx context.Context, reset bool) (*RunSummary, error) {
	start := time.Now()

	files, err := listFilesByExt(p.cfg.ResourceDir, p.cfg.ResourceExt)
	if err != nil {
		return nil, err
	}
	p.logger.Info("resource scan starting", "files", len(files), "reset", reset)

	if err := p.store.InitResourceTable(ctx, store.ResetOptions{Reset: reset}); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaFailure, err)
	}

	resources := make([]store.ResourceRecord, 0, len(files))
	failures := make([]Failure, 0)
	for _, file := range files {
		rec, err := p.resourceRecord(ctx, file)
		if err != nil {
			if p.cfg.FailurePolicy == "continue" {
				p.logger.Warn("skipping resource", "file", file, "error", err)
				failures = append(failures, Failure{Document: documentName(file), Reason: err.Error()})
				continue
			}
			return nil, apperrors.ForDocument(documentName(file), err)
		}
		resources = append(resources, rec)
	}

	if err := p.store.WriteResources(ctx, resources); err != nil {
		return nil, fmt.Errorf("writing resource run: %w", err)
	}
	p.metrics.IngestRunDuration.WithLabelValues("resources").Observe(time.Since(start).Seconds())

	summary := &RunSummary{
		Kind:      "resources",
		Documents: len(resources),
		Failures:  failures,
		Duration:  time.Since(start),
	}
	p.logger.Info("resource scan finished",
		"resources", summary.Documents,
		"failures", len(summary.Failures),
		"duration", summary.Duration,
	)
	return summary, nil
}

func (p *Pipeline) resourceRecord(ctx context.Context, file string) (store.ResourceRecord, error) {
	info, err := os.Stat(file)
	if err != nil {
		return store.ResourceRecord{}, fmt.Errorf("%w: %v", apperrors.ErrDocumentUnreadable, err)
	}
	normalized := filepath.ToSlash(file)
	epoch := info.ModTime().Unix()

	chunks, err := p.store.ChunkStats(ctx, normalized)
	if err != nil {
		return store.ResourceRecord{}, err
	}

	return store.ResourceRecord{
		ID:         ident.DeriveID(normalized, epoch, chunks.Count, chunks.StartingID),
		Name:       documentName(file),
		Path:       normalized,
		EpochTime:  epoch,
		ChunkCount: chunks.Count,
		StartingID: chunks.StartingID,
		EndingID:   chunks.EndingID,
	}, nil
}

// RunGlobalTerms rebuilds global_terms from the corpus-wide frequency file.
// The weighting denominator here is the total corpus frequency, not the
// Euclidean norm: the frequency column is a share, not a distance.
func (p *Pipeline) RunGlobalTerms(ctx context.Context, reset bool) (*RunSummary, error) {
	start := time.Now()

	counts, err := vector.FromFile(p.cfg.GlobalTermsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDocumentUnreadable, err)
	}
	total := counts.Total()
	weighted, stats, err := vector.FilterWeightStats(counts, p.cfg.MaxTokenLength, p.cfg.MinTokenCount, float64(total))
	if err != nil {
		return nil, err
	}
	p.recordFilterStats(stats)

	if err := p.store.InitGlobalTermsTable(ctx, store.ResetOptions{Reset: reset}); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaFailure, err)
	}

	terms := make([]store.GlobalTermRecord, 0, len(weighted))
	for _, wt := range weighted {
		terms = append(terms, store.GlobalTermRecord{
			Term:      wt.Token,
			Count:     wt.Count,
			Frequency: wt.Weight,
		})
	}
	if err := p.store.WriteGlobalTerms(ctx, terms); err != nil {
		return nil, fmt.Errorf("writing global terms: %w", err)
	}
	p.metrics.IngestRunDuration.WithLabelValues("terms").Observe(time.Since(start).Seconds())

	summary := &RunSummary{
		Kind:      "terms",
		Documents: len(terms),
		Duration:  time.Since(start),
	}
	p.logger.Info("global terms rebuilt", "terms", len(terms), "duration", summary.Duration)
	return summary, nil
}

func (p *Pipeline) recordFilterStats(stats vector.FilterStats) {
	p.metrics.TokensKeptTotal.Add(float64(stats.Kept))
	p.metrics.TokensDroppedTotal.WithLabelValues("alpha").Add(float64(stats.DroppedAlpha))
	p.metrics.TokensDroppedTotal.WithLabelValues("length").Add(float64(stats.DroppedLength))
	p.metrics.TokensDroppedTotal.WithLabelValues("count").Add(float64(stats.DroppedCount))
}

func (p *Pipeline) listTokenFiles() ([]string, error) {
	return listFilesByExt(p.cfg.TokenDir, ".json")
}

func listFilesByExt(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// documentName is the file stem: base name without extension.
func documentName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
