// Package rank scores indexed documents against a query token vector. The
// evaluation is two-phase: one bulk fetch of every stored weight matching
// the filtered query tokens, then a purely in-memory aggregation over the
// document listing. No per-document round trips.
package rank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dangtom700/lexindex/internal/store"
	"github.com/dangtom700/lexindex/internal/vector"
	"github.com/dangtom700/lexindex/pkg/config"
	"github.com/dangtom700/lexindex/pkg/metrics"
	"github.com/dangtom700/lexindex/pkg/tracing"
)

// RankedDocument is one scored entry in a result list. ID is the derived
// resource identifier when a file_info row exists for the document.
type RankedDocument struct {
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Result is a complete ranking response.
type Result struct {
	Terms     []string         `json:"terms"`
	TotalDocs int              `json:"total_docs"`
	Results   []RankedDocument `json:"results"`
}

// Ranker evaluates queries against the Store.
type Ranker struct {
	store   store.Store
	cfg     config.QueryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Ranker.
func New(st store.Store, cfg config.QueryConfig, m *metrics.Metrics) *Ranker {
	return &Ranker{
		store:   st,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "ranker"),
	}
}

// Rank filters and weights the query counts with the query-time thresholds,
// aggregates weighted token matches across every indexed document, and
// returns the topN highest-scoring documents. Ties break on document name,
// then id, so repeated invocations over the same store state return the
// same ordering. A zero-norm query is rejected with ErrEmptyVector.
func (r *Ranker) Rank(ctx context.Context, counts vector.TokenCount, topN int) (*Result, error) {
	ctx, span := tracing.StartChildSpan(ctx, "rank")
	defer span.End()

	if topN <= 0 {
		topN = r.cfg.TopN
	}
	if r.cfg.MaxResults > 0 && topN > r.cfg.MaxResults {
		topN = r.cfg.MaxResults
	}

	norm := vector.Norm(counts)
	weighted, err := vector.FilterWeight(counts, r.cfg.MaxTokenLength, r.cfg.MinTokenCount, norm)
	if err != nil {
		r.metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("weighting query: %w", err)
	}

	terms := make([]string, 0, len(weighted))
	for _, wt := range weighted {
		terms = append(terms, wt.Token)
	}
	if len(terms) == 0 {
		// Every query token failed the gates; defined as an empty result,
		// not an error.
		r.metrics.QueriesTotal.WithLabelValues("zero_result").Inc()
		return &Result{Terms: terms, Results: []RankedDocument{}}, nil
	}

	rows, err := r.store.TermWeights(ctx, terms)
	if err != nil {
		r.metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetching term weights: %w", err)
	}
	span.SetAttr("matched_rows", len(rows))

	// document name -> token -> stored weight
	lookup := make(map[string]map[string]float64, len(rows))
	for _, row := range rows {
		byToken, ok := lookup[row.Name]
		if !ok {
			byToken = make(map[string]float64)
			lookup[row.Name] = byToken
		}
		byToken[row.Token] = row.Weight
	}

	names, err := r.store.DocumentNames(ctx)
	if err != nil {
		r.metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	ids, err := r.store.ResourceIDs(ctx)
	if err != nil {
		r.metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("listing resources: %w", err)
	}

	ranked := make([]RankedDocument, 0, len(names))
	for _, name := range names {
		score := 0.0
		if byToken := lookup[name]; byToken != nil {
			for _, wt := range weighted {
				// Absent tokens contribute zero, they are not an error.
				score += wt.Weight * byToken[wt.Token]
			}
		}
		ranked = append(ranked, RankedDocument{
			ID:    ids[name],
			Name:  name,
			Score: score,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Name != ranked[j].Name {
			return ranked[i].Name < ranked[j].Name
		}
		return ranked[i].ID < ranked[j].ID
	})

	total := len(ranked)
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	resultType := "ok"
	if total == 0 {
		resultType = "zero_result"
	}
	r.metrics.QueriesTotal.WithLabelValues(resultType).Inc()
	r.metrics.QueryResultsCount.Observe(float64(len(ranked)))
	r.logger.Debug("query ranked",
		"terms", terms,
		"total_docs", total,
		"returned", len(ranked),
	)

	return &Result{
		Terms:     terms,
		TotalDocs: total,
		Results:   ranked,
	}, nil
}
