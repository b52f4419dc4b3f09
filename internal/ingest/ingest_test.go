package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dangtom700/lexindex/internal/store"
	"github.com/dangtom700/lexindex/pkg/config"
	"github.com/dangtom700/lexindex/pkg/metrics"
	"github.com/dangtom700/lexindex/pkg/sqldb"
)

func newTestStore(t *testing.T) *store.SQLStore {
	t.Helper()
	client, err := sqldb.Open(context.Background(), config.StoreConfig{
		Driver: "sqlite3",
		Path:   ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return store.New(client)
}

func newTestPipeline(t *testing.T, st *store.SQLStore, cfg config.IngestConfig) *Pipeline {
	t.Helper()
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	return NewPipeline(st, cfg, metrics.NewWithRegistry(prometheus.NewRegistry()))
}

func writeTokenFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTokenFile(t, dir, "alpha.json", `{"cat": 5, "dog": 2}`)
	writeTokenFile(t, dir, "beta.json", `{"cat": 1, "dog": 9}`)
	writeTokenFile(t, dir, "notes.txt", `ignored, wrong extension`)

	st := newTestStore(t)
	p := newTestPipeline(t, st, config.IngestConfig{
		TokenDir:       dir,
		MaxTokenLength: 16,
		MinTokenCount:  1,
		FailurePolicy:  "abort",
	})

	summary, err := p.RunIndex(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "index", summary.Kind)
	require.Equal(t, 2, summary.Documents)
	require.Equal(t, 4, summary.TermRows)
	require.Empty(t, summary.Failures)

	names, err := st.DocumentNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, names)

	rows, err := st.TermWeights(ctx, []string{"cat", "dog"})
	require.NoError(t, err)
	require.Len(t, rows, 4)
}

func TestRunIndexFilterThresholds(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// "rare" falls under the min-count gate, "Capitals" under the alpha
	// gate; both still count toward the norm.
	writeTokenFile(t, dir, "alpha.json", `{"cat": 5, "rare": 1, "Capitals": 3}`)

	st := newTestStore(t)
	p := newTestPipeline(t, st, config.IngestConfig{
		TokenDir:       dir,
		MaxTokenLength: 14,
		MinTokenCount:  3,
		FailurePolicy:  "abort",
	})

	summary, err := p.RunIndex(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Documents)
	require.Equal(t, 1, summary.TermRows)

	rows, err := st.TermWeights(ctx, []string{"cat", "rare"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "cat", rows[0].Token)
	// weight = 5 / sqrt(25 + 1 + 9)
	require.InDelta(t, 5.0/5.9160797830996161, rows[0].Weight, 1e-9)
}

func TestRunIndexAbortPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTokenFile(t, dir, "alpha.json", `{"cat": 5}`)
	writeTokenFile(t, dir, "broken.json", `{not json`)

	st := newTestStore(t)
	p := newTestPipeline(t, st, config.IngestConfig{
		TokenDir:       dir,
		MaxTokenLength: 16,
		MinTokenCount:  1,
		FailurePolicy:  "abort",
	})

	_, err := p.RunIndex(ctx, false)
	require.Error(t, err)

	// Nothing committed.
	names, listErr := st.DocumentNames(ctx)
	require.NoError(t, listErr)
	require.Empty(t, names)
}

func TestRunIndexContinuePolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTokenFile(t, dir, "alpha.json", `{"cat": 5}`)
	writeTokenFile(t, dir, "broken.json", `{not json`)
	writeTokenFile(t, dir, "empty.json", `{}`)

	st := newTestStore(t)
	p := newTestPipeline(t, st, config.IngestConfig{
		TokenDir:       dir,
		MaxTokenLength: 16,
		MinTokenCount:  1,
		FailurePolicy:  "continue",
	})

	summary, err := p.RunIndex(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Documents)
	require.Len(t, summary.Failures, 2)
	require.Equal(t, "broken", summary.Failures[0].Document)
	require.Equal(t, "empty", summary.Failures[1].Document)

	names, err := st.DocumentNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, names)
}

func TestRunIndexReset(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTokenFile(t, dir, "alpha.json", `{"cat": 5}`)

	st := newTestStore(t)
	p := newTestPipeline(t, st, config.IngestConfig{
		TokenDir:       dir,
		MaxTokenLength: 16,
		MinTokenCount:  1,
		FailurePolicy:  "abort",
	})

	_, err := p.RunIndex(ctx, false)
	require.NoError(t, err)

	// Replace the corpus and reset; the old document must be gone.
	require.NoError(t, os.Remove(filepath.Join(dir, "alpha.json")))
	writeTokenFile(t, dir, "beta.json", `{"dog": 2}`)

	_, err = p.RunIndex(ctx, true)
	require.NoError(t, err)

	names, err := st.DocumentNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"beta"}, names)
}

func TestRunResources(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.pdf"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "beta.PDF"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("x"), 0o644))

	st := newTestStore(t)
	p := newTestPipeline(t, st, config.IngestConfig{
		ResourceDir:   dir,
		ResourceExt:   ".pdf",
		FailurePolicy: "abort",
	})

	summary, err := p.RunResources(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "resources", summary.Kind)
	require.Equal(t, 2, summary.Documents)

	ids, err := st.ResourceIDs(ctx)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotEmpty(t, ids["alpha"])
	require.NotEmpty(t, ids["beta"])
	require.NotEqual(t, ids["alpha"], ids["beta"])

	// Re-running upserts rather than duplicating.
	summary, err = p.RunResources(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Documents)
	idsAgain, err := st.ResourceIDs(ctx)
	require.NoError(t, err)
	require.Len(t, idsAgain, 2)
}

func TestRunGlobalTerms(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	termsFile := filepath.Join(dir, "global_terms.json")
	require.NoError(t, os.WriteFile(termsFile, []byte(`{"cat": 6, "dog": 4, "x1": 5}`), 0o644))

	st := newTestStore(t)
	p := newTestPipeline(t, st, config.IngestConfig{
		GlobalTermsFile: termsFile,
		MaxTokenLength:  14,
		MinTokenCount:   1,
		FailurePolicy:   "abort",
	})

	summary, err := p.RunGlobalTerms(ctx, false)
	require.NoError(t, err)
	require.Equal(t, "terms", summary.Kind)
	// "x1" fails the alpha gate but its count stays in the denominator.
	require.Equal(t, 2, summary.Documents)
}

func TestDocumentName(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"tokens/alpha.json", "alpha"},
		{"alpha.json", "alpha"},
		{"deep/path/report.v2.json", "report.v2"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := documentName(tt.file); got != tt.want {
			t.Errorf("documentName(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}
