package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dangtom700/lexindex/pkg/config"
	"github.com/dangtom700/lexindex/pkg/sqldb"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	client, err := sqldb.Open(context.Background(), config.StoreConfig{
		Driver: "sqlite3",
		Path:   ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func TestWriteDocumentsAndTermWeights(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.InitDocumentTables(ctx, ResetOptions{}))

	docs := []DocumentRecord{
		{Name: "alpha", TotalTokens: 7, UniqueTokens: 2, Norm: 5.385},
		{Name: "beta", TotalTokens: 10, UniqueTokens: 2, Norm: 9.055},
	}
	terms := []TermWeightRecord{
		{Name: "alpha", Token: "cat", Count: 5, Weight: 0.928},
		{Name: "alpha", Token: "dog", Count: 2, Weight: 0.371},
		{Name: "beta", Token: "cat", Count: 1, Weight: 0.110},
		{Name: "beta", Token: "dog", Count: 9, Weight: 0.994},
	}
	require.NoError(t, st.WriteDocuments(ctx, docs, terms))

	names, err := st.DocumentNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, names)

	rows, err := st.TermWeights(ctx, []string{"cat"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Equal(t, "cat", row.Token)
	}

	rows, err = st.TermWeights(ctx, []string{"cat", "dog"})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	rows, err = st.TermWeights(ctx, []string{"fish"})
	require.NoError(t, err)
	require.Empty(t, rows)

	rows, err = st.TermWeights(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestWriteDocumentsUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.InitDocumentTables(ctx, ResetOptions{}))

	docs := []DocumentRecord{{Name: "alpha", TotalTokens: 7, UniqueTokens: 2, Norm: 5.385}}
	terms := []TermWeightRecord{{Name: "alpha", Token: "cat", Count: 5, Weight: 0.9}}
	require.NoError(t, st.WriteDocuments(ctx, docs, terms))

	// Second run replaces the rows instead of duplicating or failing.
	terms[0].Weight = 0.5
	require.NoError(t, st.WriteDocuments(ctx, docs, terms))

	rows, err := st.TermWeights(ctx, []string{"cat"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.InDelta(t, 0.5, rows[0].Weight, 1e-9)

	names, err := st.DocumentNames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, names)
}

func TestInitDocumentTablesReset(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.InitDocumentTables(ctx, ResetOptions{}))
	require.NoError(t, st.WriteDocuments(ctx,
		[]DocumentRecord{{Name: "alpha", TotalTokens: 1, UniqueTokens: 1, Norm: 1}},
		[]TermWeightRecord{{Name: "alpha", Token: "cat", Count: 1, Weight: 1}},
	))

	require.NoError(t, st.InitDocumentTables(ctx, ResetOptions{Reset: true}))
	names, err := st.DocumentNames(ctx)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestWriteResourcesAndResourceIDs(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.InitResourceTable(ctx, ResetOptions{}))

	resources := []ResourceRecord{
		{ID: "abc123", Name: "alpha", Path: "docs/alpha.pdf", EpochTime: 1700000000, ChunkCount: 3, StartingID: 1, EndingID: 3},
		{ID: "def456", Name: "beta", Path: "docs/beta.pdf", EpochTime: 1700000001, ChunkCount: 2, StartingID: 4, EndingID: 5},
	}
	require.NoError(t, st.WriteResources(ctx, resources))

	ids, err := st.ResourceIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"alpha": "abc123", "beta": "def456"}, ids)
}

func TestWriteGlobalTerms(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.InitGlobalTermsTable(ctx, ResetOptions{}))

	terms := []GlobalTermRecord{
		{Term: "cat", Count: 6, Frequency: 0.6},
		{Term: "dog", Count: 4, Frequency: 0.4},
	}
	require.NoError(t, st.WriteGlobalTerms(ctx, terms))
	// Upsert again with new values.
	terms[0].Count = 8
	require.NoError(t, st.WriteGlobalTerms(ctx, terms))
}

func TestChunkStatsMissingTable(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	// pdf_chunks belongs to the chunking subsystem and may not exist in a
	// standalone index database.
	stats, err := st.ChunkStats(ctx, "docs/alpha.pdf")
	require.NoError(t, err)
	require.Zero(t, stats.Count)
	require.Zero(t, stats.StartingID)
	require.Zero(t, stats.EndingID)
}

func TestChunkStats(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.client.DB.ExecContext(ctx, `
		CREATE TABLE pdf_chunks (
			id INTEGER PRIMARY KEY,
			file_name TEXT NOT NULL,
			chunk_index INTEGER NOT NULL
		)`)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := st.client.DB.ExecContext(ctx,
			`INSERT INTO pdf_chunks (id, file_name, chunk_index) VALUES ($1, $2, $3)`,
			10+i, "docs/alpha.pdf", i,
		)
		require.NoError(t, err)
	}

	stats, err := st.ChunkStats(ctx, "docs/alpha.pdf")
	require.NoError(t, err)
	require.Equal(t, ChunkStats{Count: 3, StartingID: 10, EndingID: 12}, stats)

	stats, err = st.ChunkStats(ctx, "docs/unknown.pdf")
	require.NoError(t, err)
	require.Zero(t, stats.Count)
}
