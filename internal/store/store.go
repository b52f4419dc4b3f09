// Package store owns the persisted index: per-document totals, per-token
// weights, resource metadata, and corpus-wide term stats. The Store
// interface is the narrow contract the ingestion and ranking engines depend
// on; sqlstore.go implements it over database/sql for SQLite and PostgreSQL.
package store

import "context"

// DocumentRecord is one row of file_token: per-document totals keyed by the
// document name (file stem).
type DocumentRecord struct {
	Name         string
	TotalTokens  int
	UniqueTokens int
	Norm         float64
}

// TermWeightRecord is one row of relation_distance: a surviving filtered
// token and its weight within one document. (Name, Token) is the composite
// key.
type TermWeightRecord struct {
	Name   string
	Token  string
	Count  int
	Weight float64
}

// ResourceRecord is one row of file_info: source-file metadata keyed by the
// derived identifier, correlating the index with the chunking subsystem.
type ResourceRecord struct {
	ID         string
	Name       string
	Path       string
	EpochTime  int64
	ChunkCount int
	StartingID int
	EndingID   int
}

// GlobalTermRecord is one row of global_terms: corpus-wide usage of a term.
type GlobalTermRecord struct {
	Term      string
	Count     int
	Frequency float64
}

// ChunkStats summarizes the pdf_chunks collaborator table for one source
// file: how many chunks it has and the id range they occupy.
type ChunkStats struct {
	Count      int
	StartingID int
	EndingID   int
}

// ResetOptions chooses, per table group, between a drop-and-recreate reset
// and an incremental upsert into the existing schema.
type ResetOptions struct {
	Reset bool
}

// Store is the storage port for the index. All batch writes are atomic: one
// transaction per call, all rows visible or none.
type Store interface {
	// InitDocumentTables creates (or drops and recreates) file_token and
	// relation_distance.
	InitDocumentTables(ctx context.Context, opts ResetOptions) error
	// InitResourceTable creates (or drops and recreates) file_info.
	InitResourceTable(ctx context.Context, opts ResetOptions) error
	// InitGlobalTermsTable creates (or drops and recreates) global_terms.
	InitGlobalTermsTable(ctx context.Context, opts ResetOptions) error

	// WriteDocuments upserts one ingestion run's document rows and their
	// term weights in a single transaction.
	WriteDocuments(ctx context.Context, docs []DocumentRecord, terms []TermWeightRecord) error
	// WriteResources upserts resource metadata rows in a single transaction.
	WriteResources(ctx context.Context, resources []ResourceRecord) error
	// WriteGlobalTerms upserts the corpus-wide term rows in a single
	// transaction.
	WriteGlobalTerms(ctx context.Context, terms []GlobalTermRecord) error

	// TermWeights bulk-fetches every stored term weight whose token is in
	// the candidate set, across all documents, in one read.
	TermWeights(ctx context.Context, tokens []string) ([]TermWeightRecord, error)
	// DocumentNames lists every indexed document name.
	DocumentNames(ctx context.Context) ([]string, error)
	// ResourceIDs maps document names to their derived resource ids.
	ResourceIDs(ctx context.Context) (map[string]string, error)
	// ChunkStats consults the pdf_chunks collaborator table for one source
	// file path. Missing rows yield zero stats, not an error.
	ChunkStats(ctx context.Context, path string) (ChunkStats, error)

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error
}
