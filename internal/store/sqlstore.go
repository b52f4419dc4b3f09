package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dangtom700/lexindex/pkg/sqldb"
)

// SQLStore implements Store over a sqldb.Client. The same SQL serves both
// engines; only the SQLite write-tuning pragmas are driver-specific.
type SQLStore struct {
	client *sqldb.Client
	logger *slog.Logger
}

// New wraps a connected client in a SQLStore.
func New(client *sqldb.Client) *SQLStore {
	return &SQLStore{
		client: client,
		logger: slog.Default().With("component", "store"),
	}
}

func (s *SQLStore) InitDocumentTables(ctx context.Context, opts ResetOptions) error {
	stmts := make([]string, 0, 5)
	if opts.Reset {
		stmts = append(stmts, `DROP TABLE IF EXISTS file_token`, `DROP TABLE IF EXISTS relation_distance`)
	}
	stmts = append(stmts, createFileToken, createRelationDistance, createRelationDistanceTokenIdx)
	return s.execAll(ctx, stmts)
}

func (s *SQLStore) InitResourceTable(ctx context.Context, opts ResetOptions) error {
	stmts := make([]string, 0, 2)
	if opts.Reset {
		stmts = append(stmts, `DROP TABLE IF EXISTS file_info`)
	}
	stmts = append(stmts, createFileInfo)
	return s.execAll(ctx, stmts)
}

func (s *SQLStore) InitGlobalTermsTable(ctx context.Context, opts ResetOptions) error {
	stmts := make([]string, 0, 2)
	if opts.Reset {
		stmts = append(stmts, `DROP TABLE IF EXISTS global_terms`)
	}
	stmts = append(stmts, createGlobalTerms)
	return s.execAll(ctx, stmts)
}

// WriteDocuments upserts the run's file_token rows and their
// relation_distance rows inside one transaction. A failure anywhere rolls
// back the whole run.
func (s *SQLStore) WriteDocuments(ctx context.Context, docs []DocumentRecord, terms []TermWeightRecord) error {
	if len(docs) == 0 && len(terms) == 0 {
		return nil
	}
	restore := s.tuneBulkWrites(ctx)
	defer restore()

	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		docStmt, err := tx.PrepareContext(ctx, upsertFileToken)
		if err != nil {
			return fmt.Errorf("preparing file_token upsert: %w", err)
		}
		defer docStmt.Close()

		termStmt, err := tx.PrepareContext(ctx, upsertRelationDistance)
		if err != nil {
			return fmt.Errorf("preparing relation_distance upsert: %w", err)
		}
		defer termStmt.Close()

		for _, doc := range docs {
			if _, err := docStmt.ExecContext(ctx, doc.Name, doc.TotalTokens, doc.UniqueTokens, doc.Norm); err != nil {
				return fmt.Errorf("upserting file_token row %s: %w", doc.Name, err)
			}
		}
		for _, term := range terms {
			if _, err := termStmt.ExecContext(ctx, term.Name, term.Token, term.Count, term.Weight); err != nil {
				return fmt.Errorf("upserting relation_distance row (%s, %s): %w", term.Name, term.Token, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("documents written", "docs", len(docs), "term_rows", len(terms))
	return nil
}

func (s *SQLStore) WriteResources(ctx context.Context, resources []ResourceRecord) error {
	if len(resources) == 0 {
		return nil
	}
	restore := s.tuneBulkWrites(ctx)
	defer restore()

	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertFileInfo)
		if err != nil {
			return fmt.Errorf("preparing file_info upsert: %w", err)
		}
		defer stmt.Close()

		for _, res := range resources {
			_, err := stmt.ExecContext(ctx,
				res.ID, res.Name, res.Path, res.EpochTime,
				res.ChunkCount, res.StartingID, res.EndingID,
			)
			if err != nil {
				return fmt.Errorf("upserting file_info row %s: %w", res.Name, err)
			}
		}
		return nil
	})
}

func (s *SQLStore) WriteGlobalTerms(ctx context.Context, terms []GlobalTermRecord) error {
	if len(terms) == 0 {
		return nil
	}
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertGlobalTerm)
		if err != nil {
			return fmt.Errorf("preparing global_terms upsert: %w", err)
		}
		defer stmt.Close()

		for _, term := range terms {
			if _, err := stmt.ExecContext(ctx, term.Term, term.Count, term.Frequency); err != nil {
				return fmt.Errorf("upserting global_terms row %s: %w", term.Term, err)
			}
		}
		return nil
	})
}

// TermWeights fetches every relation_distance row whose token is in the
// candidate set in a single query, so ranking never issues one round trip
// per (document, token) pair.
func (s *SQLStore) TermWeights(ctx context.Context, tokens []string) ([]TermWeightRecord, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(tokens))
	args := make([]any, len(tokens))
	for i, token := range tokens {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = token
	}
	query := fmt.Sprintf(
		`SELECT file_name, token, frequency, relational_distance
		 FROM relation_distance WHERE token IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	rows, err := s.client.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying term weights: %w", err)
	}
	defer rows.Close()

	var result []TermWeightRecord
	for rows.Next() {
		var rec TermWeightRecord
		if err := rows.Scan(&rec.Name, &rec.Token, &rec.Count, &rec.Weight); err != nil {
			return nil, fmt.Errorf("scanning term weight row: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating term weight rows: %w", err)
	}
	return result, nil
}

func (s *SQLStore) DocumentNames(ctx context.Context) ([]string, error) {
	rows, err := s.client.DB.QueryContext(ctx, selectDocumentNames)
	if err != nil {
		return nil, fmt.Errorf("querying document names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning document name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document names: %w", err)
	}
	return names, nil
}

func (s *SQLStore) ResourceIDs(ctx context.Context) (map[string]string, error) {
	rows, err := s.client.DB.QueryContext(ctx, selectResourceIDs)
	if err != nil {
		return nil, fmt.Errorf("querying resource ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]string)
	for rows.Next() {
		var name, id string
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("scanning resource id row: %w", err)
		}
		ids[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resource id rows: %w", err)
	}
	return ids, nil
}

// ChunkStats reads the pdf_chunks collaborator table. The table belongs to
// the chunking subsystem and may not exist yet; that counts as zero chunks,
// not a failure.
func (s *SQLStore) ChunkStats(ctx context.Context, path string) (ChunkStats, error) {
	var stats ChunkStats
	err := s.client.DB.QueryRowContext(ctx, selectChunkStats, path).
		Scan(&stats.Count, &stats.StartingID, &stats.EndingID)
	if err != nil {
		if isMissingTable(err) {
			return ChunkStats{}, nil
		}
		if err == sql.ErrNoRows {
			return ChunkStats{}, nil
		}
		return ChunkStats{}, fmt.Errorf("querying chunk stats for %s: %w", path, err)
	}
	return stats, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.client.DB.PingContext(ctx)
}

func (s *SQLStore) execAll(ctx context.Context, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := s.client.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// tuneBulkWrites relaxes SQLite's synchronous mode for the duration of a
// batch write and restores it afterwards. Postgres needs no equivalent.
func (s *SQLStore) tuneBulkWrites(ctx context.Context) func() {
	if s.client.Driver != "sqlite3" {
		return func() {}
	}
	if _, err := s.client.DB.ExecContext(ctx, `PRAGMA synchronous = OFF`); err != nil {
		s.logger.Warn("failed to relax synchronous mode", "error", err)
		return func() {}
	}
	return func() {
		if _, err := s.client.DB.ExecContext(context.Background(), `PRAGMA synchronous = FULL`); err != nil {
			s.logger.Warn("failed to restore synchronous mode", "error", err)
		}
	}
}

func isMissingTable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such table") || // sqlite
		strings.Contains(msg, "does not exist") // postgres
}
