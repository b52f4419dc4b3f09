package store

// DDL shared by both engines. SQLite accepts the Postgres type names, and
// both engines support ON CONFLICT upserts and $N placeholders, so a single
// dialect covers the whole schema.

const (
	createFileToken = `
		CREATE TABLE IF NOT EXISTS file_token (
			file_name TEXT PRIMARY KEY,
			total_tokens INTEGER NOT NULL,
			unique_tokens INTEGER NOT NULL,
			relational_distance DOUBLE PRECISION NOT NULL
		)`

	createRelationDistance = `
		CREATE TABLE IF NOT EXISTS relation_distance (
			file_name TEXT NOT NULL,
			token TEXT NOT NULL,
			frequency INTEGER NOT NULL,
			relational_distance DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (file_name, token)
		)`

	createRelationDistanceTokenIdx = `
		CREATE INDEX IF NOT EXISTS idx_relation_distance_token
			ON relation_distance (token)`

	createFileInfo = `
		CREATE TABLE IF NOT EXISTS file_info (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			epoch_time BIGINT NOT NULL,
			chunk_count INTEGER NOT NULL,
			starting_id INTEGER NOT NULL,
			ending_id INTEGER NOT NULL
		)`

	createGlobalTerms = `
		CREATE TABLE IF NOT EXISTS global_terms (
			term TEXT PRIMARY KEY,
			count INTEGER NOT NULL,
			frequency DOUBLE PRECISION NOT NULL
		)`

	upsertFileToken = `
		INSERT INTO file_token (file_name, total_tokens, unique_tokens, relational_distance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_name) DO UPDATE SET
			total_tokens = excluded.total_tokens,
			unique_tokens = excluded.unique_tokens,
			relational_distance = excluded.relational_distance`

	upsertRelationDistance = `
		INSERT INTO relation_distance (file_name, token, frequency, relational_distance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_name, token) DO UPDATE SET
			frequency = excluded.frequency,
			relational_distance = excluded.relational_distance`

	upsertFileInfo = `
		INSERT INTO file_info (id, file_name, file_path, epoch_time, chunk_count, starting_id, ending_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			file_name = excluded.file_name,
			file_path = excluded.file_path,
			epoch_time = excluded.epoch_time,
			chunk_count = excluded.chunk_count,
			starting_id = excluded.starting_id,
			ending_id = excluded.ending_id`

	upsertGlobalTerm = `
		INSERT INTO global_terms (term, count, frequency)
		VALUES ($1, $2, $3)
		ON CONFLICT (term) DO UPDATE SET
			count = excluded.count,
			frequency = excluded.frequency`

	selectDocumentNames = `SELECT file_name FROM file_token ORDER BY file_name`

	selectResourceIDs = `SELECT file_name, id FROM file_info`

	selectChunkStats = `
		SELECT COUNT(chunk_index), COALESCE(MIN(id), 0), COALESCE(MAX(id), 0)
		FROM pdf_chunks WHERE file_name = $1`
)
