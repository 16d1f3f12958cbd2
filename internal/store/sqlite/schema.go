package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
)

// The prompts and prompt_writings tables belong to this service. The
// writings, tags and writing_tags tables are owned by the reader service;
// we create a compatible subset so the agent tools work against a fresh
// database, and IF NOT EXISTS keeps us from touching an existing one.
const (
	createPromptsTable = `
		CREATE TABLE IF NOT EXISTS prompts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt_text TEXT NOT NULL,
			prompt_type TEXT DEFAULT 'text',
			status TEXT DEFAULT 'unprocessed',
			priority INTEGER DEFAULT 5,
			config_name TEXT,
			metadata TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			processed_at TIMESTAMP,
			completed_at TIMESTAMP,
			output_reference INTEGER,
			error_message TEXT,
			processing_duration INTEGER
		)`

	createPromptWritingsTable = `
		CREATE TABLE IF NOT EXISTS prompt_writings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt_id INTEGER NOT NULL,
			writing_id INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			writing_order INTEGER DEFAULT 0,
			FOREIGN KEY (prompt_id) REFERENCES prompts(id) ON DELETE CASCADE,
			FOREIGN KEY (writing_id) REFERENCES writings(id) ON DELETE CASCADE,
			UNIQUE(prompt_id, writing_id)
		)`

	createPromptArtifactsTable = `
		CREATE TABLE IF NOT EXISTS prompt_artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			prompt_id INTEGER NOT NULL,
			artifact_type TEXT NOT NULL,
			file_path TEXT NOT NULL,
			preview_path TEXT,
			metadata TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(prompt_id) REFERENCES prompts(id) ON DELETE CASCADE
		)`

	createWritingsTable = `
		CREATE TABLE IF NOT EXISTS writings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT,
			content_type TEXT,
			content TEXT,
			original_filename TEXT,
			word_count INTEGER DEFAULT 0,
			character_count INTEGER DEFAULT 0,
			line_count INTEGER DEFAULT 0,
			mood TEXT,
			explicit_content INTEGER DEFAULT 0,
			publication_status TEXT DEFAULT 'draft',
			notes TEXT,
			file_timestamp TIMESTAMP,
			content_hash TEXT,
			content_fingerprint TEXT,
			source_prompt_id INTEGER,
			created_date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`

	createTagsTable = `
		CREATE TABLE IF NOT EXISTS tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			tag_type TEXT DEFAULT 'subject'
		)`

	createWritingTagsTable = `
		CREATE TABLE IF NOT EXISTS writing_tags (
			writing_id INTEGER NOT NULL,
			tag_id INTEGER NOT NULL,
			UNIQUE(writing_id, tag_id),
			FOREIGN KEY (writing_id) REFERENCES writings(id) ON DELETE CASCADE,
			FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
		)`
)

var createIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_prompt_writings_prompt_id ON prompt_writings(prompt_id)`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_writings_writing_id ON prompt_writings(writing_id)`,
}

// ensureSchema creates missing tables and applies the additive prompt
// migrations. Every step is idempotent so concurrent service starts and
// repeated runs are safe.
func ensureSchema(conn *sql.DB, path string) error {
	tables := []string{
		createWritingsTable,
		createTagsTable,
		createWritingTagsTable,
		createPromptsTable,
		createPromptWritingsTable,
		createPromptArtifactsTable,
	}
	for _, ddl := range tables {
		if _, err := conn.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, ddl := range createIndexes {
		if _, err := conn.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := migratePromptColumns(conn, path); err != nil {
		return err
	}
	if err := backfillPromptWritings(conn); err != nil {
		return err
	}
	return nil
}

// migratePromptColumns adds the artifact columns to databases created before
// media support existed. The table_info probe guards the ALTERs because
// SQLite has no ADD COLUMN IF NOT EXISTS.
func migratePromptColumns(conn *sql.DB, path string) error {
	rows, err := conn.Query(`PRAGMA table_info('prompts')`)
	if err != nil {
		return fmt.Errorf("failed to inspect prompts table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	existing := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    *string
			notNull    int
			defaultVal *string
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return fmt.Errorf("failed to scan column info: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read column info: %w", err)
	}

	var alters []string
	if !existing["artifact_status"] {
		alters = append(alters, `ALTER TABLE prompts ADD COLUMN artifact_status TEXT DEFAULT 'pending'`)
	}
	if !existing["artifact_metadata"] {
		alters = append(alters, `ALTER TABLE prompts ADD COLUMN artifact_metadata TEXT`)
	}
	if len(alters) == 0 {
		return nil
	}

	// Only schema-changing runs take a backup.
	backupFile(path)
	for _, ddl := range alters {
		if _, err := conn.Exec(ddl); err != nil {
			return fmt.Errorf("failed to alter prompts table: %w", err)
		}
	}
	log.Info(log.CatStore, "added artifact columns to prompts table", "columns", len(alters))
	return nil
}

// backfillPromptWritings seeds the junction table from output_reference for
// rows recorded before the junction table existed.
func backfillPromptWritings(conn *sql.DB) error {
	// The EXISTS guard skips references to writings another service has
	// deleted; with foreign keys on those rows would fail the insert.
	res, err := conn.Exec(`
		INSERT OR IGNORE INTO prompt_writings (prompt_id, writing_id, writing_order)
		SELECT p.id, p.output_reference, 0
		FROM prompts p
		WHERE p.output_reference IS NOT NULL
		AND EXISTS (SELECT 1 FROM writings w WHERE w.id = p.output_reference)
		AND NOT EXISTS (
			SELECT 1 FROM prompt_writings pw
			WHERE pw.prompt_id = p.id AND pw.writing_id = p.output_reference
		)`)
	if err != nil {
		return fmt.Errorf("failed to backfill prompt references: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Info(log.CatStore, "migrated prompt references to junction table", "count", n)
	}
	return nil
}
