package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// PromptRepository provides access to the prompts queue and its junction
// tables.
type PromptRepository struct {
	db *DB
}

func newPromptRepository(db *DB) *PromptRepository {
	return &PromptRepository{db: db}
}

// NextTextPrompts returns up to limit unprocessed prompts ordered by
// priority (lowest first) then creation time.
func (r *PromptRepository) NextTextPrompts(limit int) ([]store.Prompt, error) {
	var prompts []store.Prompt
	err := r.db.withRetry(func() error {
		rows, err := r.db.conn.Query(
			`SELECT `+promptColumns+`
			FROM prompts
			WHERE status = 'unprocessed'
			ORDER BY priority ASC, created_at ASC
			LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("failed to query unprocessed prompts: %w", err)
		}
		defer func() { _ = rows.Close() }()

		prompts = prompts[:0]
		for rows.Next() {
			model, err := scanPrompt(rows)
			if err != nil {
				return fmt.Errorf("failed to scan prompt: %w", err)
			}
			prompts = append(prompts, model.toDomain())
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return prompts, nil
}

// NextMediaPrompts returns up to limit completed structured prompts whose
// artifacts are still pending, each with all of its linked writings.
func (r *PromptRepository) NextMediaPrompts(limit int) ([]store.MediaPrompt, error) {
	var prompts []store.MediaPrompt
	err := r.db.withRetry(func() error {
		rows, err := r.db.conn.Query(
			`SELECT `+promptColumns+`
			FROM prompts
			WHERE status = 'completed'
			AND artifact_status = 'pending'
			AND prompt_type IN ('image_prompt', 'lyrics_prompt')
			ORDER BY priority ASC, created_at ASC
			LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("failed to query pending media prompts: %w", err)
		}
		defer func() { _ = rows.Close() }()

		prompts = prompts[:0]
		for rows.Next() {
			model, err := scanPrompt(rows)
			if err != nil {
				return fmt.Errorf("failed to scan prompt: %w", err)
			}
			prompts = append(prompts, store.MediaPrompt{Prompt: model.toDomain()})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	for i := range prompts {
		writings, err := r.WritingsFor(prompts[i].ID)
		if err != nil {
			return nil, err
		}
		prompts[i].Writings = writings
	}
	return prompts, nil
}

// WritingsFor returns all writings linked to a prompt in writing order.
func (r *PromptRepository) WritingsFor(promptID int64) ([]store.LinkedWriting, error) {
	var writings []store.LinkedWriting
	err := r.db.withRetry(func() error {
		rows, err := r.db.conn.Query(
			`SELECT pw.writing_id, pw.writing_order, w.title, w.content_type, w.content
			FROM prompt_writings pw
			JOIN writings w ON pw.writing_id = w.id
			WHERE pw.prompt_id = ?
			ORDER BY pw.writing_order ASC`, promptID)
		if err != nil {
			return fmt.Errorf("failed to query prompt writings: %w", err)
		}
		defer func() { _ = rows.Close() }()

		writings = writings[:0]
		for rows.Next() {
			model, err := scanLinkedWriting(rows)
			if err != nil {
				return fmt.Errorf("failed to scan prompt writing: %w", err)
			}
			writings = append(writings, model.toDomain())
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return writings, nil
}

// Get returns a single prompt by ID.
func (r *PromptRepository) Get(promptID int64) (store.Prompt, error) {
	var prompt store.Prompt
	err := r.db.withRetry(func() error {
		row := r.db.conn.QueryRow(
			`SELECT `+promptColumns+` FROM prompts WHERE id = ?`, promptID)
		model, err := scanPrompt(row)
		if errors.Is(err, sql.ErrNoRows) {
			return &store.PromptNotFoundError{ID: promptID}
		}
		if err != nil {
			return fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompt = model.toDomain()
		return nil
	})
	return prompt, err
}

// Insert adds a new prompt to the queue and returns its ID. Used by tests
// and by operators seeding work through the CLI.
func (r *PromptRepository) Insert(promptText, promptType string, priority int, metadata string) (int64, error) {
	var id int64
	err := r.db.withRetry(func() error {
		result, err := r.db.conn.Exec(
			`INSERT INTO prompts (prompt_text, prompt_type, status, priority, metadata, artifact_status)
			VALUES (?, ?, 'unprocessed', ?, ?, 'pending')`,
			promptText, promptType, priority, nullable(metadata))
		if err != nil {
			return fmt.Errorf("failed to insert prompt: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		return nil
	})
	return id, err
}

// UpdateStatus applies a status transition. Timestamps follow the status:
// processing stamps processed_at, completed and failed stamp completed_at.
// Error messages are cleared when leaving a failed state unless the update
// carries one.
func (r *PromptRepository) UpdateStatus(promptID int64, update store.StatusUpdate) error {
	now := formatTime(time.Now())

	assignments := []string{"status = ?"}
	values := []any{update.Status}

	switch update.Status {
	case store.StatusProcessing:
		assignments = append(assignments, "processed_at = ?")
		values = append(values, now)
	case store.StatusCompleted, store.StatusFailed:
		assignments = append(assignments, "completed_at = ?")
		values = append(values, now)
	}

	if update.ErrorMessage != nil {
		assignments = append(assignments, "error_message = ?")
		values = append(values, *update.ErrorMessage)
	} else if update.Status != store.StatusFailed {
		assignments = append(assignments, "error_message = NULL")
	}

	if update.ArtifactStatus != nil {
		assignments = append(assignments, "artifact_status = ?")
		values = append(values, *update.ArtifactStatus)
	}
	if update.ArtifactMetadata != nil {
		assignments = append(assignments, "artifact_metadata = ?")
		values = append(values, *update.ArtifactMetadata)
	}

	values = append(values, promptID)
	query := fmt.Sprintf("UPDATE prompts SET %s WHERE id = ?", strings.Join(assignments, ", "))

	return r.db.withRetry(func() error {
		result, err := r.db.conn.Exec(query, values...)
		if err != nil {
			return fmt.Errorf("failed to update prompt status: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return &store.PromptNotFoundError{ID: promptID}
		}
		return nil
	})
}

// InsertArtifacts records generated artifact rows for a prompt. All rows are
// written in one transaction so a partial batch never persists.
func (r *PromptRepository) InsertArtifacts(promptID int64, artifacts []store.Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	return r.db.withRetry(func() error {
		tx, err := r.db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.Prepare(
			`INSERT INTO prompt_artifacts (prompt_id, artifact_type, file_path, preview_path, metadata)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare artifact insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, artifact := range artifacts {
			_, err := stmt.Exec(
				promptID, artifact.ArtifactType, artifact.FilePath,
				nullable(artifact.PreviewPath), nullable(artifact.Metadata))
			if err != nil {
				return fmt.Errorf("failed to insert artifact: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit artifacts: %w", err)
		}
		return nil
	})
}

// LinkWritings attaches writings to a prompt through the junction table,
// continuing from the highest existing order. It also stamps each writing's
// source_prompt_id and points output_reference at the last writing linked.
func (r *PromptRepository) LinkWritings(promptID int64, writingIDs []int64) error {
	if len(writingIDs) == 0 {
		return nil
	}
	return r.db.withRetry(func() error {
		tx, err := r.db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var maxOrder int
		err = tx.QueryRow(
			`SELECT COALESCE(MAX(writing_order), -1) FROM prompt_writings WHERE prompt_id = ?`,
			promptID).Scan(&maxOrder)
		if err != nil {
			return fmt.Errorf("failed to query writing order: %w", err)
		}

		order := maxOrder + 1
		for _, writingID := range writingIDs {
			_, err := tx.Exec(
				`INSERT OR IGNORE INTO prompt_writings (prompt_id, writing_id, writing_order)
				VALUES (?, ?, ?)`, promptID, writingID, order)
			if err != nil {
				return fmt.Errorf("failed to link writing: %w", err)
			}
			_, err = tx.Exec(
				`UPDATE writings SET source_prompt_id = ? WHERE id = ?`, promptID, writingID)
			if err != nil {
				return fmt.Errorf("failed to stamp writing source: %w", err)
			}
			order++
		}

		// output_reference keeps pointing at the most recent writing for
		// readers that predate the junction table.
		_, err = tx.Exec(
			`UPDATE prompts SET output_reference = ? WHERE id = ?`,
			writingIDs[len(writingIDs)-1], promptID)
		if err != nil {
			return fmt.Errorf("failed to update output reference: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit writing links: %w", err)
		}
		return nil
	})
}
