package sqlite

import (
	"crypto/md5" //nolint:gosec // duplicate detection, not security
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// WritingRepository persists agent output into the writings catalog shared
// with the reader service.
type WritingRepository struct {
	db *DB
}

func newWritingRepository(db *DB) *WritingRepository {
	return &WritingRepository{db: db}
}

// Save analyzes content, fills any fields the caller left empty from the
// analysis, and inserts a writings row plus its tags. The returned Writing
// carries the values actually stored.
func (r *WritingRepository) Save(req store.SaveWritingRequest) (store.Writing, error) {
	analysis := store.AnalyzeContent(req.Content)

	title := req.Title
	if title == "" {
		title = analysis.Title
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = analysis.ContentType
	}
	tags := req.Tags
	if len(tags) == 0 {
		tags = analysis.Tags
	}

	now := time.Now()
	filename := fmt.Sprintf("ai_generated_%s.txt", now.Format("20060102_150405.000"))
	words, characters, lines := store.CountMetrics(req.Content)

	// Explicit content always overrides the requested status, and high
	// quality drafts get promoted straight to ready.
	status := req.PublicationStatus
	if analysis.Explicit {
		status = "explicit"
	} else if req.PublicationStatus == "draft" && analysis.QualityScore > 7 {
		status = "ready"
	}

	notes := fmt.Sprintf("AI Generated on %s", now.Format("2006-01-02 15:04:05"))
	if analysis.Confidence < 0.8 {
		notes += fmt.Sprintf(" (Low confidence: %.2f)", analysis.Confidence)
	}
	if req.Notes != "" {
		notes = fmt.Sprintf("%s. %s", notes, req.Notes)
	}

	sum := md5.Sum([]byte(req.Content)) //nolint:gosec
	contentHash := hex.EncodeToString(sum[:])
	fingerprint := contentFingerprint(req.Content)

	writing := store.Writing{
		Title:             title,
		ContentType:       contentType,
		Content:           req.Content,
		OriginalFilename:  filename,
		WordCount:         words,
		CharacterCount:    characters,
		LineCount:         lines,
		Mood:              analysis.Mood,
		ExplicitContent:   analysis.Explicit,
		PublicationStatus: status,
		Notes:             notes,
		Tags:              tags,
		CreatedDate:       now.UTC(),
	}

	err := r.db.withRetry(func() error {
		tx, err := r.db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		result, err := tx.Exec(
			`INSERT INTO writings (
				title, content_type, content, original_filename,
				word_count, character_count, line_count, mood, explicit_content,
				publication_status, notes, file_timestamp, content_hash, content_fingerprint,
				created_date
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			title, contentType, req.Content, filename,
			words, characters, lines, analysis.Mood, analysis.Explicit,
			status, notes, formatTime(now), contentHash, fingerprint,
			formatTime(now))
		if err != nil {
			return fmt.Errorf("failed to insert writing: %w", err)
		}
		writingID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		writing.ID = writingID

		for _, tag := range tags {
			tagType := analysis.TagTypes[tag]
			if tagType == "" {
				tagType = "subject"
			}
			tagID, err := getOrCreateTag(tx, tag, tagType)
			if err != nil {
				return err
			}
			_, err = tx.Exec(
				`INSERT OR IGNORE INTO writing_tags (writing_id, tag_id) VALUES (?, ?)`,
				writingID, tagID)
			if err != nil {
				return fmt.Errorf("failed to link tag: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit writing: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Writing{}, err
	}
	return writing, nil
}

func getOrCreateTag(tx *sql.Tx, name, tagType string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to query tag: %w", err)
	}
	result, err := tx.Exec(`INSERT INTO tags (name, tag_type) VALUES (?, ?)`, name, tagType)
	if err != nil {
		return 0, fmt.Errorf("failed to create tag: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get tag id: %w", err)
	}
	return id, nil
}

// contentFingerprint keeps the head and tail of long content for cheap
// duplicate eyeballing.
func contentFingerprint(content string) string {
	runes := []rune(content)
	if len(runes) <= 200 {
		return content
	}
	return string(runes[:100]) + "..." + string(runes[len(runes)-100:])
}

// RecentToolWritings returns IDs of writings the agent tools created for a
// prompt within the last windowMinutes, oldest first. The notes marker
// written by the tools ties a writing back to its prompt.
func (r *WritingRepository) RecentToolWritings(promptID int64, contentType string, windowMinutes int) ([]int64, error) {
	var ids []int64
	err := r.db.withRetry(func() error {
		rows, err := r.db.conn.Query(
			`SELECT id FROM writings
			WHERE content_type = ?
			AND created_date >= datetime('now', ? || ' minutes')
			AND notes LIKE ?
			ORDER BY id ASC`,
			contentType, fmt.Sprintf("-%d", windowMinutes), fmt.Sprintf("%%Prompt #%d%%", promptID))
		if err != nil {
			return fmt.Errorf("failed to query recent writings: %w", err)
		}
		defer func() { _ = rows.Close() }()

		ids = ids[:0]
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("failed to scan writing id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Search finds writings matching the query against title or content, newest
// first. An empty query browses the catalog, optionally filtered by type.
func (r *WritingRepository) Search(search store.WritingSearch) ([]store.WritingSummary, error) {
	limit := search.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, title, content_type, word_count, publication_status,
		substr(content, 1, 100) FROM writings`
	var conditions []string
	var params []any

	if search.Query != "" {
		conditions = append(conditions, "(title LIKE ? OR content LIKE ?)")
		pattern := "%" + search.Query + "%"
		params = append(params, pattern, pattern)
	}
	if search.ContentType != "" {
		conditions = append(conditions, "content_type = ?")
		params = append(params, search.ContentType)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY file_timestamp DESC LIMIT ?"
	params = append(params, limit)

	var summaries []store.WritingSummary
	err := r.db.withRetry(func() error {
		rows, err := r.db.conn.Query(query, params...)
		if err != nil {
			return fmt.Errorf("failed to query writings: %w", err)
		}
		defer func() { _ = rows.Close() }()

		summaries = summaries[:0]
		for rows.Next() {
			var s store.WritingSummary
			var title, contentType, status, preview *string
			if err := rows.Scan(&s.ID, &title, &contentType, &s.WordCount, &status, &preview); err != nil {
				return fmt.Errorf("failed to scan writing summary: %w", err)
			}
			if title != nil {
				s.Title = *title
			}
			if contentType != nil {
				s.ContentType = *contentType
			}
			if status != nil {
				s.PublicationStatus = *status
			}
			if preview != nil {
				s.Preview = *preview
			}
			summaries = append(summaries, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// Stats aggregates catalog counts for the agents' stats tool.
func (r *WritingRepository) Stats() (store.Stats, error) {
	var stats store.Stats
	err := r.db.withRetry(func() error {
		var totalWords, avgWords *float64
		err := r.db.conn.QueryRow(
			`SELECT COUNT(*), SUM(word_count), AVG(word_count) FROM writings`).
			Scan(&stats.TotalWritings, &totalWords, &avgWords)
		if err != nil {
			return fmt.Errorf("failed to query writing totals: %w", err)
		}
		if totalWords != nil {
			stats.TotalWords = int(*totalWords)
		}
		if avgWords != nil {
			stats.AverageWords = *avgWords
		}

		rows, err := r.db.conn.Query(
			`SELECT content_type, COUNT(*),
				SUM(CASE WHEN explicit_content = 1 THEN 1 ELSE 0 END)
			FROM writings GROUP BY content_type ORDER BY COUNT(*) DESC`)
		if err != nil {
			return fmt.Errorf("failed to query counts by type: %w", err)
		}
		defer func() { _ = rows.Close() }()

		stats.ByContentType = stats.ByContentType[:0]
		for rows.Next() {
			var tc store.TypeCount
			var contentType *string
			if err := rows.Scan(&contentType, &tc.Count, &tc.Explicit); err != nil {
				return fmt.Errorf("failed to scan type count: %w", err)
			}
			if contentType != nil {
				tc.ContentType = *contentType
			}
			stats.ByContentType = append(stats.ByContentType, tc)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		statusRows, err := r.db.conn.Query(
			`SELECT publication_status, COUNT(*) FROM writings GROUP BY publication_status`)
		if err != nil {
			return fmt.Errorf("failed to query counts by status: %w", err)
		}
		defer func() { _ = statusRows.Close() }()

		stats.ByStatus = stats.ByStatus[:0]
		for statusRows.Next() {
			var sc store.StatusCount
			var status *string
			if err := statusRows.Scan(&status, &sc.Count); err != nil {
				return fmt.Errorf("failed to scan status count: %w", err)
			}
			if status != nil {
				sc.Status = *status
			}
			stats.ByStatus = append(stats.ByStatus, sc)
		}
		return statusRows.Err()
	})
	if err != nil {
		return store.Stats{}, err
	}
	return stats, nil
}

// Get returns a single writing row.
func (r *WritingRepository) Get(writingID int64) (store.Writing, error) {
	var writing store.Writing
	err := r.db.withRetry(func() error {
		var title, contentType, content, filename, mood, status, notes, createdDate *string
		var explicit *bool
		var sourcePromptID *int64
		err := r.db.conn.QueryRow(
			`SELECT id, title, content_type, content, original_filename,
				word_count, character_count, line_count, mood, explicit_content,
				publication_status, notes, source_prompt_id, created_date
			FROM writings WHERE id = ?`, writingID).
			Scan(&writing.ID, &title, &contentType, &content, &filename,
				&writing.WordCount, &writing.CharacterCount, &writing.LineCount, &mood, &explicit,
				&status, &notes, &sourcePromptID, &createdDate)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("writing %d not found", writingID)
		}
		if err != nil {
			return fmt.Errorf("failed to scan writing: %w", err)
		}
		if title != nil {
			writing.Title = *title
		}
		if contentType != nil {
			writing.ContentType = *contentType
		}
		if content != nil {
			writing.Content = *content
		}
		if filename != nil {
			writing.OriginalFilename = *filename
		}
		if mood != nil {
			writing.Mood = *mood
		}
		if explicit != nil {
			writing.ExplicitContent = *explicit
		}
		if status != nil {
			writing.PublicationStatus = *status
		}
		if notes != nil {
			writing.Notes = *notes
		}
		writing.SourcePromptID = sourcePromptID
		if createdDate != nil {
			if t, ok := parseTime(*createdDate); ok {
				writing.CreatedDate = t
			}
		}
		return nil
	})
	return writing, err
}
