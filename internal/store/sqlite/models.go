package sqlite

import (
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// timeLayout matches SQLite's CURRENT_TIMESTAMP text so values the reader
// service writes and values we write sort and compare correctly.
const timeLayout = "2006-01-02 15:04:05"

// parseLayouts covers the formats found in databases this service has
// co-owned: CURRENT_TIMESTAMP text, ISO-8601 with and without fractional
// seconds, and RFC 3339.
var parseLayouts = []string{
	timeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	time.RFC3339,
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// promptColumns is the list of columns to select for prompt queries.
const promptColumns = `id, prompt_text, prompt_type, status, artifact_status, priority, metadata,
	created_at, processed_at, completed_at, output_reference, artifact_metadata, error_message`

// promptModel represents the database row for the prompts table. Timestamps
// are kept as text until conversion because the co-owner writes several
// formats.
type promptModel struct {
	ID               int64
	PromptText       string
	PromptType       *string
	Status           *string
	ArtifactStatus   *string
	Priority         *int64
	Metadata         *string
	CreatedAt        *string
	ProcessedAt      *string
	CompletedAt      *string
	OutputReference  *int64
	ArtifactMetadata *string
	ErrorMessage     *string
}

// scanPrompt scans a row into a promptModel.
func scanPrompt(scanner interface{ Scan(...any) error }) (*promptModel, error) {
	var m promptModel
	err := scanner.Scan(
		&m.ID, &m.PromptText, &m.PromptType, &m.Status, &m.ArtifactStatus,
		&m.Priority, &m.Metadata,
		&m.CreatedAt, &m.ProcessedAt, &m.CompletedAt,
		&m.OutputReference, &m.ArtifactMetadata, &m.ErrorMessage,
	)
	return &m, err
}

// toDomain converts a promptModel to a store.Prompt.
func (m *promptModel) toDomain() store.Prompt {
	p := store.Prompt{
		ID:              m.ID,
		PromptText:      m.PromptText,
		PromptType:      "text",
		OutputReference: m.OutputReference,
	}
	if m.PromptType != nil && *m.PromptType != "" {
		p.PromptType = *m.PromptType
	}
	if m.Status != nil {
		p.Status = *m.Status
	}
	if m.ArtifactStatus != nil {
		p.ArtifactStatus = *m.ArtifactStatus
	}
	if m.Priority != nil {
		p.Priority = int(*m.Priority)
	}
	if m.Metadata != nil {
		p.Metadata = *m.Metadata
	}
	if m.ArtifactMetadata != nil {
		p.ArtifactMetadata = *m.ArtifactMetadata
	}
	if m.ErrorMessage != nil {
		p.ErrorMessage = *m.ErrorMessage
	}
	if m.CreatedAt != nil {
		if t, ok := parseTime(*m.CreatedAt); ok {
			p.CreatedAt = t
		}
	}
	if m.ProcessedAt != nil {
		if t, ok := parseTime(*m.ProcessedAt); ok {
			p.ProcessedAt = &t
		}
	}
	if m.CompletedAt != nil {
		if t, ok := parseTime(*m.CompletedAt); ok {
			p.CompletedAt = &t
		}
	}
	return p
}

// linkedWritingModel is one prompt_writings row joined with its writing.
type linkedWritingModel struct {
	WritingID   int64
	Order       int
	Title       *string
	ContentType *string
	Content     *string
}

func scanLinkedWriting(scanner interface{ Scan(...any) error }) (*linkedWritingModel, error) {
	var m linkedWritingModel
	err := scanner.Scan(&m.WritingID, &m.Order, &m.Title, &m.ContentType, &m.Content)
	return &m, err
}

func (m *linkedWritingModel) toDomain() store.LinkedWriting {
	w := store.LinkedWriting{
		ID:    m.WritingID,
		Order: m.Order,
	}
	if m.Title != nil {
		w.Title = *m.Title
	}
	if m.ContentType != nil {
		w.ContentType = *m.ContentType
	}
	if m.Content != nil {
		w.Content = *m.Content
	}
	return w
}

// nullable returns nil for an empty string so the column stores NULL rather
// than "".
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
