package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
	"github.com/dmcsvoices/creative-ai-agents/internal/store/sqlite"
)

// Builder accumulates test rows and inserts them through the repositories
// in dependency order. Rows are named by caller-chosen keys because the
// database assigns the numeric IDs; PromptID and WritingID resolve the keys
// after Build.
type Builder struct {
	t          *testing.T
	db         *sqlite.DB
	writings   []writingData
	prompts    []promptData
	writingIDs map[string]int64
	promptIDs  map[string]int64
}

// NewBuilder creates a builder for the given test store.
func NewBuilder(t *testing.T, db *sqlite.DB) *Builder {
	t.Helper()
	return &Builder{
		t:          t,
		db:         db,
		writingIDs: make(map[string]int64),
		promptIDs:  make(map[string]int64),
	}
}

// WithWriting adds a writing with optional configuration.
func (b *Builder) WithWriting(key, content string, opts ...WritingOption) *Builder {
	writing := defaultWriting(key, content)
	for _, opt := range opts {
		opt(&writing)
	}
	b.writings = append(b.writings, writing)
	return b
}

// WithPrompt adds a prompt with optional configuration.
func (b *Builder) WithPrompt(key, text string, opts ...PromptOption) *Builder {
	prompt := defaultPrompt(key, text)
	for _, opt := range opts {
		opt(&prompt)
	}
	b.prompts = append(b.prompts, prompt)
	return b
}

// Build inserts all accumulated data into the store.
func (b *Builder) Build() {
	b.t.Helper()
	// Insert in dependency order: writings → prompts → links → artifacts
	for _, writing := range b.writings {
		b.insertWriting(writing)
	}
	for _, prompt := range b.prompts {
		b.insertPrompt(prompt)
	}
}

// PromptID returns the database ID assigned to the named prompt.
func (b *Builder) PromptID(key string) int64 {
	b.t.Helper()
	id, ok := b.promptIDs[key]
	require.True(b.t, ok, "unknown prompt %q", key)
	return id
}

// WritingID returns the database ID assigned to the named writing.
func (b *Builder) WritingID(key string) int64 {
	b.t.Helper()
	id, ok := b.writingIDs[key]
	require.True(b.t, ok, "unknown writing %q", key)
	return id
}

func (b *Builder) insertWriting(writing writingData) {
	b.t.Helper()
	saved, err := b.db.Writings().Save(store.SaveWritingRequest{
		Content:           writing.content,
		Title:             writing.title,
		ContentType:       writing.contentType,
		Tags:              writing.tags,
		PublicationStatus: writing.publicationStatus,
		Notes:             writing.notes,
	})
	require.NoError(b.t, err)
	b.writingIDs[writing.key] = saved.ID
}

func (b *Builder) insertPrompt(prompt promptData) {
	b.t.Helper()
	id, err := b.db.Prompts().Insert(prompt.text, prompt.promptType, prompt.priority, prompt.metadata)
	require.NoError(b.t, err)
	b.promptIDs[prompt.key] = id

	if prompt.createdAt != nil {
		b.setCreatedAt(id, *prompt.createdAt)
	}
	if len(prompt.writingKeys) > 0 {
		writingIDs := make([]int64, len(prompt.writingKeys))
		for i, key := range prompt.writingKeys {
			writingIDs[i] = b.WritingID(key)
		}
		require.NoError(b.t, b.db.Prompts().LinkWritings(id, writingIDs))
	}
	b.applyStatus(id, prompt)
	if len(prompt.artifacts) > 0 {
		rows := make([]store.Artifact, len(prompt.artifacts))
		for i, artifact := range prompt.artifacts {
			rows[i] = store.Artifact{ArtifactType: artifact.Type, FilePath: artifact.Path}
		}
		require.NoError(b.t, b.db.Prompts().InsertArtifacts(id, rows))
	}
}

// applyStatus replays the status transition so timestamps and messages land
// the way the processor would have left them.
func (b *Builder) applyStatus(id int64, prompt promptData) {
	b.t.Helper()
	update := store.StatusUpdate{Status: prompt.status}
	if prompt.errorMessage != "" {
		update.ErrorMessage = store.String(prompt.errorMessage)
	}
	if prompt.artifactStatus != "" {
		update.ArtifactStatus = store.String(prompt.artifactStatus)
	}
	if prompt.artifactMetadata != "" {
		update.ArtifactMetadata = store.String(prompt.artifactMetadata)
	}
	fresh := prompt.status == store.StatusUnprocessed &&
		update.ErrorMessage == nil && update.ArtifactStatus == nil && update.ArtifactMetadata == nil
	if fresh {
		return
	}
	require.NoError(b.t, b.db.Prompts().UpdateStatus(id, update))
}

// setCreatedAt rewrites the insertion timestamp in the text format the
// repositories write.
func (b *Builder) setCreatedAt(id int64, at time.Time) {
	b.t.Helper()
	_, err := b.db.Connection().Exec(
		`UPDATE prompts SET created_at = ? WHERE id = ?`,
		at.UTC().Format("2006-01-02 15:04:05"), id)
	require.NoError(b.t, err)
}
