package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

func TestNewTestDB_CreatesSchema(t *testing.T) {
	db := NewTestDB(t)

	// Verify all tables exist by querying sqlite_master
	var count int
	err := db.Connection().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table'
		 AND name IN ('prompts', 'prompt_writings', 'prompt_artifacts', 'writings', 'tags', 'writing_tags')`).
		Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 6, count, "expected 6 tables")
}

func TestNewTestDB_RepositoriesWork(t *testing.T) {
	db := NewTestDB(t)

	id, err := db.Prompts().Insert("write about sea glass", "poetry", 3, "")
	require.NoError(t, err)

	prompt, err := db.Prompts().Get(id)
	require.NoError(t, err)
	require.Equal(t, "write about sea glass", prompt.PromptText)
	require.Equal(t, "poetry", prompt.PromptType)
	require.Equal(t, store.StatusUnprocessed, prompt.Status)
	require.Equal(t, 3, prompt.Priority)
}

func TestNewTestDB_IsolatedPerCall(t *testing.T) {
	first := NewTestDB(t)
	second := NewTestDB(t)

	_, err := first.Prompts().Insert("only in the first store", "text", 5, "")
	require.NoError(t, err)

	prompts, err := second.Prompts().NextTextPrompts(10)
	require.NoError(t, err)
	require.Empty(t, prompts)
}
