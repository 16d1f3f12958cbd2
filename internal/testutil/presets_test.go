package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

func TestPreset_QueueTestData(t *testing.T) {
	db := NewTestDB(t)

	b := NewBuilder(t, db)
	b.WithQueueTestData().Build()

	// Only the four unprocessed rows come back, in drain order
	prompts, err := db.Prompts().NextTextPrompts(10)
	require.NoError(t, err)
	require.Len(t, prompts, 4)
	require.Equal(t, b.PromptID("harbor"), prompts[0].ID)
	require.Equal(t, b.PromptID("lighthouse"), prompts[1].ID)
	require.Equal(t, b.PromptID("waiting-room"), prompts[2].ID)
	require.Equal(t, b.PromptID("kitchens"), prompts[3].ID)

	require.Equal(t, store.TypeImagePrompt, prompts[1].PromptType)
	require.Contains(t, prompts[1].Metadata, "storm light")

	inFlight, err := db.Prompts().Get(b.PromptID("in-flight"))
	require.NoError(t, err)
	require.Equal(t, store.StatusProcessing, inFlight.Status)
	require.NotNil(t, inFlight.ProcessedAt)

	broken, err := db.Prompts().Get(b.PromptID("broken"))
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, broken.Status)
	require.Equal(t, "model backend unreachable", broken.ErrorMessage)
}

func TestPreset_MediaTestData(t *testing.T) {
	db := NewTestDB(t)

	b := NewBuilder(t, db)
	b.WithMediaTestData().Build()

	// The rendered prompt is ready, so only fog and tide are pending
	pending, err := db.Prompts().NextMediaPrompts(10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	byID := make(map[int64]store.MediaPrompt, len(pending))
	for _, p := range pending {
		byID[p.ID] = p
	}

	fog, ok := byID[b.PromptID("fog")]
	require.True(t, ok, "fog prompt should be pending media")
	require.Len(t, fog.Writings, 1)
	require.Equal(t, b.WritingID("fog-json"), fog.Writings[0].ID)
	require.Equal(t, store.TypeImagePrompt, fog.Writings[0].ContentType)
	require.Contains(t, fog.Writings[0].Content, "lighthouse swallowed by fog")

	tide, ok := byID[b.PromptID("tide")]
	require.True(t, ok, "tide prompt should be pending media")
	require.Len(t, tide.Writings, 1)
	require.Equal(t, store.TypeLyricsPrompt, tide.Writings[0].ContentType)

	rendered, err := db.Prompts().Get(b.PromptID("rendered"))
	require.NoError(t, err)
	require.Equal(t, store.ArtifactReady, rendered.ArtifactStatus)
	require.Contains(t, rendered.ArtifactMetadata, "runs/salt-flat")

	var artifactCount int
	err = db.Connection().QueryRow(
		`SELECT COUNT(*) FROM prompt_artifacts WHERE prompt_id = ?`,
		b.PromptID("rendered")).Scan(&artifactCount)
	require.NoError(t, err)
	require.Equal(t, 1, artifactCount)
}

func TestPreset_LibraryTestData(t *testing.T) {
	db := NewTestDB(t)

	b := NewBuilder(t, db)
	b.WithLibraryTestData().Build()

	summaries, err := db.Writings().Search(store.WritingSearch{})
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	lyrics, err := db.Writings().Search(store.WritingSearch{ContentType: "lyrics"})
	require.NoError(t, err)
	require.Len(t, lyrics, 1)
	require.Equal(t, "Tide Tables", lyrics[0].Title)
	require.Equal(t, "published", lyrics[0].PublicationStatus)

	stats, err := db.Writings().Stats()
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalWritings)
}
