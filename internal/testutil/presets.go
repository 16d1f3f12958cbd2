package testutil

import (
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// WithQueueTestData seeds a queue in mid-drain: fresh work at several
// priorities and ages, one row being processed, one finished and one failed.
//
// Drain order for the unprocessed rows:
//
//	harbor (priority 1) → lighthouse (3) → waiting-room (5, older) → kitchens (5)
func (b *Builder) WithQueueTestData() *Builder {
	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)
	lastWeek := now.Add(-7 * 24 * time.Hour)

	return b.
		WithPrompt("harbor", "Write a poem about the harbor at night",
			Type("poetry"), Priority(1), CreatedAt(yesterday)).
		WithPrompt("lighthouse", "Produce image generation JSON for a lighthouse in fog",
			Type(store.TypeImagePrompt), Priority(3),
			Metadata(`{"style": "storm light", "prompt_id": "print-run-4"}`)).
		WithPrompt("waiting-room", "Write a short piece set in a waiting room",
			CreatedAt(lastWeek)).
		WithPrompt("kitchens", "Write about small kitchens", CreatedAt(yesterday)).
		WithPrompt("in-flight", "Write about the last train out",
			Status(store.StatusProcessing)).
		WithPrompt("done", "Write about unopened letters",
			Status(store.StatusCompleted)).
		WithPrompt("broken", "Write about missing keys",
			Status(store.StatusFailed), ErrorMessage("model backend unreachable"))
}

// WithMediaTestData seeds completed structured prompts whose media is still
// pending, each with its generated JSON writing linked, plus one already
// rendered for contrast.
func (b *Builder) WithMediaTestData() *Builder {
	return b.
		WithWriting("fog-json",
			`{"prompt": "a lighthouse swallowed by fog, volumetric light", "negative_prompt": "text, watermark"}`,
			Title("Lighthouse image prompt"), ContentType(store.TypeImagePrompt)).
		WithWriting("tide-json",
			`{"title": "Tide Tables", "style": "slow folk", "lyrics": "count the hours, count the waves"}`,
			Title("Tide Tables lyrics"), ContentType(store.TypeLyricsPrompt)).
		WithPrompt("fog", "Generate image JSON for a lighthouse in fog",
			Type(store.TypeImagePrompt), Status(store.StatusCompleted),
			ArtifactStatus(store.ArtifactPending), Writings("fog-json")).
		WithPrompt("tide", "Write song lyrics about tide tables",
			Type(store.TypeLyricsPrompt), Status(store.StatusCompleted),
			ArtifactStatus(store.ArtifactPending), Writings("tide-json")).
		WithPrompt("rendered", "Generate image JSON for a salt flat at noon",
			Type(store.TypeImagePrompt), Status(store.StatusCompleted),
			ArtifactStatus(store.ArtifactReady),
			ArtifactMetadata(`{"artifact_count": 1, "run_directory": "runs/salt-flat"}`),
			Artifacts(Artifact("image", "runs/salt-flat/output_001.png")))
}

// WithLibraryTestData seeds a small writings corpus across content types
// for search and stats tests.
func (b *Builder) WithLibraryTestData() *Builder {
	return b.
		WithWriting("harbor-poem",
			"The harbor holds its breath at night.\nBoats knock like knuckles on a door.",
			Title("Harbor"), Tags("sea", "night")).
		WithWriting("waiting-room-prose",
			"Everyone here is between two places, reading the same page twice.",
			Title("Waiting Room"), ContentType("prose"), Tags("interiors")).
		WithWriting("tide-lyrics",
			"Count the hours, count the waves,\ncount the lights the water saves.",
			Title("Tide Tables"), ContentType("lyrics"), Tags("sea"),
			PublicationStatus("published"), Notes("second draft kept the chorus"))
}
