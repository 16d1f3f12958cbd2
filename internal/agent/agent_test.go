package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmcsvoices/creative-ai-agents/internal/config"
)

var testModels = config.ModelsConfig{
	Local1: "model-one",
	Local2: "model-two",
	Local3: "model-three",
}

func TestBuildAgents_FromConfig(t *testing.T) {
	agents, err := BuildAgents([]config.AgentConfig{
		{Name: "narrator", SystemMessage: "You narrate.", ConfigAssignment: "local2"},
	}, testModels)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "narrator", agents[0].Name)
	require.Equal(t, "You narrate.", agents[0].SystemMessage)
	require.Equal(t, "local2", agents[0].Assignment)
	require.Equal(t, "model-two", agents[0].Model)
}

func TestBuildAgents_PersonaFallback(t *testing.T) {
	// A configured agent named after a persona inherits the persona's
	// system message and assignment when its own are empty.
	agents, err := BuildAgents([]config.AgentConfig{
		{Name: "poet"},
	}, testModels)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.NotEmpty(t, agents[0].SystemMessage)
	require.Equal(t, "local1", agents[0].Assignment)
	require.Equal(t, "model-one", agents[0].Model)
}

func TestBuildAgents_EmptyConfigUsesBuiltins(t *testing.T) {
	agents, err := BuildAgents(nil, testModels)
	require.NoError(t, err)
	require.Len(t, agents, 3)

	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.Name)
		require.NotEmpty(t, a.SystemMessage)
		require.NotEmpty(t, a.Model)
	}
	require.ElementsMatch(t, []string{"poet", "critic", "editor"}, names)
}

func TestBuildAgents_UnknownAgentWithoutMessageFails(t *testing.T) {
	_, err := BuildAgents([]config.AgentConfig{
		{Name: "stranger"},
	}, testModels)
	require.Error(t, err)
	require.Contains(t, err.Error(), "stranger")
}

func TestParseMetadata(t *testing.T) {
	meta := ParseMetadata(`{"style": "beat", "tone": "wry", "length": "short", "collaboration_mode": "debate"}`)
	require.Equal(t, "beat", meta.Style)
	require.Equal(t, "wry", meta.Tone)
	require.Equal(t, "short", meta.Length)
	require.Equal(t, "debate", meta.CollaborationMode)

	require.Equal(t, Metadata{}, ParseMetadata(""))
	require.Equal(t, Metadata{}, ParseMetadata("   "))
	require.Equal(t, Metadata{}, ParseMetadata("{not json"))
}

func TestForPrompt_StyleAndTone(t *testing.T) {
	base := []Agent{{Name: "poet", SystemMessage: "You write."}}

	out := ForPrompt(base, "poetry", Metadata{Style: "noir", Tone: "bleak"})
	require.Len(t, out, 1)
	require.Contains(t, out[0].SystemMessage, "Create poetry content in noir style with a bleak tone.")
	require.Contains(t, out[0].SystemMessage, "web_research")

	// Originals must stay untouched.
	require.Equal(t, "You write.", base[0].SystemMessage)
}

func TestForPrompt_StyleOnly(t *testing.T) {
	out := ForPrompt([]Agent{{Name: "poet", SystemMessage: "You write."}}, "prose", Metadata{Style: "gothic"})
	require.Contains(t, out[0].SystemMessage, "Create prose content in gothic style.")
	require.NotContains(t, out[0].SystemMessage, "tone")
}

func TestForPrompt_NoMetadataNoStyleSentence(t *testing.T) {
	out := ForPrompt([]Agent{{Name: "poet", SystemMessage: "You write."}}, "poetry", Metadata{})
	require.NotContains(t, out[0].SystemMessage, "Create poetry content")
	require.Contains(t, out[0].SystemMessage, "web_research")
}

func TestForPrompt_StructuredMandates(t *testing.T) {
	base := []Agent{
		{Name: "poet", SystemMessage: "You write."},
		{Name: "critic", SystemMessage: "You review."},
	}

	image := ForPrompt(base, "image_prompt", Metadata{})
	for _, a := range image {
		require.Contains(t, a.SystemMessage, "generate_image_json")
		require.NotContains(t, a.SystemMessage, "generate_lyrics_json")
	}

	lyrics := ForPrompt(base, "lyrics_prompt", Metadata{})
	for _, a := range lyrics {
		require.Contains(t, a.SystemMessage, "generate_lyrics_json")
	}

	text := ForPrompt(base, "poetry", Metadata{})
	for _, a := range text {
		require.NotContains(t, a.SystemMessage, "CRITICAL INSTRUCTION")
	}
}
