package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

func TestBuildTask_Text(t *testing.T) {
	p := store.Prompt{PromptType: "poetry", PromptText: "write about rust on a bridge"}
	task := BuildTask(p, Metadata{Style: "imagist", Tone: "wistful", Length: "short"})
	require.Equal(t, "Create poetry content based on this prompt: "+
		"write about rust on a bridge (Style: imagist, Tone: wistful, Length: short)", task)
}

func TestBuildTask_NoHints(t *testing.T) {
	p := store.Prompt{PromptType: "prose", PromptText: "a letter never sent"}
	task := BuildTask(p, Metadata{})
	require.Equal(t, "Create prose content based on this prompt: a letter never sent", task)
	require.NotContains(t, task, "(")
}

func TestBuildTask_StandardModeOmitted(t *testing.T) {
	p := store.Prompt{PromptType: "prose", PromptText: "x"}
	task := BuildTask(p, Metadata{CollaborationMode: "standard"})
	require.NotContains(t, task, "Mode:")

	task = BuildTask(p, Metadata{CollaborationMode: "debate"})
	require.Contains(t, task, "(Mode: debate)")
}

func TestBuildTask_ImagePrompt(t *testing.T) {
	p := store.Prompt{PromptType: "image_prompt", PromptText: "a drowned cathedral"}
	task := BuildTask(p, Metadata{Style: "baroque"})

	require.True(t, len(task) > 0)
	require.Contains(t, task, "Task: a drowned cathedral (Style: baroque)")
	require.Contains(t, task, "REMINDER: When your discussion is complete, use the generate_image_json tool")
	require.Contains(t, task, "MANDATORY REQUIREMENT: You MUST complete this task by calling the generate_image_json tool.")
	require.Contains(t, task, "```tool\n"+imageExampleCall+"\n```")
	require.Contains(t, task, "DO NOT also call save_to_database")
	require.Contains(t, task, `respond with "TERMINATE"`)
	// Text-mode framing does not leak into structured tasks.
	require.NotContains(t, task, "Create image_prompt content")
}

func TestBuildTask_LyricsPrompt(t *testing.T) {
	p := store.Prompt{PromptType: "lyrics_prompt", PromptText: "a shanty for landlocked sailors"}
	task := BuildTask(p, Metadata{})

	require.Contains(t, task, "Task: a shanty for landlocked sailors")
	require.Contains(t, task, "use the generate_lyrics_json tool to save the final song")
	require.Contains(t, task, "```tool\n"+lyricsExampleCall+"\n```")
	require.Contains(t, task, "AFTER the generate_lyrics_json tool is successfully called")
}

func TestBuildTask_ExampleCallsParse(t *testing.T) {
	// The embedded examples must themselves parse as tool calls, or agents
	// copying them verbatim would fail.
	for _, example := range []string{imageExampleCall, lyricsExampleCall} {
		call, ok := ParseToolCall("```tool\n" + example + "\n```")
		require.True(t, ok)
		require.NotEmpty(t, call.Tool)
		require.NotEmpty(t, call.Arguments)
	}
}
