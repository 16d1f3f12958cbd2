package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

func testRunner(t *testing.T, client *scriptedClient) (*Runner, *fakeWritings) {
	t.Helper()
	writings := &fakeWritings{}
	r, err := NewRunner(RunnerConfig{
		Client: client,
		Agents: []Agent{
			{Name: "poet", SystemMessage: "You write.", Model: "m1"},
			{Name: "critic", SystemMessage: "You review.", Model: "m2"},
		},
		Writings:  writings,
		OutputDir: t.TempDir(),
		MaxRounds: 10,
	})
	require.NoError(t, err)
	return r, writings
}

func TestNewRunner_Validation(t *testing.T) {
	writings := &fakeWritings{}
	agents := []Agent{{Name: "a"}, {Name: "b"}}

	_, err := NewRunner(RunnerConfig{Agents: agents, Writings: writings})
	require.Error(t, err)
	require.Contains(t, err.Error(), "chat client")

	_, err = NewRunner(RunnerConfig{Client: &scriptedClient{}, Agents: agents[:1], Writings: writings})
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least 2 agents")

	_, err = NewRunner(RunnerConfig{Client: &scriptedClient{}, Agents: agents})
	require.Error(t, err)
	require.Contains(t, err.Error(), "writing store")
}

func TestRunSession_PlainText(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"A draft about thaw.",
		"Good. TERMINATE",
	}}
	r, _ := testRunner(t, client)

	p := store.Prompt{
		ID:         3,
		PromptText: "write about the thaw",
		PromptType: "poetry",
		Metadata:   `{"style": "imagist", "tone": "wistful"}`,
	}
	transcript, err := r.RunSession(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, transcript, 3)

	// The opening task carries the prompt and its hints.
	require.Contains(t, transcript[0].Content, "Create poetry content based on this prompt: write about the thaw")
	require.Contains(t, transcript[0].Content, "Style: imagist")

	// Agents are specialized for the prompt before the session starts.
	firstView := client.views[0]
	require.Contains(t, firstView[0].Content, "in imagist style")
	require.Contains(t, firstView[0].Content, "web_research")
}

func TestRunSession_StructuredMandate(t *testing.T) {
	client := &scriptedClient{replies: []string{"discussing", "still discussing"}}
	r, _ := testRunner(t, client)

	p := store.Prompt{ID: 7, PromptText: "a lighthouse swallowed by fog", PromptType: store.TypeImagePrompt}
	transcript, err := r.RunSession(context.Background(), p)
	require.NoError(t, err)

	require.Contains(t, transcript[0].Content, "MANDATORY REQUIREMENT")
	require.Contains(t, client.views[0][0].Content, "generate_image_json")
}

func TestRunSession_ToolsBoundToPrompt(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"```tool\n{\"tool\": \"generate_image_json\", \"arguments\": {\"prompt\": \"fog over a drowned city\"}}\n```",
	}}
	r, writings := testRunner(t, client)

	p := store.Prompt{ID: 42, PromptText: "a drowned city", PromptType: store.TypeImagePrompt}
	transcript, err := r.RunSession(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, writings.saved, 1)
	require.Equal(t, store.TypeImagePrompt, writings.saved[0].ContentType)
	require.Contains(t, writings.saved[0].Notes, "(Prompt #42)")

	// The tool result ended the session.
	last := transcript[len(transcript)-1]
	require.Equal(t, RoleTool, last.Role)
	require.Contains(t, last.Content, TerminateSentinel)
}

func TestRunSession_SessionErrorReturnsTranscript(t *testing.T) {
	client := &scriptedClient{err: errors.New("backend down")}
	r, _ := testRunner(t, client)

	transcript, err := r.RunSession(context.Background(), store.Prompt{ID: 1, PromptText: "x", PromptType: "poetry"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "backend down")
	require.Len(t, transcript, 1) // the task turn survives for harvesting
}
