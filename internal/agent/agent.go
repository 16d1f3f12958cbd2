// Package agent runs the group chat generation sessions that turn queued
// prompts into writings. Agents are persona-driven chat participants backed
// by an OpenAI-compatible endpoint; a session drives them round-robin until
// one of them ends the conversation, and a harvester turns the resulting
// transcript into database rows.
package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmcsvoices/creative-ai-agents/internal/config"
	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// Agent is one chat participant.
type Agent struct {
	Name          string
	SystemMessage string
	Assignment    string // local1, local2, local3
	Model         string
}

// BuildAgents resolves the configured agents against the model table and the
// embedded personas. With no agents configured, every builtin persona joins
// the room. A configured agent with an empty system message or assignment
// inherits from the persona sharing its name.
func BuildAgents(cfgAgents []config.AgentConfig, models config.ModelsConfig) ([]Agent, error) {
	personas, err := LoadBuiltinPersonas()
	if err != nil {
		return nil, fmt.Errorf("loading personas: %w", err)
	}
	byName := make(map[string]Persona, len(personas))
	for _, p := range personas {
		byName[p.Name] = p
	}

	if len(cfgAgents) == 0 {
		agents := make([]Agent, 0, len(personas))
		for _, p := range personas {
			agents = append(agents, Agent{
				Name:          p.Name,
				SystemMessage: p.SystemMessage,
				Assignment:    p.DefaultAssignment,
				Model:         models.ByAssignment(p.DefaultAssignment),
			})
		}
		return agents, nil
	}

	agents := make([]Agent, 0, len(cfgAgents))
	for _, ac := range cfgAgents {
		systemMessage := ac.SystemMessage
		assignment := ac.ConfigAssignment
		if p, ok := byName[ac.Name]; ok {
			if systemMessage == "" {
				systemMessage = p.SystemMessage
			}
			if assignment == "" {
				assignment = p.DefaultAssignment
			}
		}
		if systemMessage == "" {
			return nil, fmt.Errorf("agent %q has no system message and no matching persona", ac.Name)
		}
		agents = append(agents, Agent{
			Name:          ac.Name,
			SystemMessage: systemMessage,
			Assignment:    assignment,
			Model:         models.ByAssignment(assignment),
		})
	}
	return agents, nil
}

// Metadata carries the author-supplied hints attached to a prompt.
type Metadata struct {
	Style             string `json:"style"`
	Tone              string `json:"tone"`
	Length            string `json:"length"`
	CollaborationMode string `json:"collaboration_mode"`
}

// ParseMetadata decodes a prompt's metadata JSON. Empty or malformed
// metadata yields the zero value; hints are advisory.
func ParseMetadata(raw string) Metadata {
	var m Metadata
	if strings.TrimSpace(raw) == "" {
		return m
	}
	_ = json.Unmarshal([]byte(raw), &m)
	return m
}

// ForPrompt returns copies of the agents with prompt-specific guidance
// appended to their system messages: style and tone hints, the tool
// availability notice, and for structured prompt types the mandate to
// finish through the matching JSON tool.
func ForPrompt(agents []Agent, promptType string, meta Metadata) []Agent {
	mandate := mandateFor(store.KindOf(promptType))

	out := make([]Agent, len(agents))
	for i, a := range agents {
		systemMessage := a.SystemMessage
		if meta.Style != "" || meta.Tone != "" {
			systemMessage += fmt.Sprintf(" Create %s content", promptType)
			if meta.Style != "" {
				systemMessage += fmt.Sprintf(" in %s style", meta.Style)
			}
			if meta.Tone != "" {
				systemMessage += fmt.Sprintf(" with a %s tone", meta.Tone)
			}
			systemMessage += "."
		}
		systemMessage += " You have access to the web_research tool for researching current information."
		if mandate != "" {
			systemMessage += "\n" + mandate
		}

		out[i] = a
		out[i].SystemMessage = systemMessage
	}
	return out
}

// mandateFor returns the schema instruction block appended for structured
// prompt types. Plain text sessions get none.
func mandateFor(kind store.Kind) string {
	switch kind {
	case store.KindImagePrompt:
		return `
CRITICAL INSTRUCTION FOR IMAGE PROMPTS

You MUST complete this task through the generate_image_json tool.
Do NOT output raw JSON text and do NOT use save_to_database; the
generate_image_json tool formats the JSON and saves it for you.

Workflow:
1. Discuss the image concept, visual style, mood, and composition.
2. Research with the web_research tool if the subject needs grounding.
3. When ready, ONE agent calls generate_image_json with:
   - prompt: detailed visual description (required)
   - negative_prompt: things to avoid (optional)
   - style_tags: list like ["photorealistic", "dramatic"] (optional)
   - mood, subject, background, lighting: scene details (optional)
   - aspect_ratio: like "16:9" (optional, default "16:9")
   - quality: "high" or "ultra" (optional, default "high")

Calling generate_image_json is the only correct way to finish this task.`
	case store.KindLyricsPrompt:
		return `
CRITICAL INSTRUCTION FOR LYRICS PROMPTS

You MUST complete this task through the generate_lyrics_json tool.
Do NOT output raw JSON text and do NOT use save_to_database; the
generate_lyrics_json tool formats the JSON and saves it for you.

Workflow:
1. Discuss the song concept, theme, and emotional direction.
2. Write the actual lyrics for verses, choruses, and bridge.
3. When ready, ONE agent calls generate_lyrics_json with:
   - title: song title (required)
   - genre: like "punk rock" or "folk" (required)
   - mood: like "angry" or "melancholic" (required)
   - tempo: "slow", "medium", or "fast" (required)
   - structure: list of sections (required), each
     {"type": "verse", "number": 1, "lyrics": "..."} or
     {"type": "chorus", "lyrics": "..."}
   - key, time_signature, vocal_style, instrumentation (optional)

Calling generate_lyrics_json is the only correct way to finish this task.`
	default:
		return ""
	}
}
