package agent

import (
	"fmt"
	"strings"

	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// BuildTask renders the opening message of a generation session: the prompt
// text with the author's hints appended, and for structured types the
// mandatory closing instructions with an example tool call.
func BuildTask(p store.Prompt, meta Metadata) string {
	enhanced := p.PromptText

	var hints []string
	if meta.Style != "" {
		hints = append(hints, "Style: "+meta.Style)
	}
	if meta.Tone != "" {
		hints = append(hints, "Tone: "+meta.Tone)
	}
	if meta.Length != "" {
		hints = append(hints, "Length: "+meta.Length)
	}
	if meta.CollaborationMode != "" && meta.CollaborationMode != "standard" {
		hints = append(hints, "Mode: "+meta.CollaborationMode)
	}
	if len(hints) > 0 {
		enhanced += " (" + strings.Join(hints, ", ") + ")"
	}

	switch p.Kind() {
	case store.KindImagePrompt:
		enhanced += "\n\nREMINDER: When your discussion is complete, use the generate_image_json tool to save the final image prompt as properly formatted JSON. Do NOT output raw JSON text in the conversation."
		return structuredTask(enhanced, "generate_image_json",
			"After discussing and refining the image concept, ONE of you must reply with:",
			imageExampleCall)
	case store.KindLyricsPrompt:
		enhanced += "\n\nREMINDER: When you've written the lyrics, use the generate_lyrics_json tool to save the final song as properly formatted JSON. Do NOT output raw JSON text in the conversation."
		return structuredTask(enhanced, "generate_lyrics_json",
			"After writing the lyrics and deciding on the musical direction, ONE of you must reply with:",
			lyricsExampleCall)
	default:
		return fmt.Sprintf("Create %s content based on this prompt: %s", p.PromptType, enhanced)
	}
}

const imageExampleCall = `{"tool": "generate_image_json", "arguments": {
  "prompt": "your detailed image description",
  "negative_prompt": "things to avoid",
  "style_tags": ["style1", "style2"],
  "mood": "mood description",
  "subject": "main subject",
  "background": "background setting",
  "lighting": "lighting description"
}}`

const lyricsExampleCall = `{"tool": "generate_lyrics_json", "arguments": {
  "title": "Song Title",
  "genre": "music genre",
  "mood": "emotional mood",
  "tempo": "slow/medium/fast",
  "structure": [
    {"type": "verse", "number": 1, "lyrics": "verse 1 text..."},
    {"type": "chorus", "lyrics": "chorus text..."},
    {"type": "verse", "number": 2, "lyrics": "verse 2 text..."}
  ],
  "vocal_style": "vocal description",
  "instrumentation": ["instrument1", "instrument2"]
}}`

func structuredTask(enhanced, tool, lead, example string) string {
	return "Task: " + enhanced + "\n\n" +
		"MANDATORY REQUIREMENT: You MUST complete this task by calling the " + tool + " tool.\n" +
		lead + "\n\n" +
		"```tool\n" + example + "\n```\n\n" +
		"IMPORTANT: The " + tool + " tool automatically saves to the database.\n" +
		"DO NOT also call save_to_database, that would create duplicate entries.\n" +
		"This is the ONLY way to successfully complete this task. Do NOT output JSON as plain text.\n\n" +
		"AFTER the " + tool + " tool is successfully called, respond with \"TERMINATE\" to end the conversation."
}
