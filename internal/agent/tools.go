package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// TerminateSentinel ends a session when it appears in an agent reply or a
// tool result. The generate_*_json tools emit it so structured sessions
// stop as soon as the JSON is saved.
const TerminateSentinel = "TERMINATE"

// WritingStore is the slice of the catalog the agent tools need.
type WritingStore interface {
	Save(req store.SaveWritingRequest) (store.Writing, error)
	Search(search store.WritingSearch) ([]store.WritingSummary, error)
	Stats() (store.Stats, error)
}

// ToolCall is the JSON object an agent emits to invoke a tool.
type ToolCall struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Definition describes one callable tool.
type Definition struct {
	Name        string
	Description string
	Arguments   string // one-line signature shown to the agents
	Execute     func(ctx context.Context, caller string, args map[string]any) (string, error)
}

// ToolDeps carries everything the tool closures need for one prompt.
type ToolDeps struct {
	Writings  WritingStore
	Research  Researcher // nil when no research key is configured
	OutputDir string
	Prompt    store.Prompt
	Meta      Metadata
}

// Registry holds the tools available to a session, in registration order.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry builds the standard tool set bound to one prompt's dependencies.
func NewRegistry(deps ToolDeps) *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	r.register(saveFileTool(deps))
	r.register(saveToDatabaseTool(deps))
	r.register(queryDatabaseTool(deps))
	r.register(statsTool(deps))
	r.register(webResearchTool(deps))
	r.register(imageJSONTool(deps))
	r.register(lyricsJSONTool(deps))
	return r
}

func (r *Registry) register(d Definition) {
	r.defs[d.Name] = d
	r.order = append(r.order, d.Name)
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Run executes a parsed tool call on behalf of the named agent. Failures
// come back as transcript text rather than errors so the agents can see
// what went wrong and retry.
func (r *Registry) Run(ctx context.Context, caller string, call ToolCall) string {
	def, ok := r.defs[call.Tool]
	if !ok {
		return fmt.Sprintf("Unknown tool %q. Available tools: %s",
			call.Tool, strings.Join(r.Names(), ", "))
	}
	log.Info(log.CatAgent, "tool call", "tool", call.Tool, "agent", caller)
	out, err := def.Execute(ctx, caller, call.Arguments)
	if err != nil {
		log.ErrorErr(log.CatAgent, "tool failed", err, "tool", call.Tool, "agent", caller)
		return fmt.Sprintf("Tool %s error: %v", call.Tool, err)
	}
	return out
}

// Instructions renders the tool protocol block appended to every agent's
// system message.
func (r *Registry) Instructions() string {
	var b strings.Builder
	b.WriteString("TOOLS\n\n")
	b.WriteString("To call a tool, reply with a fenced code block tagged \"tool\" holding a single JSON object:\n\n")
	b.WriteString("```tool\n{\"tool\": \"query_database\", \"arguments\": {\"limit\": 3}}\n```\n\n")
	b.WriteString("One tool call per message, nothing else in the block. The result is posted back to the chat.\n\n")
	b.WriteString("Available tools:\n")
	for _, name := range r.order {
		d := r.defs[name]
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		if d.Arguments != "" {
			fmt.Fprintf(&b, "  Arguments: %s\n", d.Arguments)
		}
	}
	return b.String()
}

// ParseToolCall extracts a tool call from an agent reply. It accepts a
// fenced block tagged "tool" anywhere in the message, or a reply that is
// nothing but the JSON object.
func ParseToolCall(content string) (ToolCall, bool) {
	for _, block := range fencedBlocks(content, "tool") {
		if call, ok := decodeToolCall(block); ok {
			return call, true
		}
	}
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return decodeToolCall(trimmed)
	}
	return ToolCall{}, false
}

func decodeToolCall(raw string) (ToolCall, bool) {
	var call ToolCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil || call.Tool == "" {
		return ToolCall{}, false
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return call, true
}

// fencedBlocks returns the bodies of every ```tag fence in content, in
// order of appearance.
func fencedBlocks(content, tag string) []string {
	marker := "```" + tag
	var blocks []string
	for {
		start := strings.Index(content, marker)
		if start < 0 {
			return blocks
		}
		rest := content[start+len(marker):]
		end := strings.Index(rest, "```")
		if end < 0 {
			return blocks
		}
		blocks = append(blocks, strings.TrimSpace(rest[:end]))
		content = rest[end+3:]
	}
}

// textContentTypes are the writing types a prompt_type may pass through
// as-is when the agent did not pick one; anything else saves as prose.
var textContentTypes = map[string]struct{}{
	"poetry":    {},
	"prose":     {},
	"dialogue":  {},
	"erotica":   {},
	"satire":    {},
	"political": {},
	"fragment":  {},
}

func saveFileTool(deps ToolDeps) Definition {
	return Definition{
		Name:        "save_file",
		Description: "Save text to a timestamped file in the output directory.",
		Arguments:   "content (required)",
		Execute: func(_ context.Context, _ string, args map[string]any) (string, error) {
			content := stringArg(args, "content")
			if content == "" {
				return "", fmt.Errorf("content is required")
			}
			filename := time.Now().Format("20060102_150405.000") + ".txt"
			path := filepath.Join(deps.OutputDir, filename)
			if deps.OutputDir != "" {
				if err := os.MkdirAll(deps.OutputDir, 0o750); err != nil {
					return "", fmt.Errorf("creating output directory: %w", err)
				}
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil { //nolint:gosec // agent output, operator-owned directory
				return "", fmt.Errorf("writing file: %w", err)
			}
			return fmt.Sprintf("Saved file %s (%s)", filename, path), nil
		},
	}
}

func saveToDatabaseTool(deps ToolDeps) Definition {
	return Definition{
		Name:        "save_to_database",
		Description: "Save finished writing to the shared catalog.",
		Arguments:   `content (required), title, content_type, tags (list), publication_status (default "ready"), notes`,
		Execute: func(_ context.Context, caller string, args map[string]any) (string, error) {
			content := stringArg(args, "content")
			if content == "" {
				return "", fmt.Errorf("content is required")
			}

			contentType := stringArg(args, "content_type")
			if contentType == "" {
				contentType = deps.Prompt.PromptType
				if _, ok := textContentTypes[contentType]; !ok {
					contentType = "prose"
				}
			}
			status := stringArg(args, "publication_status")
			if status == "" {
				status = "ready"
			}

			notes := fmt.Sprintf("Generated from prompt #%d. ", deps.Prompt.ID)
			if deps.Meta.Style != "" || deps.Meta.Tone != "" {
				style := deps.Meta.Style
				if style == "" {
					style = "auto"
				}
				tone := deps.Meta.Tone
				if tone == "" {
					tone = "natural"
				}
				notes += fmt.Sprintf("Style: %s, Tone: %s. ", style, tone)
			}
			notes += fmt.Sprintf("Generated by %s (automated).", caller)
			if extra := stringArg(args, "notes"); extra != "" {
				notes += " " + extra
			}

			writing, err := deps.Writings.Save(store.SaveWritingRequest{
				Content:           content,
				Title:             stringArg(args, "title"),
				ContentType:       contentType,
				Tags:              stringListArg(args, "tags"),
				PublicationStatus: status,
				Notes:             notes,
			})
			if err != nil {
				return "", fmt.Errorf("database save: %w", err)
			}

			msg := fmt.Sprintf("Saved to database: '%s' (ID: %d)\n", writing.Title, writing.ID)
			msg += fmt.Sprintf("   Type: %s, Status: %s\n", writing.ContentType, writing.PublicationStatus)
			msg += fmt.Sprintf("   Words: %d, Tags: %d\n", writing.WordCount, len(writing.Tags))
			if writing.ExplicitContent {
				msg += "   Marked as explicit content\n"
			}
			return msg, nil
		},
	}
}

func queryDatabaseTool(deps ToolDeps) Definition {
	return Definition{
		Name:        "query_database",
		Description: "Search existing writings for references or to avoid duplicates.",
		Arguments:   "search_query, content_type, limit (default 5)",
		Execute: func(_ context.Context, _ string, args map[string]any) (string, error) {
			summaries, err := deps.Writings.Search(store.WritingSearch{
				Query:       stringArg(args, "search_query"),
				ContentType: stringArg(args, "content_type"),
				Limit:       intArg(args, "limit", 5),
			})
			if err != nil {
				return "", fmt.Errorf("database query: %w", err)
			}
			if len(summaries) == 0 {
				return "No matching content found in database.", nil
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Found %d results:\n\n", len(summaries))
			for i, s := range summaries {
				fmt.Fprintf(&b, "%d. %s (ID: %d)\n", i+1, s.Title, s.ID)
				fmt.Fprintf(&b, "   Type: %s, Words: %d, Status: %s\n", s.ContentType, s.WordCount, s.PublicationStatus)
				if s.Preview != "" {
					fmt.Fprintf(&b, "   Preview: %s\n", s.Preview)
				}
				b.WriteString("\n")
			}
			return b.String(), nil
		},
	}
}

func statsTool(deps ToolDeps) Definition {
	return Definition{
		Name:        "get_stats",
		Description: "Summarize the writings catalog by type and status.",
		Execute: func(_ context.Context, _ string, _ map[string]any) (string, error) {
			stats, err := deps.Writings.Stats()
			if err != nil {
				return "", fmt.Errorf("database stats: %w", err)
			}

			var b strings.Builder
			b.WriteString("Database Statistics:\n")
			fmt.Fprintf(&b, "Total pieces: %d, Total words: %d, Average: %.1f\n\n",
				stats.TotalWritings, stats.TotalWords, stats.AverageWords)
			b.WriteString("By Content Type:\n")
			for _, tc := range stats.ByContentType {
				fmt.Fprintf(&b, "  %s: %d", tc.ContentType, tc.Count)
				if tc.Explicit > 0 {
					fmt.Fprintf(&b, " (%d explicit)", tc.Explicit)
				}
				b.WriteString("\n")
			}
			b.WriteString("\nBy Publication Status:\n")
			for _, sc := range stats.ByStatus {
				fmt.Fprintf(&b, "  %s: %d\n", sc.Status, sc.Count)
			}
			return b.String(), nil
		},
	}
}

func webResearchTool(deps ToolDeps) Definition {
	return Definition{
		Name:        "web_research",
		Description: "Research current information and events for the writing.",
		Arguments:   `query (required), search_type ("web_search", "qna_search", or "context_search"), search_depth ("basic" or "advanced", default "advanced"), max_results (default 3)`,
		Execute: func(ctx context.Context, caller string, args map[string]any) (string, error) {
			query := stringArg(args, "query")
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			if deps.Research == nil {
				return "", fmt.Errorf("web research is not configured: TVLY_API_KEY is not set")
			}

			req := ResearchRequest{
				Query:       query,
				SearchType:  stringArg(args, "search_type"),
				SearchDepth: stringArg(args, "search_depth"),
				MaxResults:  intArg(args, "max_results", 3),
			}
			if req.SearchType == "" {
				req.SearchType = SearchTypeWeb
			}
			if req.SearchDepth == "" {
				req.SearchDepth = "advanced"
			}

			log.Info(log.CatAgent, "researching", "agent", caller, "query", query,
				"type", req.SearchType, "depth", req.SearchDepth)
			content, err := deps.Research.Research(ctx, req)
			if err != nil {
				return "", fmt.Errorf("research: %w", err)
			}
			log.Debug(log.CatAgent, "research complete", "agent", caller, "chars", len(content))
			return content, nil
		},
	}
}

// imagePromptJSON is the structured body saved for image_prompt writings.
// The offline media pipeline reads the prompt and technical_params fields.
type imagePromptJSON struct {
	Prompt          string   `json:"prompt"`
	NegativePrompt  string   `json:"negative_prompt"`
	StyleTags       []string `json:"style_tags"`
	TechnicalParams struct {
		AspectRatio string `json:"aspect_ratio"`
		Quality     string `json:"quality"`
		Mood        string `json:"mood"`
	} `json:"technical_params"`
	Composition struct {
		Subject    string `json:"subject"`
		Background string `json:"background"`
		Lighting   string `json:"lighting"`
	} `json:"composition"`
}

func imageJSONTool(deps ToolDeps) Definition {
	return Definition{
		Name:        "generate_image_json",
		Description: "Format and save a structured image generation prompt. Ends the session.",
		Arguments:   `prompt (required), negative_prompt, style_tags (list), aspect_ratio (default "16:9"), quality (default "high"), mood, subject, background, lighting`,
		Execute: func(_ context.Context, caller string, args map[string]any) (string, error) {
			prompt := stringArg(args, "prompt")
			if prompt == "" {
				return "", fmt.Errorf("prompt is required")
			}

			var body imagePromptJSON
			body.Prompt = prompt
			body.NegativePrompt = stringArg(args, "negative_prompt")
			body.StyleTags = stringListArg(args, "style_tags")
			if body.StyleTags == nil {
				body.StyleTags = []string{}
			}
			body.TechnicalParams.AspectRatio = stringArgDefault(args, "aspect_ratio", "16:9")
			body.TechnicalParams.Quality = stringArgDefault(args, "quality", "high")
			body.TechnicalParams.Mood = stringArg(args, "mood")
			body.Composition.Subject = stringArg(args, "subject")
			body.Composition.Background = stringArg(args, "background")
			body.Composition.Lighting = stringArg(args, "lighting")

			content, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return "", fmt.Errorf("encoding image JSON: %w", err)
			}

			writing, err := deps.Writings.Save(store.SaveWritingRequest{
				Content:           string(content),
				Title:             fmt.Sprintf("Image Prompt: %s...", truncateRunes(deps.Prompt.PromptText, 50)),
				ContentType:       store.TypeImagePrompt,
				PublicationStatus: "draft",
				Notes: fmt.Sprintf(
					"Structured JSON image prompt for offline media generation (Prompt #%d). Generated by %s.",
					deps.Prompt.ID, caller),
			})
			if err != nil {
				return "", fmt.Errorf("saving image JSON: %w", err)
			}

			log.Info(log.CatAgent, "image JSON saved", "agent", caller,
				"prompt_id", deps.Prompt.ID, "writing_id", writing.ID)
			msg := fmt.Sprintf("Saved to database: '%s' (ID: %d)\n", writing.Title, writing.ID)
			msg += fmt.Sprintf("   Type: %s, Status: %s\n", writing.ContentType, writing.PublicationStatus)
			return msg + "\n\n" + TerminateSentinel, nil
		},
	}
}

// lyricsPromptJSON is the structured body saved for lyrics_prompt writings.
type lyricsPromptJSON struct {
	Title     string `json:"title"`
	Genre     string `json:"genre"`
	Mood      string `json:"mood"`
	Tempo     string `json:"tempo"`
	Structure []any  `json:"structure"`
	Metadata  struct {
		Key             string   `json:"key"`
		TimeSignature   string   `json:"time_signature"`
		VocalStyle      string   `json:"vocal_style"`
		Instrumentation []string `json:"instrumentation"`
	} `json:"metadata"`
}

func lyricsJSONTool(deps ToolDeps) Definition {
	return Definition{
		Name:        "generate_lyrics_json",
		Description: "Format and save a structured lyrics generation prompt. Ends the session.",
		Arguments:   `title, genre, mood, tempo, structure (all required), key, time_signature (default "4/4"), vocal_style, instrumentation (list)`,
		Execute: func(_ context.Context, caller string, args map[string]any) (string, error) {
			var body lyricsPromptJSON
			body.Title = stringArg(args, "title")
			body.Genre = stringArg(args, "genre")
			body.Mood = stringArg(args, "mood")
			body.Tempo = stringArg(args, "tempo")
			body.Structure, _ = args["structure"].([]any)

			var missing []string
			for _, f := range []struct{ name, val string }{
				{"title", body.Title}, {"genre", body.Genre},
				{"mood", body.Mood}, {"tempo", body.Tempo},
			} {
				if f.val == "" {
					missing = append(missing, f.name)
				}
			}
			if len(body.Structure) == 0 {
				missing = append(missing, "structure")
			}
			if len(missing) > 0 {
				return "", fmt.Errorf("missing required arguments: %s", strings.Join(missing, ", "))
			}

			body.Metadata.Key = stringArg(args, "key")
			body.Metadata.TimeSignature = stringArgDefault(args, "time_signature", "4/4")
			body.Metadata.VocalStyle = stringArg(args, "vocal_style")
			body.Metadata.Instrumentation = stringListArg(args, "instrumentation")
			if body.Metadata.Instrumentation == nil {
				body.Metadata.Instrumentation = []string{}
			}

			content, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return "", fmt.Errorf("encoding lyrics JSON: %w", err)
			}

			writing, err := deps.Writings.Save(store.SaveWritingRequest{
				Content:           string(content),
				Title:             fmt.Sprintf("Lyrics: %s", body.Title),
				ContentType:       store.TypeLyricsPrompt,
				PublicationStatus: "draft",
				Notes: fmt.Sprintf(
					"Structured JSON lyrics prompt for offline media generation (Prompt #%d). Generated by %s.",
					deps.Prompt.ID, caller),
			})
			if err != nil {
				return "", fmt.Errorf("saving lyrics JSON: %w", err)
			}

			log.Info(log.CatAgent, "lyrics JSON saved", "agent", caller,
				"prompt_id", deps.Prompt.ID, "writing_id", writing.ID)
			msg := fmt.Sprintf("Saved to database: '%s' (ID: %d)\n", writing.Title, writing.ID)
			msg += fmt.Sprintf("   Type: %s, Status: %s\n", writing.ContentType, writing.PublicationStatus)
			return msg + "\n\n" + TerminateSentinel, nil
		},
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func stringArgDefault(args map[string]any, key, def string) string {
	if s := stringArg(args, key); s != "" {
		return s
	}
	return def
}

// intArg tolerates the float64 that encoding/json produces for numbers.
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func stringListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
