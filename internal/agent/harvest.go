package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/store"
	"github.com/dmcsvoices/creative-ai-agents/internal/tracing"
)

// harvestWindowBuffer widens the tool-writing lookup past the session
// processing budget so slow conversations still find their saves.
const harvestWindowBuffer = 5

// HarvestStore is the writings surface the harvester needs.
type HarvestStore interface {
	RecentToolWritings(promptID int64, contentType string, windowMinutes int) ([]int64, error)
	Save(req store.SaveWritingRequest) (store.Writing, error)
}

// PromptLinker attaches harvested writings to their prompt.
type PromptLinker interface {
	LinkWritings(promptID int64, writingIDs []int64) error
}

// Harvester collects the JSON a structured session produced. Writings saved
// through the generate_*_json tools win; failing that it extracts a JSON
// object straight from the transcript and saves it itself.
type Harvester struct {
	writings      HarvestStore
	prompts       PromptLinker
	windowMinutes int
	tracer        trace.Tracer
}

// NewHarvester builds a harvester. maxProcessingMinutes is the per-session
// processing budget; it widens the window used to find tool-saved writings.
func NewHarvester(writings HarvestStore, prompts PromptLinker, maxProcessingMinutes int, tracer trace.Tracer) *Harvester {
	if maxProcessingMinutes <= 0 {
		maxProcessingMinutes = 15
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Harvester{
		writings:      writings,
		prompts:       prompts,
		windowMinutes: maxProcessingMinutes + harvestWindowBuffer,
		tracer:        tracer,
	}
}

// Harvest links the structured output of a finished session to its prompt
// and returns the linked writing IDs. An error means no valid JSON exists
// anywhere and the prompt should be failed.
func (h *Harvester) Harvest(ctx context.Context, p store.Prompt, transcript []Turn) ([]int64, error) {
	_, span := h.tracer.Start(ctx, tracing.SpanHarvest,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()
	span.SetAttributes(
		attribute.Int64(tracing.AttrPromptID, p.ID),
		attribute.String(tracing.AttrPromptType, p.PromptType),
	)

	ids, err := h.writings.RecentToolWritings(p.ID, p.PromptType, h.windowMinutes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("looking up tool writings: %w", err)
	}
	if len(ids) > 0 {
		if err := h.prompts.LinkWritings(p.ID, ids); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("linking tool writings: %w", err)
		}
		log.Info(log.CatAgent, "linked tool writings",
			"prompt_id", p.ID, "count", len(ids), "primary", ids[len(ids)-1])
		span.SetStatus(codes.Ok, "")
		return ids, nil
	}

	log.Info(log.CatAgent, "no tool writings found, extracting JSON from transcript", "prompt_id", p.ID)
	raw, ok := extractJSON(transcript, p.Kind())
	if !ok {
		err := fmt.Errorf("no valid JSON in conversation: agents should use the generate_image_json or generate_lyrics_json tools")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	writing, err := h.writings.Save(store.SaveWritingRequest{
		Content:           raw,
		Title:             fmt.Sprintf("%s: %s...", typeTitle(p.PromptType), truncateRunes(p.PromptText, 50)),
		ContentType:       p.PromptType,
		PublicationStatus: "draft",
		Notes:             fmt.Sprintf("Structured JSON prompt for offline media generation (Prompt #%d)", p.ID),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("saving extracted JSON: %w", err)
	}
	if err := h.prompts.LinkWritings(p.ID, []int64{writing.ID}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("linking extracted writing: %w", err)
	}

	log.Info(log.CatAgent, "extracted JSON from transcript",
		"prompt_id", p.ID, "writing_id", writing.ID)
	span.SetStatus(codes.Ok, "")
	return []int64{writing.ID}, nil
}

// extractJSON walks the transcript newest first and returns the first JSON
// object that carries the fields the prompt type requires. Within a message,
// fenced json blocks are tried before the bare message, then any balanced
// object found in the text.
func extractJSON(transcript []Turn, kind store.Kind) (string, bool) {
	for i := len(transcript) - 1; i >= 0; i-- {
		content := transcript[i].Content
		if content == "" {
			continue
		}
		var candidates []string
		candidates = append(candidates, fencedBlocks(content, "json")...)
		if trimmed := strings.TrimSpace(content); strings.HasPrefix(trimmed, "{") {
			candidates = append(candidates, trimmed)
		}
		candidates = append(candidates, balancedObjects(content)...)

		for _, candidate := range candidates {
			if validStructuredJSON(candidate, kind) {
				return candidate, true
			}
		}
	}
	return "", false
}

// validStructuredJSON reports whether raw parses as an object holding the
// required keys for the prompt type.
func validStructuredJSON(raw string, kind store.Kind) bool {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return false
	}
	var required []string
	switch kind {
	case store.KindLyricsPrompt:
		required = []string{"title", "genre", "mood", "tempo", "structure"}
	case store.KindImagePrompt:
		required = []string{"prompt"}
	default:
		return false
	}
	for _, field := range required {
		if _, ok := parsed[field]; !ok {
			return false
		}
	}
	return true
}

// balancedObjects returns every top-level JSON object embedded in content.
// Objects nested inside a found object are consumed with it, not returned
// separately.
func balancedObjects(content string) []string {
	var out []string
	for i := 0; i < len(content); i++ {
		if content[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(content[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil && len(raw) > 0 && raw[0] == '{' {
			out = append(out, string(raw))
			i += int(dec.InputOffset()) - 1
		}
	}
	return out
}

// typeTitle renders a prompt_type as a title prefix: image_prompt becomes
// "Image Prompt".
func typeTitle(promptType string) string {
	words := strings.Split(promptType, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
