// Package backend wraps the OpenAI-compatible endpoint the agents talk to.
// The endpoint is a local inference server (LM Studio or Ollama) or a manual
// URL; either way it speaks the chat-completions and model-list protocols.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
)

// Roles for transcript messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat transcript. Name carries the speaking
// agent for transcript rendering; the wire protocol only sees Role and
// Content.
type Message struct {
	Role    string
	Name    string
	Content string
}

// ChatClient is the completion surface sessions run against. Tests
// substitute a scripted implementation.
type ChatClient interface {
	Complete(ctx context.Context, model string, messages []Message) (string, error)
}

// ModelLister enumerates the models an endpoint serves.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Client talks to one OpenAI-compatible endpoint.
type Client struct {
	api     openai.Client
	baseURL string
}

var _ ChatClient = (*Client)(nil)
var _ ModelLister = (*Client)(nil)

// New builds a client for the given base URL. Local backends ignore the API
// key but the wire protocol requires one.
func New(baseURL, apiKey string) *Client {
	base := strings.TrimRight(baseURL, "/")
	api := openai.NewClient(
		option.WithBaseURL(base+"/"),
		option.WithAPIKey(apiKey),
	)
	return &Client{api: api, baseURL: base}
}

// BaseURL returns the endpoint root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Complete runs a single chat completion and returns the assistant text.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	log.Debug(log.CatBackend, "chat completion request", "model", model, "messages", len(messages))

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toWire(messages),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	content := completion.Choices[0].Message.Content
	log.Debug(log.CatBackend, "chat completion response", "model", model, "chars", len(content))
	return content, nil
}

// ListModels fetches the endpoint's model inventory.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.api.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	names := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		names = append(names, m.ID)
	}
	return names, nil
}

func toWire(messages []Message) []openai.ChatCompletionMessageParamUnion {
	wire := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			wire = append(wire, openai.SystemMessage(m.Content))
		case RoleAssistant:
			wire = append(wire, openai.AssistantMessage(m.Content))
		default:
			wire = append(wire, openai.UserMessage(m.Content))
		}
	}
	return wire
}
