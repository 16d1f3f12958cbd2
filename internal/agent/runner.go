package agent

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/dmcsvoices/creative-ai-agents/internal/backend"
	"github.com/dmcsvoices/creative-ai-agents/internal/pubsub"
	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// RunnerConfig wires the per-process session collaborators.
type RunnerConfig struct {
	Client    backend.ChatClient
	Agents    []Agent
	Writings  WritingStore
	Research  Researcher // nil when no research key is configured
	OutputDir string
	MaxRounds int
	Broker    *pubsub.Broker[Turn] // optional, nil drops events
	Tracer    trace.Tracer         // optional, nil disables tracing
}

// Runner builds one session per prompt: agents specialized for the prompt's
// type and hints, a fresh tool registry bound to the prompt, and the opening
// task message.
type Runner struct {
	client    backend.ChatClient
	agents    []Agent
	writings  WritingStore
	research  Researcher
	outputDir string
	maxRounds int
	broker    *pubsub.Broker[Turn]
	tracer    trace.Tracer
}

// NewRunner validates the configuration eagerly so a bad wiring fails the
// tick before any prompt is marked processing.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("runner needs a chat client")
	}
	if len(cfg.Agents) < 2 {
		return nil, fmt.Errorf("runner needs at least 2 agents, got %d", len(cfg.Agents))
	}
	if cfg.Writings == nil {
		return nil, fmt.Errorf("runner needs a writing store")
	}
	return &Runner{
		client:    cfg.Client,
		agents:    cfg.Agents,
		writings:  cfg.Writings,
		research:  cfg.Research,
		outputDir: cfg.OutputDir,
		maxRounds: cfg.MaxRounds,
		broker:    cfg.Broker,
		tracer:    cfg.Tracer,
	}, nil
}

// RunSession runs the group chat for one prompt and returns the transcript.
// The transcript is returned even on error so the caller can harvest
// whatever the agents produced before the failure.
func (r *Runner) RunSession(ctx context.Context, p store.Prompt) ([]Turn, error) {
	meta := ParseMetadata(p.Metadata)

	session, err := NewSession(SessionConfig{
		Client: r.client,
		Agents: ForPrompt(r.agents, p.PromptType, meta),
		Tools: NewRegistry(ToolDeps{
			Writings:  r.writings,
			Research:  r.research,
			OutputDir: r.outputDir,
			Prompt:    p,
			Meta:      meta,
		}),
		MaxRounds: r.maxRounds,
		Broker:    r.broker,
		Tracer:    r.tracer,
	})
	if err != nil {
		return nil, err
	}
	return session.Run(ctx, BuildTask(p, meta))
}
