package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/lipgloss"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmcsvoices/creative-ai-agents/internal/agent"
	"github.com/dmcsvoices/creative-ai-agents/internal/backend"
	"github.com/dmcsvoices/creative-ai-agents/internal/config"
	"github.com/dmcsvoices/creative-ai-agents/internal/health"
	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/paths"
	"github.com/dmcsvoices/creative-ai-agents/internal/pubsub"
	"github.com/dmcsvoices/creative-ai-agents/internal/store"
	"github.com/dmcsvoices/creative-ai-agents/internal/store/sqlite"
)

// testPrompts are the built-in prompts the default mode picks from. A direct
// run exercises the whole session and tool path without touching the queue
// or the lock.
var testPrompts = []string{
	"Write a short poem about the intersection of technology and human emotion",
	"Create a dialogue between two characters discussing the nature of creativity",
	"Write a brief prose piece about a moment of unexpected beauty",
}

// testPromptID marks writings saved during direct runs; no queue row carries
// this ID.
const testPromptID = 999

// runService runs one generation session with a randomly chosen built-in
// prompt and mirrors the live transcript to out.
func runService(ctx context.Context, out io.Writer, cfg config.Config, tracer trace.Tracer) error {
	log.Info(log.CatConfig, "Starting service",
		"name", cfg.ServiceInfo.Name, "version", cfg.ServiceInfo.Version)

	if err := health.Environment(cfg.Environment.RequiredVars); err != nil {
		return err
	}
	baseURL, err := cfg.Backend.ResolveURL()
	if err != nil {
		return err
	}
	client := backend.New(baseURL, config.APIKey())
	if cfg.Processing.ValidateModelsOnStartup {
		if err := health.NewChecker(client, baseURL, "").Models(ctx, cfg.Models.All()); err != nil {
			return fmt.Errorf("model validation failed: %w", err)
		}
	}

	db, err := sqlite.NewDB(paths.ExpandHome(cfg.Database.Path))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	agents, err := agent.BuildAgents(cfg.Agents, cfg.Models)
	if err != nil {
		return err
	}

	broker := pubsub.NewBroker[agent.Turn]()
	turns := broker.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		mirrorTurns(out, turns)
	}()
	// Close always runs so the mirror goroutine drains and exits before we
	// return and the process tears down stdout.
	finish := func() {
		broker.Close()
		<-done
	}

	runner, err := agent.NewRunner(agent.RunnerConfig{
		Client:    client,
		Agents:    agents,
		Writings:  db.Writings(),
		Research:  researcher(),
		OutputDir: paths.ExpandHome(cfg.Processing.OutputDirectory),
		MaxRounds: cfg.MaxRounds(),
		Broker:    broker,
		Tracer:    tracer,
	})
	if err != nil {
		finish()
		return err
	}

	prompt := store.Prompt{
		ID:         testPromptID,
		PromptText: testPrompts[rand.IntN(len(testPrompts))],
		PromptType: "text",
	}
	log.Info(log.CatAgent, "Running test generation", "prompt", prompt.PromptText)

	_, err = runner.RunSession(ctx, prompt)
	finish()
	if err != nil {
		return fmt.Errorf("generation session failed: %w", err)
	}
	log.Info(log.CatAgent, "Test generation completed")
	return nil
}

var (
	speakerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	toolStyle    = lipgloss.NewStyle().Faint(true)
)

// mirrorTurns prints session events as the broker delivers them. Terminated
// events re-carry the final turn, which has already been printed, so they
// are skipped.
func mirrorTurns(out io.Writer, turns <-chan pubsub.Event[agent.Turn]) {
	for ev := range turns {
		switch ev.Type {
		case pubsub.ToolResultEvent:
			fmt.Fprintf(out, "%s %s\n\n", toolStyle.Render("["+ev.Payload.Tool+"]"), ev.Payload.Content)
		case pubsub.TerminatedEvent:
		default:
			fmt.Fprintf(out, "%s\n%s\n\n", speakerStyle.Render(ev.Payload.Agent), ev.Payload.Content)
		}
	}
}
