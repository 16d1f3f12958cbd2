package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dmcsvoices/creative-ai-agents/internal/agent"
	"github.com/dmcsvoices/creative-ai-agents/internal/backend"
	"github.com/dmcsvoices/creative-ai-agents/internal/config"
	"github.com/dmcsvoices/creative-ai-agents/internal/health"
	"github.com/dmcsvoices/creative-ai-agents/internal/lock"
	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/media"
	"github.com/dmcsvoices/creative-ai-agents/internal/paths"
	"github.com/dmcsvoices/creative-ai-agents/internal/queue"
	"github.com/dmcsvoices/creative-ai-agents/internal/store/sqlite"
)

// lockTimeout is how old a lock file must be before a new tick treats its
// owner as dead and reclaims it. Longer than any healthy tick, shorter than
// two cron cycles.
const lockTimeout = 45 * time.Minute

// runQueue performs one queue tick: acquire the lock, drain text prompts
// through agent sessions, then route completed structured prompts to media
// pipelines. A busy lock or an empty queue exits cleanly so cron stays quiet.
func runQueue(ctx context.Context, out io.Writer, cfg config.Config, configPath string, tracer trace.Tracer) error {
	db, err := sqlite.NewDB(paths.ExpandHome(cfg.Database.Path))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	var pipelines map[string]queue.MediaRunner
	if cfg.Media.Enabled {
		built, _, err := media.BuildPipelines(filepath.Dir(configPath), cfg.Media, nil)
		if err != nil {
			return fmt.Errorf("building media pipelines: %w", err)
		}
		pipelines = make(map[string]queue.MediaRunner, len(built))
		for artifactType, pipeline := range built {
			pipelines[artifactType] = pipeline
		}
	}

	processor, err := queue.NewProcessor(queue.Options{
		Prompts:        db.Prompts(),
		Checkpoint:     db,
		Lock:           lock.New(paths.LockPath(configPath), lockTimeout),
		Backend:        &lazyBackend{cfg: cfg, db: db, tracer: tracer},
		Harvester:      agent.NewHarvester(db.Writings(), db.Prompts(), cfg.Processing.MaxProcessingMinutes, tracer),
		Prober:         health.NewChecker(nil, "", cfg.Media.ComfyUI.Host),
		Pipelines:      pipelines,
		Media:          cfg.Media,
		RequiredEnv:    cfg.Environment.RequiredVars,
		ModelNames:     cfg.Models.All(),
		ValidateModels: cfg.Processing.ValidateModelsOnStartup,
		Tracer:         tracer,
	})
	if err != nil {
		return err
	}

	metrics, err := processor.RunTick(ctx)
	if err != nil {
		return err
	}
	if metrics.Total()+metrics.Failed()+metrics.MediaDeferred > 0 {
		fmt.Fprintln(out, metrics.Summary())
	}
	return nil
}

// lazyBackend defers endpoint resolution and session construction until the
// processor has found text prompts to run. Empty-queue ticks never read the
// tunnel URL environment variables, which are routinely absent between
// generation windows.
type lazyBackend struct {
	cfg    config.Config
	db     *sqlite.DB
	tracer trace.Tracer
}

func (b *lazyBackend) Connect(ctx context.Context) (queue.SessionRunner, queue.ModelChecker, error) {
	baseURL, err := b.cfg.Backend.ResolveURL()
	if err != nil {
		return nil, nil, err
	}
	client := backend.New(baseURL, config.APIKey())

	agents, err := agent.BuildAgents(b.cfg.Agents, b.cfg.Models)
	if err != nil {
		return nil, nil, err
	}
	runner, err := agent.NewRunner(agent.RunnerConfig{
		Client:    client,
		Agents:    agents,
		Writings:  b.db.Writings(),
		Research:  researcher(),
		OutputDir: paths.ExpandHome(b.cfg.Processing.OutputDirectory),
		MaxRounds: b.cfg.MaxRounds(),
		Tracer:    b.tracer,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info(log.CatBackend, "Backend connected",
		"type", b.cfg.Backend.Type, "url", baseURL, "agents", len(agents))
	return runner, health.NewChecker(client, baseURL, ""), nil
}

// researcher returns a Tavily client when the API key is present and nil
// otherwise, which disables the research tool for the session.
func researcher() agent.Researcher {
	if key := os.Getenv("TVLY_API_KEY"); key != "" {
		return agent.NewTavilyClient(key)
	}
	return nil
}
