// Package queue drives one drain of the shared prompts queue: acquire the
// process lock, fetch pending work, route each prompt through a generation
// session or a media pipeline, and checkpoint the database so the reader
// service sees the results immediately.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dmcsvoices/creative-ai-agents/internal/agent"
	"github.com/dmcsvoices/creative-ai-agents/internal/config"
	"github.com/dmcsvoices/creative-ai-agents/internal/health"
	"github.com/dmcsvoices/creative-ai-agents/internal/lock"
	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/media"
	"github.com/dmcsvoices/creative-ai-agents/internal/store"
	"github.com/dmcsvoices/creative-ai-agents/internal/tracing"
)

// DefaultFetchLimit matches the reader service's page size for pending work.
const DefaultFetchLimit = 5

// promptPause is the cooperative sleep between prompts so one tick cannot
// saturate the GPU host.
const promptPause = 2 * time.Second

// PromptStore is the slice of the prompt repository the processor drives.
type PromptStore interface {
	NextTextPrompts(limit int) ([]store.Prompt, error)
	NextMediaPrompts(limit int) ([]store.MediaPrompt, error)
	UpdateStatus(promptID int64, update store.StatusUpdate) error
	InsertArtifacts(promptID int64, artifacts []store.Artifact) error
}

// Checkpointer forces queued WAL pages back into the main database file.
type Checkpointer interface {
	Checkpoint() error
}

// Locker serializes ticks across processes.
type Locker interface {
	Acquire() error
	Release()
}

// SessionRunner turns one prompt into a group chat transcript.
type SessionRunner interface {
	RunSession(ctx context.Context, p store.Prompt) ([]agent.Turn, error)
}

// Harvester links the JSON a structured session produced, falling back to
// transcript extraction.
type Harvester interface {
	Harvest(ctx context.Context, p store.Prompt, transcript []agent.Turn) ([]int64, error)
}

// ModelChecker verifies the configured model names against the backend.
type ModelChecker interface {
	Models(ctx context.Context, wanted []string) error
}

// MediaProber reports whether the media host currently answers.
type MediaProber interface {
	Media(ctx context.Context) bool
}

// MediaRunner executes one synthesis workflow for a prompt.
type MediaRunner interface {
	Run(ctx context.Context, promptID int64, promptText string, metadata map[string]any) (media.RunOutput, error)
	ScriptName() string
}

// Backend defers LLM client construction until the tick knows text prompts
// exist. Connecting resolves the endpoint URL from the environment, so an
// empty queue must never reach it.
type Backend interface {
	Connect(ctx context.Context) (SessionRunner, ModelChecker, error)
}

// Options wires a Processor's collaborators. Prompts, Checkpoint, Lock,
// Backend, and Harvester are required; everything else has a default.
type Options struct {
	Prompts    PromptStore
	Checkpoint Checkpointer
	Lock       Locker
	Backend    Backend
	Harvester  Harvester

	// Prober reports media host availability; nil fails every probe.
	Prober MediaProber
	// Pipelines maps artifact types (image, audio) to their runners.
	Pipelines map[string]MediaRunner
	Media     config.MediaConfig

	RequiredEnv    []string
	ModelNames     []string
	ValidateModels bool

	// FetchLimit bounds each fetch pass; 0 means DefaultFetchLimit.
	FetchLimit int
	// Sleep is the pause between prompts; nil means time.Sleep.
	Sleep func(time.Duration)
	// Tracer is optional; nil disables tracing.
	Tracer trace.Tracer
}

// Processor owns the tick state machine. One instance serves one process;
// the lock keeps concurrent processes out.
type Processor struct {
	prompts    PromptStore
	checkpoint Checkpointer
	lock       Locker
	backend    Backend
	harvester  Harvester
	prober     MediaProber
	pipelines  map[string]MediaRunner
	media      config.MediaConfig

	requiredEnv    []string
	modelNames     []string
	validateModels bool

	fetchLimit int
	sleep      func(time.Duration)
	tracer     trace.Tracer
}

// NewProcessor validates the wiring and builds a processor.
func NewProcessor(opts Options) (*Processor, error) {
	if opts.Prompts == nil {
		return nil, fmt.Errorf("processor needs a prompt store")
	}
	if opts.Checkpoint == nil {
		return nil, fmt.Errorf("processor needs a checkpointer")
	}
	if opts.Lock == nil {
		return nil, fmt.Errorf("processor needs a process lock")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("processor needs a backend")
	}
	if opts.Harvester == nil {
		return nil, fmt.Errorf("processor needs a harvester")
	}
	fetchLimit := opts.FetchLimit
	if fetchLimit <= 0 {
		fetchLimit = DefaultFetchLimit
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Processor{
		prompts:        opts.Prompts,
		checkpoint:     opts.Checkpoint,
		lock:           opts.Lock,
		backend:        opts.Backend,
		harvester:      opts.Harvester,
		prober:         opts.Prober,
		pipelines:      opts.Pipelines,
		media:          opts.Media,
		requiredEnv:    opts.RequiredEnv,
		modelNames:     opts.ModelNames,
		validateModels: opts.ValidateModels,
		fetchLimit:     fetchLimit,
		sleep:          sleep,
		tracer:         tracer,
	}, nil
}

// RunTick performs one full queue drain. A busy lock is a clean no-op.
// Returned errors are fatal for the invocation (bad environment, unreachable
// store); per-prompt failures are recorded on the prompt rows and never
// abort the tick.
func (p *Processor) RunTick(ctx context.Context) (m TickMetrics, err error) {
	start := time.Now()
	defer func() { m.Duration = time.Since(start) }()

	var span trace.Span
	ctx, span = p.tracer.Start(ctx, tracing.SpanTick,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()
	span.SetAttributes(attribute.String(tracing.AttrTickID, uuid.NewString()))

	log.Info(log.CatQueue, "Starting queue processor")

	if err := p.lock.Acquire(); err != nil {
		if errors.Is(err, lock.ErrBusy) {
			log.Info(log.CatLock, "Skipping execution", "reason", err)
			span.SetStatus(codes.Ok, "lock busy")
			return m, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return m, fmt.Errorf("acquiring process lock: %w", err)
	}
	defer p.lock.Release()

	log.Info(log.CatQueue, "Acquired process lock, checking for unprocessed prompts")

	textPrompts, err := p.prompts.NextTextPrompts(p.fetchLimit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return m, fmt.Errorf("fetching unprocessed prompts: %w", err)
	}

	var mediaPrompts []store.MediaPrompt
	if p.media.Enabled && len(p.pipelines) > 0 {
		mediaPrompts, err = p.prompts.NextMediaPrompts(p.fetchLimit)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return m, fmt.Errorf("fetching pending media prompts: %w", err)
		}
	}
	span.SetAttributes(
		attribute.Int(tracing.AttrTextPrompts, len(textPrompts)),
		attribute.Int(tracing.AttrMediaPrompts, len(mediaPrompts)),
	)

	if len(textPrompts) == 0 && len(mediaPrompts) == 0 {
		log.Info(log.CatQueue, "No unprocessed prompts found, exiting without model validation")
		span.SetStatus(codes.Ok, "")
		return m, nil
	}

	if len(mediaPrompts) > 0 {
		log.Info(log.CatQueue, "Found pending media prompts", "count", len(mediaPrompts))
	}
	if len(textPrompts) > 0 {
		log.Info(log.CatQueue, "Found unprocessed prompts, proceeding with validation", "count", len(textPrompts))
	}

	// Environment, endpoint resolution, and model validation only matter
	// when a generation session is about to run. Media prompts alone must
	// not touch the LLM host.
	var runner SessionRunner
	if len(textPrompts) > 0 {
		if err := health.Environment(p.requiredEnv); err != nil {
			log.ErrorErr(log.CatHealth, "Environment check failed", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return m, err
		}

		var checker ModelChecker
		runner, checker, err = p.backend.Connect(ctx)
		if err != nil {
			log.ErrorErr(log.CatBackend, "Backend connection failed", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return m, fmt.Errorf("connecting backend: %w", err)
		}

		if p.validateModels && len(p.modelNames) > 0 {
			log.Info(log.CatHealth, "Validating models for active prompt processing", "models", len(p.modelNames))
			if err := checker.Models(ctx, p.modelNames); err != nil {
				// The prompts stay queued; the next tick retries once
				// the models are loaded again.
				log.ErrorErr(log.CatHealth, "Model validation failed, skipping this tick", err)
				m.MediaDeferred = len(mediaPrompts)
				span.RecordError(err)
				span.SetStatus(codes.Ok, "models unavailable")
				return m, nil
			}
		}
	}

	for _, prompt := range textPrompts {
		log.Info(log.CatQueue, "Processing prompt",
			"prompt_id", prompt.ID, "prompt_type", prompt.PromptType,
			"text", excerpt(prompt.PromptText, 50))

		// Structured prompts always generate their JSON first; they never
		// skip straight to media synthesis.
		routed := !prompt.Kind().IsStructured() &&
			p.media.Enabled && p.media.RoutesMedia(prompt.PromptType)

		var perr error
		if routed {
			perr = p.processMedia(ctx, prompt)
			m.MediaProcessed++
			if perr != nil {
				m.MediaFailed++
			}
		} else {
			perr = p.processText(ctx, runner, prompt)
			m.TextProcessed++
			if perr != nil {
				m.TextFailed++
			}
		}
		if perr != nil {
			log.ErrorErr(log.CatQueue, "Failed to process prompt", perr, "prompt_id", prompt.ID)
		} else {
			log.Info(log.CatQueue, "Successfully processed prompt", "prompt_id", prompt.ID)
		}

		p.sleep(promptPause)
	}

	if len(mediaPrompts) > 0 {
		if p.prober != nil && p.prober.Media(ctx) {
			for _, mp := range mediaPrompts {
				log.Info(log.CatQueue, "Processing media for prompt",
					"prompt_id", mp.ID, "prompt_type", mp.PromptType, "writings", len(mp.Writings))

				m.MediaProcessed++
				if perr := p.processMedia(ctx, mp.Prompt); perr != nil {
					m.MediaFailed++
					log.ErrorErr(log.CatQueue, "Failed to generate media for prompt", perr, "prompt_id", mp.ID)
				} else {
					log.Info(log.CatQueue, "Successfully generated media for prompt", "prompt_id", mp.ID)
				}

				p.sleep(promptPause)
			}
		} else {
			// Completed prompts keep artifact_status=pending and are
			// retried next tick; only the probe failed, not the prompts.
			log.Warn(log.CatMedia, "Media host unavailable, deferring media prompts", "count", len(mediaPrompts))
			m.MediaDeferred = len(mediaPrompts)
		}
	}

	m.Duration = time.Since(start)
	log.Info(log.CatQueue, "Queue processing completed", m.Fields()...)

	if err := p.checkpoint.Checkpoint(); err != nil {
		log.Warn(log.CatStore, "WAL checkpoint failed", "error", err)
	} else {
		log.Info(log.CatStore, "WAL checkpoint completed")
	}

	span.SetStatus(codes.Ok, "")
	return m, nil
}

// processText drives one prompt through a generation session. Structured
// prompts harvest their JSON afterwards, even when the session itself
// errored, so tool output produced before a failure still counts.
func (p *Processor) processText(ctx context.Context, runner SessionRunner, prompt store.Prompt) error {
	var span trace.Span
	ctx, span = p.tracer.Start(ctx, tracing.SpanPrompt,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()
	span.SetAttributes(
		attribute.Int64(tracing.AttrPromptID, prompt.ID),
		attribute.String(tracing.AttrPromptType, prompt.PromptType),
	)

	log.Info(log.CatQueue, "Starting generation",
		"prompt_id", prompt.ID, "text", excerpt(prompt.PromptText, 100))

	if err := p.prompts.UpdateStatus(prompt.ID, store.StatusUpdate{Status: store.StatusProcessing}); err != nil {
		return p.fail(span, prompt.ID, fmt.Errorf("marking prompt processing: %w", err))
	}

	transcript, sessionErr := runner.RunSession(ctx, prompt)

	if prompt.Kind().IsStructured() {
		ids, harvestErr := p.harvester.Harvest(ctx, prompt, transcript)
		if harvestErr == nil {
			if err := p.prompts.UpdateStatus(prompt.ID, store.StatusUpdate{
				Status:         store.StatusCompleted,
				ArtifactStatus: store.String(store.ArtifactPending),
			}); err != nil {
				return fmt.Errorf("marking prompt completed: %w", err)
			}
			log.Info(log.CatQueue, "Structured prompt completed, media pending",
				"prompt_id", prompt.ID, "writings", len(ids))
			span.SetStatus(codes.Ok, "")
			return nil
		}
		// With no JSON to show for it, the session error explains the
		// failure better than the extraction error.
		if sessionErr != nil {
			return p.fail(span, prompt.ID, sessionErr)
		}
		return p.fail(span, prompt.ID, harvestErr)
	}

	if sessionErr != nil {
		return p.fail(span, prompt.ID, sessionErr)
	}
	if err := p.prompts.UpdateStatus(prompt.ID, store.StatusUpdate{Status: store.StatusCompleted}); err != nil {
		return fmt.Errorf("marking prompt completed: %w", err)
	}
	log.Info(log.CatQueue, "Generation completed", "prompt_id", prompt.ID)
	span.SetStatus(codes.Ok, "")
	return nil
}

// artifactSummary is the artifact_metadata JSON persisted on a completed
// media prompt.
type artifactSummary struct {
	DurationSeconds float64 `json:"duration_seconds"`
	RunDirectory    string  `json:"run_directory"`
	StdoutTail      string  `json:"stdout_tail"`
	StderrTail      string  `json:"stderr_tail"`
	ArtifactCount   int     `json:"artifact_count"`
}

// processMedia resolves the pipeline for a prompt's type, probes the media
// host, and runs the workflow. Serves both directly-routed prompts and the
// deferred media pass.
func (p *Processor) processMedia(ctx context.Context, prompt store.Prompt) error {
	var span trace.Span
	ctx, span = p.tracer.Start(ctx, tracing.SpanMedia,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	defer span.End()

	runID := uuid.NewString()
	span.SetAttributes(
		attribute.Int64(tracing.AttrPromptID, prompt.ID),
		attribute.String(tracing.AttrPromptType, prompt.PromptType),
		attribute.String(tracing.AttrRunID, runID),
	)

	pipelineType, ok := p.media.PipelineTypeFor(prompt.PromptType)
	if !ok {
		log.Warn(log.CatMedia, "No media pipeline for prompt type",
			"prompt_id", prompt.ID, "prompt_type", prompt.PromptType)
		return p.failMedia(span, prompt.ID, store.ArtifactUnsupported,
			fmt.Errorf("no media pipeline for prompt type %q", prompt.PromptType))
	}
	span.SetAttributes(attribute.String(tracing.AttrPipelineType, pipelineType))

	pipeline, ok := p.pipelines[pipelineType]
	if !ok {
		log.Warn(log.CatMedia, "Media pipeline unavailable",
			"prompt_id", prompt.ID, "pipeline", pipelineType)
		return p.failMedia(span, prompt.ID, store.ArtifactUnsupported,
			fmt.Errorf("media pipeline %q is unavailable", pipelineType))
	}
	span.SetAttributes(attribute.String(tracing.AttrScriptName, pipeline.ScriptName()))

	if p.prober == nil || !p.prober.Media(ctx) {
		return p.failMedia(span, prompt.ID, store.ArtifactError,
			errors.New("ComfyUI host is unavailable"))
	}

	if err := p.prompts.UpdateStatus(prompt.ID, store.StatusUpdate{
		Status:         store.StatusProcessing,
		ArtifactStatus: store.String(store.ArtifactProcessing),
	}); err != nil {
		return p.failMedia(span, prompt.ID, store.ArtifactError,
			fmt.Errorf("marking prompt processing: %w", err))
	}

	meta := metadataMap(prompt.Metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["run_id"] = runID

	log.Info(log.CatMedia, "Running media pipeline",
		"prompt_id", prompt.ID, "pipeline", pipelineType,
		"script", pipeline.ScriptName(), "run_id", runID)

	out, err := pipeline.Run(ctx, prompt.ID, prompt.PromptText, meta)
	if err != nil {
		var perr *media.PipelineError
		if errors.As(err, &perr) {
			log.ErrorErr(log.CatMedia, "Media pipeline failed", err,
				"prompt_id", prompt.ID, "script", perr.Script, "return_code", perr.ReturnCode)
		} else {
			log.ErrorErr(log.CatMedia, "Media processing failed", err, "prompt_id", prompt.ID)
		}
		return p.failMedia(span, prompt.ID, store.ArtifactError, err)
	}

	if err := p.prompts.InsertArtifacts(prompt.ID, out.Artifacts); err != nil {
		return p.failMedia(span, prompt.ID, store.ArtifactError,
			fmt.Errorf("recording artifacts: %w", err))
	}

	summary, _ := json.Marshal(artifactSummary{
		DurationSeconds: out.Duration.Seconds(),
		RunDirectory:    out.RunDirectory,
		StdoutTail:      media.Tail(out.Stdout),
		StderrTail:      media.Tail(out.Stderr),
		ArtifactCount:   len(out.Artifacts),
	})
	if err := p.prompts.UpdateStatus(prompt.ID, store.StatusUpdate{
		Status:           store.StatusCompleted,
		ArtifactStatus:   store.String(store.ArtifactReady),
		ArtifactMetadata: store.String(string(summary)),
	}); err != nil {
		return fmt.Errorf("marking prompt completed: %w", err)
	}

	span.SetAttributes(attribute.Int(tracing.AttrArtifactCount, len(out.Artifacts)))
	span.SetStatus(codes.Ok, "")
	log.Info(log.CatMedia, "Media generation succeeded",
		"prompt_id", prompt.ID, "artifacts", len(out.Artifacts), "run_id", runID)
	return nil
}

// fail marks a prompt failed and keeps the tick moving. A failing status
// write is logged rather than layered on top of the original failure.
func (p *Processor) fail(span trace.Span, promptID int64, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	span.SetAttributes(attribute.String(tracing.AttrErrorMessage, cause.Error()))

	if err := p.prompts.UpdateStatus(promptID, store.StatusUpdate{
		Status:       store.StatusFailed,
		ErrorMessage: store.String(cause.Error()),
	}); err != nil {
		log.ErrorErr(log.CatStore, "Failed to record prompt failure", err, "prompt_id", promptID)
	}
	return cause
}

// failMedia is fail with the artifact_status the error class dictates:
// unsupported for routing gaps, error for everything downstream.
func (p *Processor) failMedia(span trace.Span, promptID int64, artifactStatus string, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	span.SetAttributes(attribute.String(tracing.AttrErrorMessage, cause.Error()))

	if err := p.prompts.UpdateStatus(promptID, store.StatusUpdate{
		Status:         store.StatusFailed,
		ErrorMessage:   store.String(cause.Error()),
		ArtifactStatus: store.String(artifactStatus),
	}); err != nil {
		log.ErrorErr(log.CatStore, "Failed to record media failure", err, "prompt_id", promptID)
	}
	return cause
}

// metadataMap decodes a prompt's metadata JSON for artifact provenance.
// Malformed metadata is dropped; the hints are advisory.
func metadataMap(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

// excerpt returns the first n runes of s for log lines.
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
