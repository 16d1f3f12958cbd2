package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/config"
	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/store"
)

// Artifact types. They name both the pipeline and the subdirectory of the
// output root its runs live under.
const (
	ArtifactImage = "image"
	ArtifactAudio = "audio"
)

// Prompt-bearing argument names fixed by the exported workflow scripts.
const (
	imagePromptArg = "text4"
	audioPromptArg = "lyrics6"
)

const runDirTimeLayout = "20060102T150405"

// PipelineConfig carries the construction parameters shared by both
// pipeline types.
type PipelineConfig struct {
	ScriptPath     string
	Python         string
	OutputRoot     string
	QueueSize      int
	Timeout        time.Duration
	ComfyUIDir     string
	ExtraArgs      []string
	CommandFactory CommandFactoryFunc // nil means run real subprocesses
}

// Pipeline invokes one workflow script and collects what it writes. The
// directory layout it produces is an external contract:
// <output_root>/<artifact_type>/<prompt_id>_<UTC timestamp>/...
type Pipeline struct {
	artifactType string
	promptArg    string
	scriptPath   string
	python       string
	outputRoot   string
	queueSize    int
	timeout      time.Duration
	comfyUIDir   string
	extraArgs    []string
	factory      CommandFactoryFunc
}

// RunOutput is the result of one successful pipeline run.
type RunOutput struct {
	Artifacts    []store.Artifact
	Stdout       string
	Stderr       string
	Duration     time.Duration
	RunDirectory string // POSIX, relative to the output root
}

// NewImagePipeline builds the image pipeline; the workflow receives the
// prompt text through --text4.
func NewImagePipeline(cfg PipelineConfig) *Pipeline {
	return newPipeline(ArtifactImage, imagePromptArg, cfg)
}

// NewAudioPipeline builds the audio pipeline; the workflow receives the
// lyrics through --lyrics6, and each artifact's metadata records the
// prompt text it was sung from.
func NewAudioPipeline(cfg PipelineConfig) *Pipeline {
	return newPipeline(ArtifactAudio, audioPromptArg, cfg)
}

func newPipeline(artifactType, promptArg string, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		artifactType: artifactType,
		promptArg:    promptArg,
		scriptPath:   cfg.ScriptPath,
		python:       cfg.Python,
		outputRoot:   cfg.OutputRoot,
		queueSize:    cfg.QueueSize,
		timeout:      cfg.Timeout,
		comfyUIDir:   cfg.ComfyUIDir,
		extraArgs:    cfg.ExtraArgs,
		factory:      cfg.CommandFactory,
	}
}

// ArtifactType returns "image" or "audio".
func (p *Pipeline) ArtifactType() string { return p.artifactType }

// ScriptName returns the workflow script's base name.
func (p *Pipeline) ScriptName() string { return filepath.Base(p.scriptPath) }

// Run executes the workflow for one prompt and returns the artifacts it
// produced. metadata entries are copied into every artifact's metadata on
// top of the script name and duration.
func (p *Pipeline) Run(ctx context.Context, promptID int64, promptText string, metadata map[string]any) (RunOutput, error) {
	relRun := path.Join(p.artifactType, fmt.Sprintf("%d_%s", promptID, time.Now().UTC().Format(runDirTimeLayout)))
	runDir := filepath.Join(p.outputRoot, filepath.FromSlash(relRun))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return RunOutput{}, fmt.Errorf("failed to create run directory: %w", err)
	}

	// Fresh run directories are empty; the snapshot guards reruns that
	// land on the same second.
	before, err := SnapshotDir(runDir)
	if err != nil {
		return RunOutput{}, err
	}

	result, err := NewRunBuilder().
		WithPython(p.python).
		WithScript(p.scriptPath).
		WithArgs(p.buildArgs(promptText, runDir)).
		WithTimeout(p.timeout).
		WithCommandFactory(p.factory).
		Run(ctx)
	if err != nil {
		return RunOutput{}, err
	}

	newFiles, _, err := DetectNew(runDir, before)
	if err != nil {
		return RunOutput{}, err
	}
	if len(newFiles) == 0 {
		return RunOutput{}, fmt.Errorf("%w for prompt %d using script %s", ErrNoArtifacts, promptID, p.ScriptName())
	}

	metaJSON, err := p.artifactMetadata(promptText, result.Duration, metadata)
	if err != nil {
		return RunOutput{}, err
	}

	artifacts := make([]store.Artifact, 0, len(newFiles))
	for _, rel := range newFiles {
		filePath := path.Join(relRun, rel)
		preview := ""
		if p.artifactType == ArtifactImage {
			preview = filePath
		}
		artifacts = append(artifacts, store.Artifact{
			PromptID:     promptID,
			ArtifactType: p.artifactType,
			FilePath:     filePath,
			PreviewPath:  preview,
			Metadata:     metaJSON,
		})
	}

	log.Info(log.CatMedia, "Workflow produced artifacts",
		"prompt_id", promptID, "script", p.ScriptName(),
		"count", len(artifacts), "run_directory", relRun)

	return RunOutput{
		Artifacts:    artifacts,
		Stdout:       result.Stdout,
		Stderr:       result.Stderr,
		Duration:     result.Duration,
		RunDirectory: relRun,
	}, nil
}

func (p *Pipeline) buildArgs(promptText, runDir string) []string {
	args := []string{
		"--" + p.promptArg, promptText,
		"--queue-size", strconv.Itoa(p.queueSize),
		"--output", runDir,
	}
	if p.comfyUIDir != "" {
		args = append(args, "--comfyui-directory", p.comfyUIDir)
	}
	return append(args, p.extraArgs...)
}

// artifactMetadata layers script name and duration, then the audio prompt
// text, then caller metadata; later entries win.
func (p *Pipeline) artifactMetadata(promptText string, duration time.Duration, metadata map[string]any) (string, error) {
	merged := map[string]any{
		"script":           p.ScriptName(),
		"duration_seconds": duration.Seconds(),
	}
	if p.artifactType == ArtifactAudio {
		merged["prompt_text"] = promptText
	}
	for k, v := range metadata {
		merged[k] = v
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("failed to encode artifact metadata: %w", err)
	}
	return string(encoded), nil
}

// scriptDefinitions maps config script keys to pipelines in probe order.
// Both music and audio keys feed the audio pipeline; the first configured
// key wins per artifact type.
var scriptDefinitions = []struct {
	scriptKey    string
	artifactType string
	build        func(PipelineConfig) *Pipeline
}{
	{"image", ArtifactImage, NewImagePipeline},
	{"music", ArtifactAudio, NewAudioPipeline},
	{"audio", ArtifactAudio, NewAudioPipeline},
}

// BuildPipelines constructs the pipelines the media configuration names,
// keyed by artifact type, and prepares the output tree. Relative script and
// output paths resolve against the configuration file's directory. Script
// keys pointing at missing files are logged and skipped; an empty map means
// media synthesis is unavailable.
func BuildPipelines(configDir string, cfg config.MediaConfig, factory CommandFactoryFunc) (map[string]*Pipeline, string, error) {
	outDir := cfg.ComfyUI.OutputDirectory
	if outDir == "" {
		outDir = "GeneratedMedia"
	}
	outputRoot := resolveUnder(configDir, outDir)
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create media output root: %w", err)
	}
	for _, sub := range []string{ArtifactImage, ArtifactAudio} {
		if err := os.MkdirAll(filepath.Join(outputRoot, sub), 0o755); err != nil {
			return nil, "", fmt.Errorf("failed to create media output subdirectory: %w", err)
		}
	}

	python := cfg.ComfyUI.Python
	if python == "" {
		python = "python3"
	}

	pipelines := map[string]*Pipeline{}
	for _, def := range scriptDefinitions {
		rel := cfg.Scripts[def.scriptKey]
		if rel == "" {
			continue
		}
		scriptPath := resolveUnder(configDir, rel)
		if _, err := os.Stat(scriptPath); err != nil {
			log.Error(log.CatMedia, "Media script not found",
				"script_key", def.scriptKey, "path", scriptPath)
			continue
		}
		if _, ok := pipelines[def.artifactType]; ok {
			continue
		}
		pipelines[def.artifactType] = def.build(PipelineConfig{
			ScriptPath:     scriptPath,
			Python:         python,
			OutputRoot:     outputRoot,
			QueueSize:      cfg.ComfyUI.QueueSize,
			Timeout:        time.Duration(cfg.ComfyUI.TimeoutSeconds) * time.Second,
			ComfyUIDir:     cfg.ComfyUI.ComfyUIDir,
			ExtraArgs:      cfg.ScriptArgs[def.scriptKey],
			CommandFactory: factory,
		})
	}

	if len(pipelines) == 0 {
		log.Warn(log.CatMedia, "No media pipelines configured; media prompts will be deferred")
	}
	return pipelines, outputRoot, nil
}

func resolveUnder(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
