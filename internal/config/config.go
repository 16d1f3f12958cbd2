// Package config provides configuration types and defaults for the poets
// orchestrator.
package config

import (
	"fmt"
	"os"
	"strings"
)

// ServiceInfoConfig identifies the deployment in logs and health reports.
type ServiceInfoConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Description string `mapstructure:"description"`
}

// LoggingConfig holds log destination and verbosity.
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// DatabaseConfig points at the SQLite file shared with the reader service.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Backend type values. They select how the LLM endpoint URL is resolved.
const (
	BackendLMS    = "lms"    // LM Studio behind an ngrok tunnel, URL from $NGROKURL
	BackendOllama = "oll"    // Ollama on the LAN, URL from $WIFI_LLM_URL
	BackendManual = "manual" // explicit URL from the config file
)

// BackendConfig selects the OpenAI-compatible endpoint.
type BackendConfig struct {
	Type      string `mapstructure:"type"` // lms, oll, or manual
	ManualURL string `mapstructure:"manual_url"`
}

// ResolveURL returns the chat-completion base URL for the configured backend.
func (b BackendConfig) ResolveURL() (string, error) {
	switch b.Type {
	case BackendLMS:
		url := os.Getenv("NGROKURL")
		if url == "" {
			return "", fmt.Errorf("backend type %q requires NGROKURL to be set", b.Type)
		}
		return url, nil
	case BackendOllama:
		url := os.Getenv("WIFI_LLM_URL")
		if url == "" {
			return "", fmt.Errorf("backend type %q requires WIFI_LLM_URL to be set", b.Type)
		}
		return url, nil
	case BackendManual:
		if b.ManualURL == "" {
			return "", fmt.Errorf("backend type %q requires backend.manual_url", b.Type)
		}
		return b.ManualURL, nil
	default:
		return "", fmt.Errorf("backend.type must be %q, %q, or %q, got %q",
			BackendLMS, BackendOllama, BackendManual, b.Type)
	}
}

// APIKey returns the API key forwarded to the LLM client. Local backends
// ignore the value, so a placeholder is substituted when the variable is
// unset.
func APIKey() string {
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		return key
	}
	return "dummy-key"
}

// ModelsConfig names the three local models agents may be assigned to.
type ModelsConfig struct {
	Local1 string `mapstructure:"local1"`
	Local2 string `mapstructure:"local2"`
	Local3 string `mapstructure:"local3"`
}

// ByAssignment resolves a config_assignment key (local1, local2, local3)
// to a model name. Unknown keys fall back to local1.
func (m ModelsConfig) ByAssignment(key string) string {
	switch key {
	case "local2":
		return m.Local2
	case "local3":
		return m.Local3
	default:
		return m.Local1
	}
}

// All returns the configured model names, skipping empty entries.
func (m ModelsConfig) All() []string {
	var names []string
	for _, n := range []string{m.Local1, m.Local2, m.Local3} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// AgentConfig describes one chat agent. An empty SystemMessage falls back to
// the embedded persona template matching Name.
type AgentConfig struct {
	Name             string `mapstructure:"name"`
	SystemMessage    string `mapstructure:"system_message"`
	ConfigAssignment string `mapstructure:"config_assignment"` // local1, local2, local3
}

// GroupChatConfig configures the group chat manager.
type GroupChatConfig struct {
	ConfigAssignment string `mapstructure:"config_assignment"`
	MaxRound         int    `mapstructure:"max_round"`
}

// ProcessingConfig bounds a generation session.
type ProcessingConfig struct {
	OutputDirectory         string `mapstructure:"output_directory"`
	MaxRounds               int    `mapstructure:"max_rounds"`
	MaxProcessingMinutes    int    `mapstructure:"max_processing_time_minutes"`
	ValidateModelsOnStartup bool   `mapstructure:"validate_models_on_startup"`
}

// EnvironmentConfig lists environment variables that must be present before
// any text generation runs.
type EnvironmentConfig struct {
	RequiredVars []string `mapstructure:"required_vars"`
}

// TracingConfig holds trace export settings for a tick.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	// Default: "file"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter.
	FilePath string `mapstructure:"file_path"`

	// OTLPEndpoint is the collector endpoint for the "otlp" exporter.
	// Default: "localhost:4317"
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ComfyUIConfig holds the media engine connection and invocation settings.
type ComfyUIConfig struct {
	Host            string `mapstructure:"host"`
	Python          string `mapstructure:"python"`
	QueueSize       int    `mapstructure:"queue_size"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	ComfyUIDir      string `mapstructure:"comfyui_directory"`
	OutputDirectory string `mapstructure:"output_directory"`
}

// MediaConfig configures the media synthesis pass. Scripts and ScriptArgs
// are keyed by script key (image, music, audio); PromptTypeMap maps a
// prompt_type to the artifact type whose pipeline should handle it.
type MediaConfig struct {
	Enabled       bool                `mapstructure:"enabled"`
	ComfyUI       ComfyUIConfig       `mapstructure:"comfyui"`
	Scripts       map[string]string   `mapstructure:"scripts"`
	ScriptArgs    map[string][]string `mapstructure:"script_args"`
	PromptTypeMap map[string]string   `mapstructure:"prompt_type_map"`
}

// defaultPromptTypeMap routes prompt types to artifact types when the
// configuration does not override them. The structured prompt types route to
// the pipeline that renders their harvested JSON.
var defaultPromptTypeMap = map[string]string{
	"image":         "image",
	"music":         "audio",
	"audio":         "audio",
	"voice":         "audio",
	"image_prompt":  "image",
	"lyrics_prompt": "audio",
}

// PipelineTypeFor maps a prompt type (image, music, audio, voice, ...) to an
// artifact type (image, audio). Configured entries overlay the built-in map.
// The second return is false for prompt types with no mapping; those are
// unsupported.
func (m MediaConfig) PipelineTypeFor(promptType string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(promptType))
	if t, ok := m.PromptTypeMap[key]; ok {
		return t, true
	}
	t, ok := defaultPromptTypeMap[key]
	return t, ok
}

// RoutesMedia reports whether a prompt type resolves to any media pipeline,
// configured or default.
func (m MediaConfig) RoutesMedia(promptType string) bool {
	_, ok := m.PipelineTypeFor(promptType)
	return ok
}

// Config holds all configuration options for the orchestrator.
type Config struct {
	ServiceInfo ServiceInfoConfig `mapstructure:"service_info"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Models      ModelsConfig      `mapstructure:"models"`
	Agents      []AgentConfig     `mapstructure:"agents"`
	GroupChat   GroupChatConfig   `mapstructure:"group_chat_manager"`
	Processing  ProcessingConfig  `mapstructure:"processing"`
	Environment EnvironmentConfig `mapstructure:"environment"`
	Media       MediaConfig       `mapstructure:"media"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// MaxRounds returns the group chat round cap, preferring the group chat
// manager setting over the processing section.
func (c Config) MaxRounds() int {
	if c.GroupChat.MaxRound > 0 {
		return c.GroupChat.MaxRound
	}
	if c.Processing.MaxRounds > 0 {
		return c.Processing.MaxRounds
	}
	return Defaults().Processing.MaxRounds
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		ServiceInfo: ServiceInfoConfig{
			Name:    "poets-cron-service",
			Version: "3.0",
		},
		Logging: LoggingConfig{
			File:  "poets_cron.log",
			Level: "info",
		},
		Database: DatabaseConfig{
			Path: "data/poets.db",
		},
		Backend: BackendConfig{
			Type: BackendLMS,
		},
		GroupChat: GroupChatConfig{
			ConfigAssignment: "local3",
		},
		Processing: ProcessingConfig{
			OutputDirectory:         "generated_poems",
			MaxRounds:               20,
			MaxProcessingMinutes:    15,
			ValidateModelsOnStartup: true,
		},
		Media: MediaConfig{
			Enabled: false,
			ComfyUI: ComfyUIConfig{
				Host:            "http://127.0.0.1:8188",
				Python:          "python3",
				QueueSize:       1,
				TimeoutSeconds:  600,
				OutputDirectory: "GeneratedMedia",
			},
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     "",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// ValidateBackend checks backend configuration for errors. URL resolution is
// deferred to runtime because it depends on the environment.
func ValidateBackend(b BackendConfig) error {
	switch b.Type {
	case BackendLMS, BackendOllama:
		return nil
	case BackendManual:
		if b.ManualURL == "" {
			return fmt.Errorf("backend.manual_url is required when backend.type is %q", BackendManual)
		}
		return nil
	default:
		return fmt.Errorf("backend.type must be %q, %q, or %q, got %q",
			BackendLMS, BackendOllama, BackendManual, b.Type)
	}
}

// ValidateAgents checks agent configurations for errors.
// Returns nil for an empty list (embedded personas are used).
func ValidateAgents(agents []AgentConfig, models ModelsConfig) error {
	for i, a := range agents {
		if a.Name == "" {
			return fmt.Errorf("agents[%d]: name is required", i)
		}
		switch a.ConfigAssignment {
		case "", "local1", "local2", "local3":
		default:
			return fmt.Errorf("agents[%d] (%s): config_assignment must be local1, local2, or local3, got %q",
				i, a.Name, a.ConfigAssignment)
		}
		if models.ByAssignment(a.ConfigAssignment) == "" {
			return fmt.Errorf("agents[%d] (%s): no model configured for assignment %q",
				i, a.Name, a.ConfigAssignment)
		}
	}
	return nil
}

// ValidateProcessing checks processing bounds.
func ValidateProcessing(p ProcessingConfig) error {
	if p.MaxRounds < 0 {
		return fmt.Errorf("processing.max_rounds must not be negative, got %d", p.MaxRounds)
	}
	if p.MaxProcessingMinutes < 0 {
		return fmt.Errorf("processing.max_processing_time_minutes must not be negative, got %d", p.MaxProcessingMinutes)
	}
	return nil
}

// ValidateMedia checks media configuration for errors. Most fields only
// matter when the media pass is enabled.
func ValidateMedia(m MediaConfig) error {
	if !m.Enabled {
		return nil
	}
	if m.ComfyUI.OutputDirectory == "" {
		return fmt.Errorf("media.comfyui.output_directory is required when media is enabled")
	}
	if m.ComfyUI.TimeoutSeconds <= 0 {
		return fmt.Errorf("media.comfyui.timeout_seconds must be positive, got %d", m.ComfyUI.TimeoutSeconds)
	}
	if m.ComfyUI.QueueSize <= 0 {
		return fmt.Errorf("media.comfyui.queue_size must be positive, got %d", m.ComfyUI.QueueSize)
	}
	for promptType, pipelineType := range m.PromptTypeMap {
		if pipelineType != "image" && pipelineType != "audio" {
			return fmt.Errorf("media.prompt_type_map[%s]: pipeline type must be \"image\" or \"audio\", got %q",
				promptType, pipelineType)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}
	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// Validate checks the whole configuration for errors.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := ValidateBackend(c.Backend); err != nil {
		return err
	}
	if err := ValidateAgents(c.Agents, c.Models); err != nil {
		return err
	}
	if err := ValidateProcessing(c.Processing); err != nil {
		return err
	}
	if err := ValidateMedia(c.Media); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return nil
}
