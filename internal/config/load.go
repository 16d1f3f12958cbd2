package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/paths"
)

// Load reads the JSON configuration at path, layered over Defaults().
// A .env file next to the configuration is loaded first when present;
// it never overrides variables already set in the real environment.
// A missing or unreadable configuration file is an error.
func Load(path string) (Config, error) {
	if envPath := paths.EnvPath(path); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn(log.CatConfig, "Failed to load .env file", "path", envPath, "error", err)
		} else {
			log.Debug(log.CatConfig, "Loaded .env file", "path", envPath)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	log.Debug(log.CatConfig, "Configuration loaded",
		"path", path,
		"service", cfg.ServiceInfo.Name,
		"backend", cfg.Backend.Type,
		"media_enabled", cfg.Media.Enabled)
	return cfg, nil
}

// setDefaults registers Defaults() with viper so partial configs merge
// rather than zero out.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("service_info.name", d.ServiceInfo.Name)
	v.SetDefault("service_info.version", d.ServiceInfo.Version)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("backend.type", d.Backend.Type)
	v.SetDefault("group_chat_manager.config_assignment", d.GroupChat.ConfigAssignment)
	v.SetDefault("processing.output_directory", d.Processing.OutputDirectory)
	v.SetDefault("processing.max_rounds", d.Processing.MaxRounds)
	v.SetDefault("processing.max_processing_time_minutes", d.Processing.MaxProcessingMinutes)
	v.SetDefault("processing.validate_models_on_startup", d.Processing.ValidateModelsOnStartup)
	v.SetDefault("media.enabled", d.Media.Enabled)
	v.SetDefault("media.comfyui.host", d.Media.ComfyUI.Host)
	v.SetDefault("media.comfyui.python", d.Media.ComfyUI.Python)
	v.SetDefault("media.comfyui.queue_size", d.Media.ComfyUI.QueueSize)
	v.SetDefault("media.comfyui.timeout_seconds", d.Media.ComfyUI.TimeoutSeconds)
	v.SetDefault("media.comfyui.output_directory", d.Media.ComfyUI.OutputDirectory)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Example returns a complete, ready-to-edit configuration.
func Example() Config {
	cfg := Defaults()
	cfg.Models = ModelsConfig{
		Local1: "qwen2.5-14b-instruct",
		Local2: "llama-3.1-8b-instruct",
		Local3: "mistral-7b-instruct-v0.3",
	}
	cfg.Agents = []AgentConfig{
		{Name: "poet", ConfigAssignment: "local1"},
		{Name: "critic", ConfigAssignment: "local2"},
		{Name: "editor", ConfigAssignment: "local3"},
	}
	cfg.Environment = EnvironmentConfig{
		RequiredVars: []string{"DEEPSEEK_API_KEY"},
	}
	cfg.Media.Scripts = map[string]string{
		"image": "media/image_workflow.py",
		"audio": "media/audio_workflow.py",
	}
	cfg.Media.ScriptArgs = map[string][]string{
		"image": {},
		"audio": {},
	}
	cfg.Media.PromptTypeMap = map[string]string{
		"image":         "image",
		"music":         "audio",
		"audio":         "audio",
		"voice":         "audio",
		"image_prompt":  "image",
		"lyrics_prompt": "audio",
	}
	return cfg
}

// exampleDocument mirrors Config with json tags so the example file uses the
// same key names viper reads back.
type exampleDocument struct {
	ServiceInfo struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Description string `json:"description"`
	} `json:"service_info"`
	Logging struct {
		File  string `json:"file"`
		Level string `json:"level"`
	} `json:"logging"`
	Database struct {
		Path string `json:"path"`
	} `json:"database"`
	Backend struct {
		Type      string `json:"type"`
		ManualURL string `json:"manual_url"`
	} `json:"backend"`
	Models struct {
		Local1 string `json:"local1"`
		Local2 string `json:"local2"`
		Local3 string `json:"local3"`
	} `json:"models"`
	Agents []struct {
		Name             string `json:"name"`
		SystemMessage    string `json:"system_message,omitempty"`
		ConfigAssignment string `json:"config_assignment"`
	} `json:"agents"`
	GroupChatManager struct {
		ConfigAssignment string `json:"config_assignment"`
		MaxRound         int    `json:"max_round"`
	} `json:"group_chat_manager"`
	Processing struct {
		OutputDirectory         string `json:"output_directory"`
		MaxRounds               int    `json:"max_rounds"`
		MaxProcessingMinutes    int    `json:"max_processing_time_minutes"`
		ValidateModelsOnStartup bool   `json:"validate_models_on_startup"`
	} `json:"processing"`
	Environment struct {
		RequiredVars []string `json:"required_vars"`
	} `json:"environment"`
	Media struct {
		Enabled bool `json:"enabled"`
		ComfyUI struct {
			Host            string `json:"host"`
			Python          string `json:"python"`
			QueueSize       int    `json:"queue_size"`
			TimeoutSeconds  int    `json:"timeout_seconds"`
			ComfyUIDir      string `json:"comfyui_directory"`
			OutputDirectory string `json:"output_directory"`
		} `json:"comfyui"`
		Scripts       map[string]string   `json:"scripts"`
		ScriptArgs    map[string][]string `json:"script_args"`
		PromptTypeMap map[string]string   `json:"prompt_type_map"`
	} `json:"media"`
	Tracing struct {
		Enabled      bool    `json:"enabled"`
		Exporter     string  `json:"exporter"`
		FilePath     string  `json:"file_path,omitempty"`
		OTLPEndpoint string  `json:"otlp_endpoint"`
		SampleRate   float64 `json:"sample_rate"`
	} `json:"tracing"`
}

func toExampleDocument(cfg Config) exampleDocument {
	var doc exampleDocument
	doc.ServiceInfo.Name = cfg.ServiceInfo.Name
	doc.ServiceInfo.Version = cfg.ServiceInfo.Version
	doc.ServiceInfo.Description = cfg.ServiceInfo.Description
	doc.Logging.File = cfg.Logging.File
	doc.Logging.Level = cfg.Logging.Level
	doc.Database.Path = cfg.Database.Path
	doc.Backend.Type = cfg.Backend.Type
	doc.Backend.ManualURL = cfg.Backend.ManualURL
	doc.Models.Local1 = cfg.Models.Local1
	doc.Models.Local2 = cfg.Models.Local2
	doc.Models.Local3 = cfg.Models.Local3
	for _, a := range cfg.Agents {
		doc.Agents = append(doc.Agents, struct {
			Name             string `json:"name"`
			SystemMessage    string `json:"system_message,omitempty"`
			ConfigAssignment string `json:"config_assignment"`
		}{a.Name, a.SystemMessage, a.ConfigAssignment})
	}
	doc.GroupChatManager.ConfigAssignment = cfg.GroupChat.ConfigAssignment
	doc.GroupChatManager.MaxRound = cfg.GroupChat.MaxRound
	doc.Processing.OutputDirectory = cfg.Processing.OutputDirectory
	doc.Processing.MaxRounds = cfg.Processing.MaxRounds
	doc.Processing.MaxProcessingMinutes = cfg.Processing.MaxProcessingMinutes
	doc.Processing.ValidateModelsOnStartup = cfg.Processing.ValidateModelsOnStartup
	doc.Environment.RequiredVars = cfg.Environment.RequiredVars
	doc.Media.Enabled = cfg.Media.Enabled
	doc.Media.ComfyUI.Host = cfg.Media.ComfyUI.Host
	doc.Media.ComfyUI.Python = cfg.Media.ComfyUI.Python
	doc.Media.ComfyUI.QueueSize = cfg.Media.ComfyUI.QueueSize
	doc.Media.ComfyUI.TimeoutSeconds = cfg.Media.ComfyUI.TimeoutSeconds
	doc.Media.ComfyUI.ComfyUIDir = cfg.Media.ComfyUI.ComfyUIDir
	doc.Media.ComfyUI.OutputDirectory = cfg.Media.ComfyUI.OutputDirectory
	doc.Media.Scripts = cfg.Media.Scripts
	doc.Media.ScriptArgs = cfg.Media.ScriptArgs
	doc.Media.PromptTypeMap = cfg.Media.PromptTypeMap
	doc.Tracing.Enabled = cfg.Tracing.Enabled
	doc.Tracing.Exporter = cfg.Tracing.Exporter
	doc.Tracing.FilePath = cfg.Tracing.FilePath
	doc.Tracing.OTLPEndpoint = cfg.Tracing.OTLPEndpoint
	doc.Tracing.SampleRate = cfg.Tracing.SampleRate
	return doc
}

// WriteExampleConfig creates a configuration file at the given path with
// example settings. Creates the parent directory if it doesn't exist.
// Refuses to overwrite an existing file.
func WriteExampleConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing example config", "path", configPath)

	if fileExists(configPath) {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(toExampleDocument(Example()), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding example config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created example config", "path", configPath)
	return nil
}
