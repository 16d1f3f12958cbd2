package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmcsvoices/creative-ai-agents/internal/backend"
	"github.com/dmcsvoices/creative-ai-agents/internal/config"
	"github.com/dmcsvoices/creative-ai-agents/internal/health"
	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/media"
	"github.com/dmcsvoices/creative-ai-agents/internal/paths"
)

// runTest checks the deployment the way a queue tick would use it:
// environment variables, endpoint resolution, model availability, the
// shared database, and media pipelines. Media findings are reported but
// never fail the test, because ticks skip media work instead of dying on it.
func runTest(ctx context.Context, out io.Writer, cfg config.Config, configPath string) error {
	log.Info(log.CatConfig, "Testing configuration",
		"service", cfg.ServiceInfo.Name, "version", cfg.ServiceInfo.Version)

	report := health.Report{Title: "Configuration test"}

	if err := health.Environment(cfg.Environment.RequiredVars); err != nil {
		report.AddError("environment", err)
	} else {
		report.Add("environment", true, fmt.Sprintf("%d required variables set", len(cfg.Environment.RequiredVars)))
	}

	baseURL, err := cfg.Backend.ResolveURL()
	if err != nil {
		report.AddError("backend", err)
	} else {
		report.Add("backend", true, fmt.Sprintf("%s via %s", cfg.Backend.Type, baseURL))
		if cfg.Processing.ValidateModelsOnStartup {
			client := backend.New(baseURL, config.APIKey())
			if err := health.NewChecker(client, baseURL, "").Models(ctx, cfg.Models.All()); err != nil {
				report.AddError("models", err)
			} else {
				report.Add("models", true, fmt.Sprintf("%d models available", len(cfg.Models.All())))
			}
		}
	}

	// The database belongs to the reader service too, so a missing file is
	// a deployment error, not something to create silently.
	dbPath := paths.ExpandHome(cfg.Database.Path)
	if _, err := os.Stat(dbPath); err != nil {
		report.Add("database", false, fmt.Sprintf("not found at %s", dbPath))
	} else {
		report.Add("database", true, dbPath)
	}

	if cfg.Media.Enabled {
		reportMedia(ctx, &report, cfg, configPath)
	}

	fmt.Fprintln(out, report.Render())

	if !report.Passed() {
		return fmt.Errorf("configuration test failed")
	}
	log.Info(log.CatConfig, "Configuration test passed")
	return nil
}

func reportMedia(ctx context.Context, report *health.Report, cfg config.Config, configPath string) {
	pipelines, _, err := media.BuildPipelines(filepath.Dir(configPath), cfg.Media, nil)
	switch {
	case err != nil:
		report.AddError("media", err)
	case len(pipelines) == 0:
		report.Add("media", true, "no pipelines available; media prompts will be skipped")
	case health.NewChecker(nil, "", cfg.Media.ComfyUI.Host).Media(ctx):
		report.Add("media", true, fmt.Sprintf("%d pipelines, ComfyUI reachable at %s", len(pipelines), cfg.Media.ComfyUI.Host))
	default:
		report.Add("media", true, fmt.Sprintf("ComfyUI unreachable at %s; media prompts will be deferred", cfg.Media.ComfyUI.Host))
	}
}
