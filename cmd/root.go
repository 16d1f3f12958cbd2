// Package cmd implements the poets command line interface: one binary,
// three modes. The default mode runs a single built-in test generation,
// --queue drains the shared prompt queue (the cron entry point), and
// --test validates the deployment without generating anything.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmcsvoices/creative-ai-agents/internal/config"
	"github.com/dmcsvoices/creative-ai-agents/internal/log"
	"github.com/dmcsvoices/creative-ai-agents/internal/paths"
	"github.com/dmcsvoices/creative-ai-agents/internal/tracing"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "poets [CONFIG]",
	Short: "Multi-agent creative generation service",
	Long: `Runs collaborative LLM agent sessions that draft, critique, and archive
creative writing, and hands finished structured prompts to media synthesis
pipelines. CONFIG is a path to the JSON configuration file; it defaults to
poets_cron_config.json in the current directory.`,
	Version:      version,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().Bool("test", false, "validate configuration and connectivity, then exit")
	rootCmd.Flags().Bool("queue", false, "process pending prompts from the queue (cron mode)")
	rootCmd.Flags().Bool("init-config", false, "write an example configuration file and exit")
}

func run(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	configPath := paths.ResolveConfig(arg)

	// --init-config must run before the existence check: its whole point
	// is to create the file that check would reject.
	if flagBool(cmd, "init-config") {
		if err := config.WriteExampleConfig(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Example configuration written to %s\n", configPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Edit it, then verify with: poets --test")
		return nil
	}

	if _, err := os.Stat(configPath); err != nil {
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := log.Init(paths.ExpandHome(cfg.Logging.File), log.ParseLevel(cfg.Logging.Level))
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer cleanup()

	provider, err := tracing.NewProvider(tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		ServiceName:  cfg.ServiceInfo.Name,
	})
	if err != nil {
		return fmt.Errorf("configuring tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}()

	ctx := cmd.Context()
	switch {
	case flagBool(cmd, "test"):
		return runTest(ctx, cmd.OutOrStdout(), cfg, configPath)
	case flagBool(cmd, "queue"):
		return runQueue(ctx, cmd.OutOrStdout(), cfg, configPath, provider.Tracer())
	default:
		return runService(ctx, cmd.OutOrStdout(), cfg, provider.Tracer())
	}
}

func flagBool(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
