package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmcsvoices/creative-ai-agents/internal/agent"
	"github.com/dmcsvoices/creative-ai-agents/internal/config"
	"github.com/dmcsvoices/creative-ai-agents/internal/paths"
	"github.com/dmcsvoices/creative-ai-agents/internal/pubsub"
	"github.com/dmcsvoices/creative-ai-agents/internal/store"
	"github.com/dmcsvoices/creative-ai-agents/internal/store/sqlite"
	"github.com/dmcsvoices/creative-ai-agents/internal/testutil"
)

// execRoot runs the root command with args and returns its combined output.
// Bool flags stick between executions on a shared command, so they are reset
// afterwards.
func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	for _, name := range []string{"test", "queue", "init-config"} {
		require.NoError(t, rootCmd.Flags().Set(name, "false"))
	}
	return buf.String(), err
}

// writeConfig writes a minimal valid configuration into dir and returns its
// path. The manual backend URL points at the discard port so nothing in these
// tests can accidentally reach a live service.
func writeConfig(t *testing.T, dir string, overrides map[string]any) string {
	t.Helper()
	doc := map[string]any{
		"service_info": map[string]any{"name": "poets-test", "version": "3.0"},
		"logging":      map[string]any{"file": filepath.Join(dir, "poets.log"), "level": "debug"},
		"database":     map[string]any{"path": filepath.Join(dir, "poets.db")},
		"backend":      map[string]any{"type": "manual", "manual_url": "http://127.0.0.1:9"},
		"processing": map[string]any{
			"output_directory":           filepath.Join(dir, "generated"),
			"validate_models_on_startup": false,
		},
	}
	for key, value := range overrides {
		doc[key] = value
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(dir, "poets_cron_config.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestRoot_MissingConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nowhere.json")

	_, err := execRoot(t, path)

	require.Error(t, err)
	require.Contains(t, err.Error(), "configuration file not found")
	require.Contains(t, err.Error(), path)
}

func TestRoot_InitConfigWritesLoadableExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poets_cron_config.json")

	out, err := execRoot(t, "--init-config", path)
	require.NoError(t, err)
	require.Contains(t, out, "Example configuration written to "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.NotEmpty(t, cfg.Agents)
	require.Equal(t, config.BackendLMS, cfg.Backend.Type)

	// A second run must refuse to clobber the edited file.
	_, err = execRoot(t, "--init-config", path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestRoot_TestModePasses(t *testing.T) {
	t.Setenv("TVLY_API_KEY", "tvly-test-key")
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poets.db"), nil, 0o644))

	out, err := execRoot(t, "--test", cfgPath)

	require.NoError(t, err)
	require.Contains(t, out, "✓ environment")
	require.Contains(t, out, "✓ backend")
	require.Contains(t, out, "✓ database")
	require.Contains(t, out, "Configuration test passed")
	// Model validation was disabled, so no models line should appear.
	require.NotContains(t, out, "models")
}

func TestRoot_TestModeFailsWhenDatabaseMissing(t *testing.T) {
	t.Setenv("TVLY_API_KEY", "tvly-test-key")
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, nil)

	out, err := execRoot(t, "--test", cfgPath)

	require.Error(t, err)
	require.Contains(t, err.Error(), "configuration test failed")
	require.Contains(t, out, "✗ database")
	require.Contains(t, out, "not found at")
}

func TestRoot_TestModeReportsMissingResearchKey(t *testing.T) {
	t.Setenv("TVLY_API_KEY", "")
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poets.db"), nil, 0o644))

	out, err := execRoot(t, "--test", cfgPath)

	require.Error(t, err)
	require.Contains(t, out, "✗ environment")
	require.Contains(t, out, "TVLY_API_KEY")
}

func TestRoot_TestModeMediaProblemsAreWarnings(t *testing.T) {
	t.Setenv("TVLY_API_KEY", "tvly-test-key")
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, map[string]any{
		"media": map[string]any{"enabled": true},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poets.db"), nil, 0o644))

	out, err := execRoot(t, "--test", cfgPath)

	// No scripts are configured, so no pipelines can be built. That is a
	// warning, not a failure, because ticks skip media work they cannot do.
	require.NoError(t, err)
	require.Contains(t, out, "no pipelines available")
	require.Contains(t, out, "Configuration test passed")
}

func TestRoot_QueueModeEmptyQueueExitsClean(t *testing.T) {
	// An empty queue must exit before any environment or backend
	// validation, so even the always-required research key may be absent.
	t.Setenv("TVLY_API_KEY", "")
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, nil)

	out, err := execRoot(t, "--queue", cfgPath)

	require.NoError(t, err)
	require.Empty(t, out)

	// The tick released its lock and left the database behind.
	_, statErr := os.Stat(paths.LockPath(cfgPath))
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "poets.db"))
	require.NoError(t, statErr)
}

func TestRoot_QueueModeProcessesTextPrompt(t *testing.T) {
	t.Setenv("TVLY_API_KEY", "tvly-test-key")

	// A compliant chat endpoint whose only speaker immediately ends the
	// session, so the tick completes the prompt in one round.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cmpl-1", "object": "chat.completion",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Two lines about harbors.\n\nTERMINATE"}}]
		}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, map[string]any{
		"backend": map[string]any{"type": "manual", "manual_url": server.URL},
		"models":  map[string]any{"local1": "test-model", "local2": "test-model", "local3": "test-model"},
	})

	db, err := sqlite.NewDB(filepath.Join(dir, "poets.db"))
	require.NoError(t, err)
	builder := testutil.NewBuilder(t, db).
		WithPrompt("queued", "Write one clean couplet about harbors")
	builder.Build()
	promptID := builder.PromptID("queued")
	require.NoError(t, db.Close())

	out, err := execRoot(t, "--queue", cfgPath)

	require.NoError(t, err)
	require.Contains(t, out, "1 text (0 failed)")

	db, err = sqlite.NewDB(filepath.Join(dir, "poets.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	prompt, err := db.Prompts().Get(promptID)
	require.NoError(t, err)
	require.Equal(t, store.StatusCompleted, prompt.Status)
	require.NotNil(t, prompt.ProcessedAt)
	require.NotNil(t, prompt.CompletedAt)
}

func TestLazyBackend_ConnectRequiresTunnelVariable(t *testing.T) {
	t.Setenv("NGROKURL", "")
	lazy := &lazyBackend{cfg: config.Config{
		Backend: config.BackendConfig{Type: config.BackendLMS},
	}}

	_, _, err := lazy.Connect(context.Background())

	require.Error(t, err)
	require.Contains(t, err.Error(), "NGROKURL")
}

func TestMirrorTurns_PrintsTranscriptOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := pubsub.NewBroker[agent.Turn]()
	turns := broker.Subscribe(ctx)

	broker.Publish(pubsub.TurnEvent, agent.Turn{Agent: "user", Content: "Write a poem about rust"})
	broker.Publish(pubsub.ToolCallEvent, agent.Turn{Agent: "poet", Content: `{"tool": "save_writing"}`, Tool: "save_writing"})
	broker.Publish(pubsub.ToolResultEvent, agent.Turn{Agent: "poet", Content: "Saved writing 12", Tool: "save_writing"})
	broker.Publish(pubsub.TerminatedEvent, agent.Turn{Agent: "editor", Content: "Archived. TERMINATE"})
	broker.Close()

	var buf bytes.Buffer
	mirrorTurns(&buf, turns)
	out := buf.String()

	require.Contains(t, out, "user")
	require.Contains(t, out, "Write a poem about rust")
	require.Contains(t, out, "poet")
	require.Contains(t, out, "[save_writing]")
	require.Contains(t, out, "Saved writing 12")
	// The terminated event re-carries the final turn; printing it again
	// would duplicate transcript lines.
	require.NotContains(t, out, "TERMINATE")
}
