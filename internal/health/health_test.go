package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	models []string
	err    error
	calls  atomic.Int32
}

func (f *fakeLister) ListModels(ctx context.Context) ([]string, error) {
	f.calls.Add(1)
	return f.models, f.err
}

func TestModels_AllPresent(t *testing.T) {
	lister := &fakeLister{models: []string{"qwen2.5:latest", "llama3.1:8b", "mistral:7b"}}
	c := NewChecker(lister, "http://llm/v1", "")

	err := c.Models(context.Background(), []string{"qwen2.5", "llama3.1", "mistral"})
	require.NoError(t, err)
}

func TestModels_Missing(t *testing.T) {
	lister := &fakeLister{models: []string{"qwen2.5:latest"}}
	c := NewChecker(lister, "http://llm/v1", "")

	err := c.Models(context.Background(), []string{"qwen2.5", "deepseek-r1"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrModelUnavailable)
	require.Contains(t, err.Error(), "deepseek-r1")
}

func TestModels_ListError(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	c := NewChecker(lister, "http://llm/v1", "")

	err := c.Models(context.Background(), []string{"qwen2.5"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrModelUnavailable)
}

func TestModels_InventoryIsCached(t *testing.T) {
	lister := &fakeLister{models: []string{"qwen2.5:latest"}}
	c := NewChecker(lister, "http://llm/v1", "")

	require.NoError(t, c.Models(context.Background(), []string{"qwen2.5"}))
	require.NoError(t, c.Models(context.Background(), []string{"qwen2.5"}))
	require.EqualValues(t, 1, lister.calls.Load(), "second validation should reuse the cached inventory")
}

func TestMedia_Healthy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/system_stats", r.URL.Path)
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChecker(&fakeLister{}, "http://llm/v1", srv.URL)
	require.True(t, c.Media(context.Background()))
	require.True(t, c.Media(context.Background()))
	require.EqualValues(t, 1, hits.Load(), "positive probes are cached")
}

func TestMedia_UnhealthyIsRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChecker(&fakeLister{}, "http://llm/v1", srv.URL)
	require.False(t, c.Media(context.Background()))
	require.True(t, c.Media(context.Background()), "failures are not cached, the host can recover mid-tick")
	require.EqualValues(t, 2, hits.Load())
}

func TestMedia_NoHostConfigured(t *testing.T) {
	c := NewChecker(&fakeLister{}, "http://llm/v1", "")
	require.False(t, c.Media(context.Background()))
}

func TestMedia_ConnectionRefused(t *testing.T) {
	// Reserve a port and close it so the address refuses connections.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	host := srv.URL
	srv.Close()

	c := NewChecker(&fakeLister{}, "http://llm/v1", host)
	require.False(t, c.Media(context.Background()))
}

func TestEnvironment_AllSet(t *testing.T) {
	t.Setenv("NGROKURL", "https://abc123.ngrok.io")
	t.Setenv("TVLY_API_KEY", "tvly-test")

	require.NoError(t, Environment([]string{"NGROKURL"}))
}

func TestEnvironment_Missing(t *testing.T) {
	t.Setenv("NGROKURL", "")
	t.Setenv("TVLY_API_KEY", "tvly-test")

	err := Environment([]string{"NGROKURL"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing required environment variables")
	require.Contains(t, err.Error(), "NGROKURL")
}

func TestEnvironment_ResearchKeyAlwaysChecked(t *testing.T) {
	t.Setenv("NGROKURL", "https://abc123.ngrok.io")
	t.Setenv("TVLY_API_KEY", "")

	err := Environment([]string{"NGROKURL"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "TVLY_API_KEY")

	// Listing the key explicitly must not double-report it.
	err = Environment([]string{"NGROKURL", "TVLY_API_KEY"})
	require.Error(t, err)
	require.Equal(t, "missing required environment variables: TVLY_API_KEY", err.Error())
}

func TestReport_PassedAndRender(t *testing.T) {
	var r Report
	r.Title = "poets configuration test"
	r.Add("configuration", true, "")
	r.AddError("backend", nil)
	require.True(t, r.Passed())

	out := r.Render()
	require.Contains(t, out, "configuration")
	require.Contains(t, out, "backend")
	require.Contains(t, out, "passed")
}

func TestReport_Failure(t *testing.T) {
	var r Report
	r.Add("database", true, "")
	r.AddError("models", errors.New("deepseek-r1 missing"))
	require.False(t, r.Passed())

	out := r.Render()
	require.Contains(t, out, "deepseek-r1 missing")
	require.Contains(t, out, "failed")
}
