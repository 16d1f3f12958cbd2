// Package health probes the external endpoints a tick depends on: the LLM
// backend's model inventory and the ComfyUI host that renders media. Probe
// results are cached so one tick hits each endpoint at most once.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/backend"
	"github.com/dmcsvoices/creative-ai-agents/internal/cache"
	"github.com/dmcsvoices/creative-ai-agents/internal/log"
)

// ErrModelUnavailable reports configured models missing from the endpoint's
// inventory. Text processing is skipped when this fires.
var ErrModelUnavailable = errors.New("configured model not available")

// Probe budgets. The backend may be spinning a model up, the media host is
// local and answers fast or not at all.
const (
	ModelListTimeout  = 30 * time.Second
	MediaProbeTimeout = 5 * time.Second
)

// probeTTL keeps probe results fresh across one tick but not much longer.
const probeTTL = 5 * time.Minute

// Checker verifies the endpoints a tick needs.
type Checker struct {
	baseURL   string
	mediaHost string
	client    *http.Client
	models    *cache.ReadThrough[string, []string, struct{}]
	media     *cache.ReadThrough[string, bool, struct{}]
}

// NewChecker builds a checker over the given model lister. baseURL keys the
// model cache; mediaHost is the ComfyUI root, empty when media is disabled.
func NewChecker(lister backend.ModelLister, baseURL, mediaHost string) *Checker {
	c := &Checker{
		baseURL:   strings.TrimRight(baseURL, "/"),
		mediaHost: strings.TrimRight(mediaHost, "/"),
		client:    &http.Client{},
	}
	c.models = cache.NewReadThrough[string, []string, struct{}](
		cache.NewInMemory[string, []string]("model-list", cache.DefaultExpiration, cache.DefaultCleanupInterval),
		func(ctx context.Context, _ struct{}) ([]string, error) {
			ctx, cancel := context.WithTimeout(ctx, ModelListTimeout)
			defer cancel()
			return lister.ListModels(ctx)
		},
		false,
	)
	c.media = cache.NewReadThrough[string, bool, struct{}](
		cache.NewInMemory[string, bool]("media-health", cache.DefaultExpiration, cache.DefaultCleanupInterval),
		c.probeMedia,
		false,
	)
	return c
}

// AvailableModels returns the endpoint's model inventory, cached per base URL.
func (c *Checker) AvailableModels(ctx context.Context) ([]string, error) {
	return c.models.Get(ctx, c.baseURL, struct{}{}, probeTTL)
}

// Models verifies every wanted model name appears in the endpoint inventory.
// A configured name matches when it is a substring of an available id, so
// "qwen2.5" accepts "qwen2.5:latest".
func (c *Checker) Models(ctx context.Context, wanted []string) error {
	available, err := c.AvailableModels(ctx)
	if err != nil {
		return fmt.Errorf("fetching model list from %s: %w", c.baseURL, err)
	}

	var missing []string
	for _, want := range wanted {
		if !modelPresent(want, available) {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		log.Error(log.CatHealth, "Model validation failed",
			"missing", strings.Join(missing, ", "),
			"available", len(available))
		return fmt.Errorf("%w: %s", ErrModelUnavailable, strings.Join(missing, ", "))
	}

	log.Info(log.CatHealth, "Model validation passed", "models", len(wanted))
	return nil
}

func modelPresent(want string, available []string) bool {
	for _, a := range available {
		if strings.Contains(a, want) {
			return true
		}
	}
	return false
}

// Media reports whether the ComfyUI host answers its stats endpoint.
// Only positive probes are cached, so an unavailable host is retried on the
// next call and media work can resume mid-tick.
func (c *Checker) Media(ctx context.Context) bool {
	if c.mediaHost == "" {
		return false
	}
	ok, err := c.media.Get(ctx, c.mediaHost, struct{}{}, probeTTL)
	if err != nil {
		log.Warn(log.CatHealth, "Media host unavailable", "host", c.mediaHost, "error", err)
		return false
	}
	return ok
}

func (c *Checker) probeMedia(ctx context.Context, _ struct{}) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, MediaProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.mediaHost+"/system_stats", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("system_stats returned %s", resp.Status)
	}
	log.Debug(log.CatHealth, "Media host healthy", "host", c.mediaHost)
	return true, nil
}

// Environment verifies every required variable is set. TVLY_API_KEY is always
// checked because the research tool reads it at call time regardless of config.
func Environment(required []string) error {
	vars := required
	if !slices.Contains(vars, "TVLY_API_KEY") {
		vars = append(slices.Clone(vars), "TVLY_API_KEY")
	}

	var missing []string
	for _, name := range vars {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	log.Info(log.CatHealth, "Environment check passed", "vars", len(vars))
	return nil
}
