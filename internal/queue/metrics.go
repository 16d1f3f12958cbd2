package queue

import (
	"fmt"
	"time"
)

// TickMetrics summarizes one queue drain for logging and for cron wrappers
// that scrape the final summary line.
type TickMetrics struct {
	// Text prompts routed through a generation session.
	TextProcessed int `json:"text_processed"`
	TextFailed    int `json:"text_failed"`

	// Media prompts handed to a synthesis pipeline.
	MediaProcessed int `json:"media_processed"`
	MediaFailed    int `json:"media_failed"`

	// Media prompts left pending because the render host was down.
	MediaDeferred int `json:"media_deferred"`

	Duration time.Duration `json:"duration"`
}

// Total returns the number of prompts that reached a terminal status this tick.
func (m TickMetrics) Total() int {
	return m.TextProcessed + m.MediaProcessed
}

// Failed returns how many of those ended in a failed status.
func (m TickMetrics) Failed() int {
	return m.TextFailed + m.MediaFailed
}

// Fields returns the metrics as structured logging pairs.
func (m TickMetrics) Fields() []any {
	return []any{
		"text", m.TextProcessed,
		"text_failed", m.TextFailed,
		"media", m.MediaProcessed,
		"media_failed", m.MediaFailed,
		"media_deferred", m.MediaDeferred,
		"duration", m.Duration.Round(time.Millisecond).String(),
	}
}

// Summary returns a one-line human-readable account of the tick,
// e.g. "3 text (1 failed), 2 media (0 failed, 1 deferred) in 42s".
func (m TickMetrics) Summary() string {
	return fmt.Sprintf("%d text (%d failed), %d media (%d failed, %d deferred) in %s",
		m.TextProcessed, m.TextFailed,
		m.MediaProcessed, m.MediaFailed, m.MediaDeferred,
		m.Duration.Round(time.Millisecond))
}
