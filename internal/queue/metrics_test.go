package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTickMetrics_Accounting(t *testing.T) {
	m := TickMetrics{
		TextProcessed:  3,
		TextFailed:     1,
		MediaProcessed: 2,
		MediaFailed:    1,
		MediaDeferred:  4,
	}
	require.Equal(t, 5, m.Total())
	require.Equal(t, 2, m.Failed())
}

func TestTickMetrics_Summary(t *testing.T) {
	m := TickMetrics{
		TextProcessed:  3,
		TextFailed:     1,
		MediaProcessed: 2,
		MediaFailed:    1,
		MediaDeferred:  4,
		Duration:       1500 * time.Millisecond,
	}
	require.Equal(t, "3 text (1 failed), 2 media (1 failed, 4 deferred) in 1.5s", m.Summary())
}

func TestTickMetrics_Fields(t *testing.T) {
	m := TickMetrics{TextProcessed: 1, Duration: 2*time.Second + 345*time.Millisecond}

	fields := m.Fields()
	require.Len(t, fields, 12)
	require.Zero(t, len(fields)%2, "fields come in key/value pairs")
	require.Equal(t, "text", fields[0])
	require.Equal(t, 1, fields[1])
	require.Equal(t, "duration", fields[10])
	require.Equal(t, "2.345s", fields[11])
}
