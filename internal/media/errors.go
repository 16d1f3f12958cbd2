// Package media executes pre-exported ComfyUI SaveAsScript workflows as
// subprocesses and collects the files they produce. A pipeline owns one
// workflow script and one artifact type (image or audio); each run gets its
// own directory under the media output root.
package media

import (
	"errors"
	"fmt"
)

// ErrTimeout marks a workflow that exceeded its wall-clock budget and was
// killed. The wrapping error names the budget and script.
var ErrTimeout = errors.New("workflow timed out")

// ErrNoArtifacts marks a run that exited cleanly but wrote nothing new into
// its run directory. The wrapping error names the prompt and script.
var ErrNoArtifacts = errors.New("no artifacts were produced")

// TailLimit is the maximum number of bytes of stdout/stderr kept on errors
// and persisted alongside run summaries.
const TailLimit = 2048

// Tail returns the last TailLimit bytes of s.
func Tail(s string) string {
	if len(s) <= TailLimit {
		return s
	}
	return s[len(s)-TailLimit:]
}

// PipelineError reports a workflow subprocess that exited non-zero. It
// carries the tail of the captured output so callers can persist it without
// re-running the workflow.
type PipelineError struct {
	Script     string
	ReturnCode int
	StdoutTail string
	StderrTail string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("workflow %s failed with code %d", e.Script, e.ReturnCode)
}
