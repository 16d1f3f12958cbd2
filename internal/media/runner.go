package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
)

// killGrace is how long a timed-out workflow gets to exit after SIGTERM
// before it is killed outright.
const killGrace = 5 * time.Second

// CommandFactoryFunc creates an exec.Cmd for testing purposes. It receives
// the context, interpreter path, and arguments (script first).
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Result carries the captured output of a completed workflow.
type Result struct {
	ReturnCode int
	Stdout     string
	Stderr     string
	Duration   time.Duration
}

// RunBuilder provides a fluent API for one workflow invocation. The zero
// builder runs `python3 <script>` with no extra arguments and no timeout;
// the working directory is always the script's parent.
type RunBuilder struct {
	python  string
	script  string
	args    []string
	timeout time.Duration
	env     map[string]string
	factory CommandFactoryFunc
}

// NewRunBuilder creates a RunBuilder with the default interpreter.
func NewRunBuilder() *RunBuilder {
	return &RunBuilder{python: "python3"}
}

// WithPython sets the interpreter the script runs under. Empty keeps the
// default.
func (b *RunBuilder) WithPython(python string) *RunBuilder {
	if python != "" {
		b.python = python
	}
	return b
}

// WithScript sets the workflow script path. Required.
func (b *RunBuilder) WithScript(script string) *RunBuilder {
	b.script = script
	return b
}

// WithArgs sets the script arguments.
func (b *RunBuilder) WithArgs(args []string) *RunBuilder {
	b.args = args
	return b
}

// WithTimeout sets the wall-clock budget. Zero or negative means unbounded.
func (b *RunBuilder) WithTimeout(d time.Duration) *RunBuilder {
	b.timeout = d
	return b
}

// WithEnv overlays variables on the parent environment.
func (b *RunBuilder) WithEnv(env map[string]string) *RunBuilder {
	b.env = env
	return b
}

// WithCommandFactory substitutes command construction, letting tests mock
// the subprocess. A nil factory runs real commands.
func (b *RunBuilder) WithCommandFactory(fn CommandFactoryFunc) *RunBuilder {
	b.factory = fn
	return b
}

// Run executes the script and waits for it to finish. A missing script is
// an error before anything is spawned. On timeout the child receives
// SIGTERM, then SIGKILL after a grace window, and the returned error wraps
// ErrTimeout. A non-zero exit becomes a *PipelineError carrying output
// tails.
func (b *RunBuilder) Run(ctx context.Context) (Result, error) {
	if b.script == "" {
		return Result{}, fmt.Errorf("run builder: workflow script is required")
	}
	if _, err := os.Stat(b.script); err != nil {
		return Result{}, fmt.Errorf("workflow script not found: %s", b.script)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	args := append([]string{b.script}, b.args...)
	log.Debug(log.CatMedia, "Executing workflow",
		"python", b.python, "args", strings.Join(args, " "))

	factory := b.factory
	if factory == nil {
		factory = func(ctx context.Context, name string, args ...string) *exec.Cmd {
			// #nosec G204 -- interpreter and script come from operator configuration
			return exec.CommandContext(ctx, name, args...)
		}
	}
	cmd := factory(ctx, b.python, args...)
	cmd.Dir = filepath.Dir(b.script)
	cmd.Env = overlayEnv(b.env)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	if ctx.Err() == context.DeadlineExceeded {
		log.Error(log.CatMedia, "Workflow timed out",
			"script", filepath.Base(b.script), "timeout", b.timeout)
		return result, fmt.Errorf("%w after %ds: %s", ErrTimeout, int(b.timeout.Seconds()), b.script)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ReturnCode = exitErr.ExitCode()
		perr := &PipelineError{
			Script:     filepath.Base(b.script),
			ReturnCode: result.ReturnCode,
			StdoutTail: Tail(result.Stdout),
			StderrTail: Tail(result.Stderr),
		}
		log.Error(log.CatMedia, "Workflow failed",
			"script", perr.Script, "code", perr.ReturnCode,
			"stdout", perr.StdoutTail, "stderr", perr.StderrTail)
		return result, perr
	default:
		return result, fmt.Errorf("failed to run workflow %s: %w", b.script, err)
	}

	return result, nil
}

// overlayEnv returns the parent environment with overrides appended; later
// entries win on duplicate names.
func overlayEnv(overrides map[string]string) []string {
	env := os.Environ()
	for k, v := range overrides {
		env = append(env, k+"="+v)
	}
	return env
}
