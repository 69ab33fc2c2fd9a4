// Package runner executes external commands and captures their output.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// defaultWaitDelay bounds how long Wait blocks on output pipes after the
// process was killed by context cancellation.
const defaultWaitDelay = 5 * time.Second

// Result captures one external command invocation. Exited is set when the
// process started and ended on its own, including death by a signal that did
// not come from the context.
type Result struct {
	Command  string        `json:"command"`
	Args     []string      `json:"args"`
	ExitCode int           `json:"exitCode"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
	Exited   bool          `json:"exited"`
}

// String renders the command line for logs.
func (r Result) String() string {
	return strings.Join(append([]string{r.Command}, r.Args...), " ")
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec executes commands via os/exec.
type Exec struct {
	WaitDelay time.Duration
}

// NewExec returns a Runner backed by os/exec.
func NewExec() *Exec {
	return &Exec{WaitDelay: defaultWaitDelay}
}

// Run executes one command and captures stdout/stderr and exit code.
// ExitCode is -1 when the process never started or was killed by a signal.
func (r *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // running external tools is the purpose of this package
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Command:  name,
		Args:     args,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			result.Exited = true
		}
		return result, err
	}

	return result, nil
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, name string, args ...string) (Result, error)

// Run calls f.
func (f Func) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return f(ctx, name, args...)
}
