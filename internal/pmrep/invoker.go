// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pmrep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// ErrToolUnavailable reports that pmrep could not be found or started. It is
// an infrastructure failure, distinct from a nonzero exit code.
var ErrToolUnavailable = errors.New("pmrep could not be started")

// Result is the outcome of one pmrep process.
type Result struct {
	ExitCode int
	Output   string
}

// Success reports whether pmrep exited with code 0.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// executor abstracts process execution for testing.
type executor interface {
	// CombinedOutput runs path with args and extra environment entries,
	// returning stdout and stderr interleaved.
	CombinedOutput(ctx context.Context, path string, args []string, env []string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) CombinedOutput(ctx context.Context, path string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd.CombinedOutput()
}

// Invoker runs pmrep commands from a fixed commands directory.
type Invoker struct {
	commandsDir string
	exec        executor
}

// NewInvoker returns an Invoker that resolves pmrep inside commandsDir.
func NewInvoker(commandsDir string) *Invoker {
	return &Invoker{commandsDir: commandsDir, exec: &osExecutor{}}
}

// Path returns the resolved pmrep executable path.
func (i *Invoker) Path() string {
	return filepath.Join(i.commandsDir, Binary)
}

// Run executes c and waits for it to finish. A nonzero exit code is returned
// in the Result with a nil error; an error is returned only when the process
// could not be run at all.
func (i *Invoker) Run(ctx context.Context, c Command) (Result, error) {
	out, err := i.exec.CombinedOutput(ctx, i.Path(), c.Argv(), environ(c.Env))
	if err == nil {
		return Result{ExitCode: 0, Output: string(out)}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode(), Output: string(out)}, nil
	}
	return Result{ExitCode: -1, Output: string(out)}, fmt.Errorf("%w: %s %s: %v", ErrToolUnavailable, i.Path(), c.Op, err)
}

// environ renders env as KEY=VALUE entries in a stable order.
func environ(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
