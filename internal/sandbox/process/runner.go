// Package process implements the sandbox.Executor interface with direct
// subprocess execution: the snippet is written to a per-execution temp
// directory, optionally compiled, then run with stdin piped in, output capture
// bounded, a wall-clock timeout enforced by killing the whole process group,
// and best-effort CPU/memory rlimits applied at spawn time.
//
// Process isolation is explicitly best-effort, not a hard security boundary.
// Deployments that need stronger containment should use the docker backend or
// wrap the service in OS-level isolation.
package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sakif/execbox/internal/language"
	"github.com/sakif/execbox/internal/sandbox"
)

// Runner executes snippets as local subprocesses.
type Runner struct {
	config Config
	logger *slog.Logger
}

var _ sandbox.Executor = (*Runner)(nil)

// New creates a process Runner. Runner is stateless apart from its config and
// safe for concurrent use; each execution gets its own temp directory, so the
// only namespace executions share is the OS temp dir.
func New(cfg Config, logger *slog.Logger) *Runner {
	return &Runner{
		config: cfg,
		logger: logger,
	}
}

// Execute runs one snippet. The returned error is reserved for host problems
// (temp dir creation, missing toolchain binaries); everything the snippet
// itself does wrong comes back inside the Result.
func (r *Runner) Execute(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	start := time.Now()

	// Uniquely named directory per execution; removed on every exit path.
	dir, err := os.MkdirTemp("", "execbox-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			r.logger.Warn("failed to clean up execution dir",
				slog.String("dir", dir),
				slog.String("error", rmErr.Error()),
			)
		}
	}()

	sourcePath := filepath.Join(dir, req.Profile.SourceFile)
	if err := os.WriteFile(sourcePath, []byte(req.Source), 0644); err != nil {
		return nil, fmt.Errorf("writing source file: %w", err)
	}
	binPath := filepath.Join(dir, "app")

	if len(req.Profile.CompileCommand) > 0 {
		argv := language.Expand(req.Profile.CompileCommand, dir, sourcePath, binPath)
		ph, err := r.runPhase(ctx, dir, argv, "", r.config.CompileTimeout)
		if err != nil {
			return nil, fmt.Errorf("compile phase: %w", err)
		}
		if ph.timedOut || ph.exitCode != 0 {
			stderr := ph.stderr
			if ph.timedOut {
				stderr = fmt.Sprintf("compilation timed out after %s", r.config.CompileTimeout)
			}
			// Compiler output goes to the caller; the run phase never starts.
			return &sandbox.Result{
				Kind:       sandbox.KindCompileError,
				Stdout:     ph.stdout,
				Stderr:     stderr,
				ExitCode:   ph.exitCode,
				DurationMs: time.Since(start).Milliseconds(),
				Truncated:  ph.truncated,
			}, nil
		}
	}

	argv := language.Expand(req.Profile.RunCommand, dir, sourcePath, binPath)
	ph, err := r.runPhase(ctx, dir, argv, req.Stdin, req.Timeout)
	if err != nil {
		return nil, fmt.Errorf("run phase: %w", err)
	}

	res := &sandbox.Result{
		Kind:       sandbox.KindOK,
		Stdout:     ph.stdout,
		Stderr:     ph.stderr,
		ExitCode:   ph.exitCode,
		DurationMs: time.Since(start).Milliseconds(),
		Truncated:  ph.truncated,
	}
	switch {
	case ph.timedOut:
		res.Kind = sandbox.KindTimeout
		res.ExitCode = -1
	case ph.exitCode != 0:
		res.Kind = sandbox.KindRuntimeError
	}
	return res, nil
}

// phase is the raw outcome of a single subprocess (compile or run).
type phase struct {
	stdout    string
	stderr    string
	exitCode  int
	timedOut  bool
	truncated bool
}

func (r *Runner) runPhase(ctx context.Context, dir string, argv []string, stdin string, timeout time.Duration) (*phase, error) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := sandbox.NewLimitBuffer(r.config.MaxOutputBytes)
	stderr := sandbox.NewLimitBuffer(r.config.MaxOutputBytes)

	cmd := exec.CommandContext(pctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	// Run the subprocess in its own process group so a timeout kill reaches
	// any children it forked, not just the direct child.
	setProcGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessTree(cmd.Process)
	}
	// If an orphaned grandchild keeps the output pipes open after the kill,
	// give up on them rather than blocking Wait forever.
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", argv[0], err)
	}
	r.applyLimits(cmd.Process.Pid)

	waitErr := cmd.Wait()

	ph := &phase{
		stdout:    stdout.String(),
		stderr:    stderr.String(),
		truncated: stdout.Truncated() || stderr.Truncated(),
	}

	if errors.Is(pctx.Err(), context.DeadlineExceeded) {
		ph.timedOut = true
		ph.exitCode = -1
		return ph, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("waiting for %q: %w", argv[0], waitErr)
		}
		// ExitCode is -1 when the process died to a signal, e.g. the kernel
		// enforcing RLIMIT_CPU with SIGKILL.
		ph.exitCode = exitErr.ExitCode()
	}
	return ph, nil
}
