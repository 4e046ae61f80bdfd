// Package docker implements the sandbox.Executor interface on the Docker
// API, for deployments that want container isolation instead of plain
// process isolation. Containers come from a pre-warmed pool, run with no
// network and a read-only root filesystem, and are removed after a single
// execution.
package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/execbox/internal/language"
	"github.com/sakif/execbox/internal/sandbox"
)

// workDir is the writable tmpfs inside each sandbox container.
const workDir = "/box"

// Executor implements sandbox.Executor using Docker.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

var _ sandbox.Executor = (*Executor)(nil)

// New creates a docker Executor, verifies the image is available and starts
// the container pool.
func New(cfg Config, logger *slog.Logger) (*Executor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring sandbox image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete.
	io.Copy(io.Discard, reader)
	logger.Info("sandbox image is ready")

	exec := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
	}

	exec.pool = NewPool(cli, cfg, logger)
	exec.pool.Start()

	return exec, nil
}

// Close shuts down the executor pool and docker client.
func (e *Executor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Execute runs one snippet in a pooled container.
func (e *Executor) Execute(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	start := time.Now()

	containerID, err := e.pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	// Containers are single-use. Force removal also reaps anything the
	// snippet left running, so a timeout cannot leak processes.
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := e.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			e.logger.Error("failed to remove container", slog.String("id", containerID), slog.String("error", err.Error()))
		}
	}()

	sourcePath := path.Join(workDir, req.Profile.SourceFile)
	binPath := path.Join(workDir, "app")

	if err := e.copySource(ctx, containerID, req.Profile.SourceFile, req.Source); err != nil {
		return nil, fmt.Errorf("copying source into container: %w", err)
	}

	if len(req.Profile.CompileCommand) > 0 {
		argv := language.Expand(req.Profile.CompileCommand, workDir, sourcePath, binPath)
		ph, err := e.execPhase(ctx, containerID, argv, "", e.config.CompileTimeout)
		if err != nil {
			return nil, fmt.Errorf("compile phase: %w", err)
		}
		if ph.timedOut || ph.exitCode != 0 {
			stderr := ph.stderr
			if ph.timedOut {
				stderr = fmt.Sprintf("compilation timed out after %s", e.config.CompileTimeout)
			}
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

	argv := language.Expand(req.Profile.RunCommand, workDir, sourcePath, binPath)
	ph, err := e.execPhase(ctx, containerID, argv, req.Stdin, req.Timeout)
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

// copySource delivers the snippet into the container's work dir as a
// single-file tar stream, the only write API the docker daemon offers.
func (e *Executor) copySource(ctx context.Context, containerID, name, source string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(source)),
	}); err != nil {
		return err
	}
	if _, err := tw.Write([]byte(source)); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	return e.cli.CopyToContainer(ctx, containerID, workDir, &buf, container.CopyToContainerOptions{})
}

// phase is the raw outcome of a single in-container command.
type phase struct {
	stdout    string
	stderr    string
	exitCode  int
	timedOut  bool
	truncated bool
}

func (e *Executor) execPhase(ctx context.Context, containerID string, argv []string, stdin string, timeout time.Duration) (*phase, error) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(pctx, containerID, container.ExecOptions{
		AttachStdin:  stdin != "",
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   workDir,
		Cmd:          argv,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(pctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	if stdin != "" {
		go func() {
			if _, err := attachResp.Conn.Write([]byte(stdin)); err == nil {
				attachResp.CloseWrite()
			}
		}()
	}

	stdout := sandbox.NewLimitBuffer(e.config.MaxOutputBytes)
	stderr := sandbox.NewLimitBuffer(e.config.MaxOutputBytes)

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the interleaved stdout/stderr stream.
		_, _ = stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
		close(done)
	}()

	ph := &phase{}

	select {
	case <-done:
		inspectResp, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect exec: %w", err)
		}
		ph.exitCode = inspectResp.ExitCode
	case <-pctx.Done():
		// The deferred container removal kills the whole process tree.
		ph.timedOut = true
		ph.exitCode = -1
	}

	ph.stdout = stdout.String()
	ph.stderr = stderr.String()
	ph.truncated = stdout.Truncated() || stderr.Truncated()
	return ph, nil
}
