//go:build linux

package process

import (
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessTree kills the whole process group the child was started in.
// Negative pid addresses the group; see kill(2).
func killProcessTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := unix.Kill(-p.Pid, unix.SIGKILL); err != nil {
		// Group already gone or never established; fall back to the child.
		return p.Kill()
	}
	return nil
}

// applyLimits sets rlimits on an already started process via prlimit(2).
// Best-effort: a limit that cannot be set is logged and skipped, the
// execution proceeds.
func (r *Runner) applyLimits(pid int) {
	set := func(resource int, value uint64, name string) {
		rl := unix.Rlimit{Cur: value, Max: value}
		if err := unix.Prlimit(pid, resource, &rl, nil); err != nil {
			r.logger.Warn("failed to set resource limit",
				slog.String("limit", name),
				slog.Int("pid", pid),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.config.CPUSeconds > 0 {
		set(unix.RLIMIT_CPU, r.config.CPUSeconds, "cpu")
	}
	if r.config.MemoryBytes > 0 {
		set(unix.RLIMIT_AS, r.config.MemoryBytes, "as")
	}
	// Keep runaway snippets from filling the disk with artifacts.
	set(unix.RLIMIT_FSIZE, 64*1024*1024, "fsize")
}
