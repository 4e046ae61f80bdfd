//go:build !linux

package process

import (
	"os"
	"os/exec"
)

func setProcGroup(cmd *exec.Cmd) {}

func killProcessTree(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}

func (r *Runner) applyLimits(pid int) {
	r.logger.Debug("resource limits not supported on this platform; skipping")
}
