//go:build linux

package procrun

import (
	"fmt"
	"os/exec"
	"syscall"

	"github.com/workflowkit/engine/pkg/models"
)

// withResourceLimits wraps command/args in a shell invocation that applies
// ulimit before exec'ing the real command, giving the child process an
// advisory address-space ceiling. This is an OS-provided guarantee, not
// preemptive scheduler enforcement: a process that never allocates up to
// the limit runs unaffected, matching the "beyond what the OS provides"
// carve-out in the resource model. Setrlimit is never called on the
// runner's own process.
func withResourceLimits(command string, args []string, limits *models.ResourceLimits) (string, []string) {
	if limits == nil || limits.MaxMemoryMB <= 0 {
		return command, args
	}
	kb := limits.MaxMemoryMB * 1024
	script := fmt.Sprintf("ulimit -v %d; exec \"$0\" \"$@\"", kb)
	wrapped := append([]string{command}, args...)
	return "sh", append([]string{"-c", script}, wrapped...)
}

// killPgroup terminates the process group so a build/run subprocess's own
// children are reaped on cancellation, not just the immediate child.
func killPgroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGKILL)
}
