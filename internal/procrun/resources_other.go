//go:build !linux

package procrun

import (
	"os/exec"

	"github.com/workflowkit/engine/pkg/models"
)

// withResourceLimits is a no-op outside Linux: ulimit-style address-space
// ceilings are a Linux/POSIX shell feature this engine only relies on in
// its deployed (container) environment.
func withResourceLimits(command string, args []string, _ *models.ResourceLimits) (string, []string) {
	return command, args
}

func killPgroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
