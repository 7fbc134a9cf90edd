package langrunner

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/workflowkit/engine/internal/procrun"
)

// fileExists is the shared filesystem probe every CanHandle implementation
// uses to detect a toolchain's manifest/lockfile.
func fileExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// runBuildStep shells out via the shared process runner and adapts its
// Result into a BuildOutcome.
func runBuildStep(ctx context.Context, runner *procrun.Runner, dir, command string, args []string) (*BuildOutcome, error) {
	start := time.Now()
	res, err := runner.Run(ctx, procrun.Spec{Dir: dir, Command: command, Args: args})
	if err != nil {
		return nil, err
	}
	return &BuildOutcome{
		Succeeded: res.ExitCode == 0,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		Duration:  time.Since(start).Milliseconds(),
	}, nil
}

func timeoutFromMs(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
