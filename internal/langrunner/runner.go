// Package langrunner implements the Language Runner (C2) and Runner
// Registry (C3): a priority-ordered, capability-probed set of toolchain
// adapters that analyze, build, and execute a materialized project
// directory.
package langrunner

import (
	"context"

	"github.com/workflowkit/engine/internal/procrun"
	"github.com/workflowkit/engine/pkg/models"
)

// BuildOutcome is the result of a runner's build step.
type BuildOutcome struct {
	Succeeded bool
	Stdout    string
	Stderr    string
	Duration  int64 // milliseconds
}

// Runner is implemented once per supported language/toolchain. Registered
// runners are tried in priority order (highest first); the first whose
// CanHandle returns true is used for the rest of the lifecycle.
type Runner interface {
	// Language identifies the runner, e.g. "java", "python", "node",
	// "dotnet", "script".
	Language() string

	// Priority breaks ties when more than one runner's CanHandle would
	// match; higher values are preferred.
	Priority() int

	// CanHandle is a cheap filesystem probe (lockfile/manifest detection)
	// run against the materialized project directory.
	CanHandle(ctx context.Context, dir string) bool

	// Analyze inspects the project directory and returns any
	// language-specific config needed by Build/Execute (e.g. a detected
	// entry point).
	Analyze(ctx context.Context, dir string) (map[string]interface{}, error)

	// Build compiles or prepares the project for execution. The script
	// runner, and the Python runner for a project with neither
	// pyproject.toml nor requirements.txt, return a no-op success outcome;
	// the Node runner always runs a package install.
	Build(ctx context.Context, dir string, analysis map[string]interface{}) (*BuildOutcome, error)

	// Execute runs the built project as a subprocess and returns its
	// process-level result.
	Execute(ctx context.Context, req ExecuteRequest) (*procrun.Result, error)
}

// ExecuteRequest carries everything a Runner needs to invoke the project's
// entry point as a subprocess.
type ExecuteRequest struct {
	ExecutionID string
	Dir         string
	Analysis    map[string]interface{}
	Input       map[string]interface{}
	Env         []string
	Timeout     int64 // milliseconds, 0 = no timeout
	Limits      *models.ResourceLimits
	Stream      procrun.StreamSink
}
