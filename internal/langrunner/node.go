package langrunner

import (
	"context"

	"github.com/workflowkit/engine/internal/procrun"
)

// NodeRunner builds and runs a Node.js project, choosing its package
// manager by lockfile detection (pnpm-lock.yaml, yarn.lock, else npm).
type NodeRunner struct {
	proc *procrun.Runner
}

// NewNodeRunner creates a Node.js runner.
func NewNodeRunner(proc *procrun.Runner) *NodeRunner {
	return &NodeRunner{proc: proc}
}

func (r *NodeRunner) Language() string { return "node" }
func (r *NodeRunner) Priority() int    { return 90 }

func (r *NodeRunner) CanHandle(ctx context.Context, dir string) bool {
	return fileExists(dir, "package.json")
}

func (r *NodeRunner) Analyze(ctx context.Context, dir string) (map[string]interface{}, error) {
	pm := "npm"
	switch {
	case fileExists(dir, "pnpm-lock.yaml"):
		pm = "pnpm"
	case fileExists(dir, "yarn.lock"):
		pm = "yarn"
	}
	return map[string]interface{}{"packageManager": pm, "entry": "index.js"}, nil
}

func (r *NodeRunner) Build(ctx context.Context, dir string, analysis map[string]interface{}) (*BuildOutcome, error) {
	switch analysis["packageManager"] {
	case "pnpm":
		return runBuildStep(ctx, r.proc, dir, "pnpm", []string{"install", "--frozen-lockfile"})
	case "yarn":
		return runBuildStep(ctx, r.proc, dir, "yarn", []string{"install", "--frozen-lockfile"})
	default:
		return runBuildStep(ctx, r.proc, dir, "npm", []string{"ci"})
	}
}

func (r *NodeRunner) Execute(ctx context.Context, req ExecuteRequest) (*procrun.Result, error) {
	entry, _ := req.Analysis["entry"].(string)
	if entry == "" {
		entry = "index.js"
	}
	return r.proc.Run(ctx, procrun.Spec{
		ExecutionID: req.ExecutionID,
		Dir:         req.Dir,
		Command:     "node",
		Args:        []string{entry},
		Env:         req.Env,
		Timeout:     timeoutFromMs(req.Timeout),
		Limits:      req.Limits,
		Stream:      req.Stream,
	})
}
