package langrunner

import (
	"context"

	"github.com/workflowkit/engine/internal/procrun"
)

// PythonRunner builds and runs a Python project. It installs dependencies
// with poetry when pyproject.toml is present, otherwise with pip when
// requirements.txt is present, otherwise installs nothing, and then runs
// main.py with python3. No virtual environment is created and inline
// script metadata (PEP 723) is not read.
type PythonRunner struct {
	proc *procrun.Runner
}

// NewPythonRunner creates a Python runner.
func NewPythonRunner(proc *procrun.Runner) *PythonRunner {
	return &PythonRunner{proc: proc}
}

func (r *PythonRunner) Language() string { return "python" }
func (r *PythonRunner) Priority() int    { return 90 }

func (r *PythonRunner) CanHandle(ctx context.Context, dir string) bool {
	return fileExists(dir, "requirements.txt") || fileExists(dir, "pyproject.toml") || fileExists(dir, "main.py")
}

func (r *PythonRunner) Analyze(ctx context.Context, dir string) (map[string]interface{}, error) {
	analysis := map[string]interface{}{"entry": "main.py"}
	switch {
	case fileExists(dir, "pyproject.toml"):
		analysis["installer"] = "poetry"
	case fileExists(dir, "requirements.txt"):
		analysis["installer"] = "pip"
	default:
		analysis["installer"] = "none"
	}
	return analysis, nil
}

func (r *PythonRunner) Build(ctx context.Context, dir string, analysis map[string]interface{}) (*BuildOutcome, error) {
	switch analysis["installer"] {
	case "poetry":
		return runBuildStep(ctx, r.proc, dir, "poetry", []string{"install", "--no-interaction"})
	case "pip":
		return runBuildStep(ctx, r.proc, dir, "pip", []string{"install", "-r", "requirements.txt"})
	default:
		return &BuildOutcome{Succeeded: true}, nil
	}
}

func (r *PythonRunner) Execute(ctx context.Context, req ExecuteRequest) (*procrun.Result, error) {
	entry, _ := req.Analysis["entry"].(string)
	if entry == "" {
		entry = "main.py"
	}
	return r.proc.Run(ctx, procrun.Spec{
		ExecutionID: req.ExecutionID,
		Dir:         req.Dir,
		Command:     "python3",
		Args:        []string{entry},
		Env:         req.Env,
		Timeout:     timeoutFromMs(req.Timeout),
		Limits:      req.Limits,
		Stream:      req.Stream,
	})
}
