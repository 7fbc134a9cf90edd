package langrunner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/workflowkit/engine/internal/procrun"
)

// DotNetRunner builds and runs a .NET project via the dotnet CLI.
type DotNetRunner struct {
	proc *procrun.Runner
}

// NewDotNetRunner creates a .NET runner.
func NewDotNetRunner(proc *procrun.Runner) *DotNetRunner {
	return &DotNetRunner{proc: proc}
}

func (r *DotNetRunner) Language() string { return "dotnet" }
func (r *DotNetRunner) Priority() int    { return 90 }

func (r *DotNetRunner) CanHandle(ctx context.Context, dir string) bool {
	return findProjectFile(dir) != ""
}

func (r *DotNetRunner) Analyze(ctx context.Context, dir string) (map[string]interface{}, error) {
	proj := findProjectFile(dir)
	return map[string]interface{}{"project_file": proj}, nil
}

func (r *DotNetRunner) Build(ctx context.Context, dir string, analysis map[string]interface{}) (*BuildOutcome, error) {
	return runBuildStep(ctx, r.proc, dir, "dotnet", []string{"build", "-c", "Release"})
}

func (r *DotNetRunner) Execute(ctx context.Context, req ExecuteRequest) (*procrun.Result, error) {
	proj, _ := req.Analysis["project_file"].(string)
	args := []string{"run", "-c", "Release"}
	if proj != "" {
		args = append(args, "--project", proj)
	}
	return r.proc.Run(ctx, procrun.Spec{
		ExecutionID: req.ExecutionID,
		Dir:         req.Dir,
		Command:     "dotnet",
		Args:        args,
		Env:         req.Env,
		Timeout:     timeoutFromMs(req.Timeout),
		Limits:      req.Limits,
		Stream:      req.Stream,
	})
}

func findProjectFile(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".csproj") {
			return filepath.Join(dir, entry.Name())
		}
	}
	return ""
}
