package langrunner

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/workflowkit/engine/internal/procrun"
)

// ScriptRunner is the fallback runner: it executes a single shebang script
// directly, with no build step. It is tried last, after every toolchain
// runner has had a chance to claim the project directory.
type ScriptRunner struct {
	proc *procrun.Runner
}

// NewScriptRunner creates a generic script runner.
func NewScriptRunner(proc *procrun.Runner) *ScriptRunner {
	return &ScriptRunner{proc: proc}
}

func (r *ScriptRunner) Language() string { return "script" }
func (r *ScriptRunner) Priority() int    { return 0 }

func (r *ScriptRunner) CanHandle(ctx context.Context, dir string) bool {
	return findShebangScript(dir) != ""
}

func (r *ScriptRunner) Analyze(ctx context.Context, dir string) (map[string]interface{}, error) {
	script := findShebangScript(dir)
	return map[string]interface{}{"script": script}, nil
}

func (r *ScriptRunner) Build(ctx context.Context, dir string, analysis map[string]interface{}) (*BuildOutcome, error) {
	return &BuildOutcome{Succeeded: true}, nil
}

func (r *ScriptRunner) Execute(ctx context.Context, req ExecuteRequest) (*procrun.Result, error) {
	script, _ := req.Analysis["script"].(string)
	return r.proc.Run(ctx, procrun.Spec{
		ExecutionID: req.ExecutionID,
		Dir:         req.Dir,
		Command:     script,
		Env:         req.Env,
		Timeout:     timeoutFromMs(req.Timeout),
		Limits:      req.Limits,
		Stream:      req.Stream,
	})
}

// findShebangScript looks for a single executable file at the project root
// whose first line starts with "#!". It returns the file name (relative to
// dir, as exec.Cmd.Dir already anchors the working directory) or "" if none
// or more than one candidate is found.
func findShebangScript(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var found string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Mode()&0111 == 0 {
			continue
		}
		if hasShebang(filepath.Join(dir, entry.Name())) {
			if found != "" {
				return ""
			}
			found = "./" + entry.Name()
		}
	}
	return found
}

func hasShebang(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return false
	}
	return strings.HasPrefix(scanner.Text(), "#!")
}
