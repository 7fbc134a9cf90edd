package langrunner

import (
	"context"

	"github.com/workflowkit/engine/internal/procrun"
)

// JavaRunner builds and runs a Maven- or Gradle-managed Java project. It is
// the worked example from the Language Runner contract: probe for a build
// descriptor, compile with the matching toolchain, run the produced jar.
type JavaRunner struct {
	proc *procrun.Runner
}

// NewJavaRunner creates a Java runner backed by the shared process runner.
func NewJavaRunner(proc *procrun.Runner) *JavaRunner {
	return &JavaRunner{proc: proc}
}

func (r *JavaRunner) Language() string { return "java" }
func (r *JavaRunner) Priority() int    { return 100 }

func (r *JavaRunner) CanHandle(ctx context.Context, dir string) bool {
	return fileExists(dir, "pom.xml") || fileExists(dir, "build.gradle") || fileExists(dir, "build.gradle.kts")
}

func (r *JavaRunner) Analyze(ctx context.Context, dir string) (map[string]interface{}, error) {
	tool := "maven"
	if fileExists(dir, "build.gradle") || fileExists(dir, "build.gradle.kts") {
		tool = "gradle"
	}
	return map[string]interface{}{"tool": tool}, nil
}

func (r *JavaRunner) Build(ctx context.Context, dir string, analysis map[string]interface{}) (*BuildOutcome, error) {
	tool, _ := analysis["tool"].(string)
	switch tool {
	case "gradle":
		return runBuildStep(ctx, r.proc, dir, "./gradlew", []string{"build", "-x", "test"})
	default:
		return runBuildStep(ctx, r.proc, dir, "mvn", []string{"-B", "package", "-DskipTests"})
	}
}

func (r *JavaRunner) Execute(ctx context.Context, req ExecuteRequest) (*procrun.Result, error) {
	jar, _ := req.Analysis["jar"].(string)
	if jar == "" {
		jar = "target/app.jar"
	}
	return r.proc.Run(ctx, procrun.Spec{
		ExecutionID: req.ExecutionID,
		Dir:         req.Dir,
		Command:     "java",
		Args:        []string{"-jar", jar},
		Env:         req.Env,
		Timeout:     timeoutFromMs(req.Timeout),
		Limits:      req.Limits,
		Stream:      req.Stream,
	})
}
