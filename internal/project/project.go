// Package project implements the Project Execution Engine (C4): it
// materializes a stored project's files into a fresh temporary directory,
// hands the directory to the Runner Registry (C3), drives build then
// execute through the resolved Runner (C2), and assembles a structured
// ProjectExecutionResult. It never lets an exception escape uncaptured —
// every failure mode is reported as a result with a populated Error field.
package project

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/workflowkit/engine/internal/contract"
	"github.com/workflowkit/engine/internal/langrunner"
	"github.com/workflowkit/engine/internal/logger"
	"github.com/workflowkit/engine/pkg/models"
)

// SourceFile is one file belonging to a project's source tree, as handed
// back by the external file-storage interface.
type SourceFile struct {
	RelPath string
	Content []byte
}

// SourceFetcher fetches a project's source tree by its storage reference.
// It is the external file-storage boundary C4 depends on.
type SourceFetcher interface {
	FetchSource(ctx context.Context, sourceRef string) ([]SourceFile, error)
}

// Engine implements spec §4.3's executeProject contract.
type Engine struct {
	fetcher    SourceFetcher
	registry   *langrunner.Registry
	mapper     *contract.Mapper
	workDir    string // base directory under which per-execution dirs are created
	retainDirs bool   // when true, materialized directories are not cleaned up
	log        *logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetention disables the post-execution cleanup step (step 8), useful
// for debugging a failed run by hand.
func WithRetention(retain bool) Option {
	return func(e *Engine) { e.retainDirs = retain }
}

// WithLogger attaches a logger, passed through to the Data-Contract Mapper
// so a parameter that falls through the conversion table is logged against
// its key rather than silently stringified.
func WithLogger(log *logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates a Project Execution Engine. workDir is the base directory
// under which per-execution project directories are materialized; it
// defaults to os.TempDir() when empty.
func New(fetcher SourceFetcher, registry *langrunner.Registry, workDir string, opts ...Option) *Engine {
	if workDir == "" {
		workDir = os.TempDir()
	}
	e := &Engine{
		fetcher:  fetcher,
		registry: registry,
		workDir:  workDir,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.mapper = contract.New(e.log)
	return e
}

const parametersFileName = "parameters.json"
const outputDirName = "output"

// Execute runs spec §4.3's executeProject contract end to end. It never
// returns a non-nil error for a project-level failure — those are reported
// via the returned result's Status/Error fields — only for inputs that
// can't be acted on at all (nil request).
func (e *Engine) Execute(ctx context.Context, req *models.ProjectExecutionRequest) (result *models.ProjectExecutionResult, err error) {
	if req == nil {
		return nil, fmt.Errorf("%w: execution request is required", models.ErrValidationFailed)
	}

	result = &models.ProjectExecutionResult{
		ExecutionID: req.ExecutionID,
		NodeID:      req.NodeID,
	}

	defer func() {
		if r := recover(); r != nil {
			result.Status = models.ProjectExecutionStatusFailed
			result.Error = fmt.Sprintf("system error: %v", r)
			err = nil
		}
	}()

	// 1. Fresh temporary project directory keyed by executionId.
	dir := filepath.Join(e.workDir, "exec-"+req.ExecutionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return e.systemFailure(result, fmt.Errorf("create project directory: %w", err)), nil
	}
	if !e.retainDirs {
		defer os.RemoveAll(dir)
	}

	// 2. Fetch the program's files and write them to disk, preserving
	// relative paths.
	if req.Project == nil {
		return e.systemFailure(result, fmt.Errorf("project reference is required")), nil
	}
	files, err := e.fetcher.FetchSource(ctx, req.Project.SourceRef)
	if err != nil {
		return e.systemFailure(result, fmt.Errorf("fetch project source: %w", err)), nil
	}
	if err := writeSourceFiles(dir, files); err != nil {
		return e.systemFailure(result, fmt.Errorf("materialize project source: %w", err)), nil
	}

	// 3. Materialize parameters through C5 and write parameters.json, plus
	// propagate any embedded input files to disk.
	converted := e.mapper.Convert(toAny(req.Input))
	if err := writeParameters(dir, converted); err != nil {
		return e.systemFailure(result, fmt.Errorf("write parameters file: %w", err)), nil
	}
	if err := writeEmbeddedFiles(dir, converted); err != nil {
		return e.systemFailure(result, fmt.Errorf("write embedded input files: %w", err)), nil
	}

	// 4. Resolve a runner.
	runner, err := e.registry.Resolve(ctx, dir)
	if err != nil {
		result.Status = models.ProjectExecutionStatusFailed
		result.Error = models.ErrNoRunnerAvailable.Error()
		return result, nil
	}

	// 5. Build, under a bounded timeout.
	analysis, err := runner.Analyze(ctx, dir)
	if err != nil {
		return e.systemFailure(result, fmt.Errorf("analyze project: %w", err)), nil
	}

	buildCtx, buildCancel := withBoundedTimeout(ctx, req.TimeoutMs)
	defer buildCancel()

	buildStart := time.Now()
	outcome, err := runner.Build(buildCtx, dir, analysis)
	result.BuildDuration = time.Since(buildStart).Milliseconds()
	if err != nil {
		return e.systemFailure(result, fmt.Errorf("run build step: %w", err)), nil
	}
	if outcome != nil && !outcome.Succeeded {
		result.Status = models.ProjectExecutionStatusFailed
		result.Stdout = outcome.Stdout
		result.Stderr = outcome.Stderr
		result.Error = models.ErrBuildFailed.Error()
		return result, nil
	}

	// 6. Execute, observing the outer timeout.
	runCtx, runCancel := withBoundedTimeout(ctx, req.TimeoutMs)
	defer runCancel()

	runStart := time.Now()
	runRes, err := runner.Execute(runCtx, langrunner.ExecuteRequest{
		ExecutionID: req.ExecutionID,
		Dir:         dir,
		Analysis:    analysis,
		Input:       req.Input,
		Timeout:     req.TimeoutMs,
		Limits:      req.Limits,
	})
	result.RunDuration = time.Since(runStart).Milliseconds()

	if runRes != nil {
		result.ExitCode = runRes.ExitCode
		result.Stdout = runRes.Stdout
		result.Stderr = runRes.Stderr
	}

	switch {
	case err != nil && isTimeoutErr(err):
		result.Status = models.ProjectExecutionStatusTimeout
		result.Error = err.Error()
	case err != nil && isCancelledErr(err):
		result.Status = models.ProjectExecutionStatusCancelled
		result.Error = err.Error()
	case err != nil:
		return e.systemFailure(result, fmt.Errorf("run execute step: %w", err)), nil
	default:
		if runRes.ExitCode == 0 {
			result.Status = models.ProjectExecutionStatusSucceeded
		} else {
			result.Status = models.ProjectExecutionStatusFailed
			result.Error = models.ErrExecutionError.Error()
		}
		result.ResourceUsage = &models.ResourceUsage{WallTimeMs: result.RunDuration}
	}

	// 7. Scan for output files under the known convention.
	if outputFiles, err := scanOutputFiles(dir); err == nil && len(outputFiles) > 0 {
		if result.Output == nil {
			result.Output = make(map[string]interface{})
		}
		result.Output["outputFiles"] = outputFiles
	}

	// 8. Cleanup happens via the deferred os.RemoveAll unless retention is
	// enabled.
	return result, nil
}

func (e *Engine) systemFailure(result *models.ProjectExecutionResult, err error) *models.ProjectExecutionResult {
	result.Status = models.ProjectExecutionStatusFailed
	result.Error = fmt.Sprintf("%s: %v", models.ErrSystemError, err)
	return result
}

func writeSourceFiles(dir string, files []SourceFile) error {
	for _, f := range files {
		target := filepath.Join(dir, f.RelPath)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		mode := os.FileMode(0o644)
		if bytes.HasPrefix(f.Content, []byte("#!")) {
			mode = 0o755
		}
		if err := os.WriteFile(target, f.Content, mode); err != nil {
			return err
		}
	}
	return nil
}

func writeParameters(dir string, params interface{}) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, parametersFileName), data, 0o644)
}

func toAny(m map[string]interface{}) interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func withBoundedTimeout(ctx context.Context, timeoutMs int64) (context.Context, context.CancelFunc) {
	if timeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, models.ErrTimeout)
}

func isCancelledErr(err error) bool {
	return errors.Is(err, models.ErrCancelled)
}
