package project

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowkit/engine/internal/langrunner"
	"github.com/workflowkit/engine/internal/procrun"
	"github.com/workflowkit/engine/pkg/models"
)

type fakeFetcher struct {
	files []SourceFile
	err   error
}

func (f *fakeFetcher) FetchSource(ctx context.Context, sourceRef string) ([]SourceFile, error) {
	return f.files, f.err
}

func shebangScript(t *testing.T, body string) []SourceFile {
	t.Helper()
	return []SourceFile{{RelPath: "run.sh", Content: []byte("#!/bin/sh\n" + body)}}
}

func newTestRegistry() *langrunner.Registry {
	reg := langrunner.NewRegistry()
	_ = reg.Register(langrunner.NewScriptRunner(procrun.New()))
	return reg
}

func TestEngine_Execute_Success(t *testing.T) {
	workDir := t.TempDir()
	fetcher := &fakeFetcher{files: shebangScript(t, "echo hello\n")}
	engine := New(fetcher, newTestRegistry(), workDir)

	req := &models.ProjectExecutionRequest{
		ExecutionID: "exec-1",
		NodeID:      "node-1",
		Project:     &models.Project{ID: "p1", Language: "script", SourceRef: "ref://p1"},
		Input:       map[string]interface{}{"greeting": "hi"},
	}

	result, err := engine.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "exec-1", result.ExecutionID)
}

func TestEngine_Execute_NilRequest(t *testing.T) {
	engine := New(&fakeFetcher{}, newTestRegistry(), t.TempDir())
	result, err := engine.Execute(context.Background(), nil)
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestEngine_Execute_NoRunnerAvailable(t *testing.T) {
	workDir := t.TempDir()
	fetcher := &fakeFetcher{files: []SourceFile{{RelPath: "data.txt", Content: []byte("not a script")}}}
	engine := New(fetcher, newTestRegistry(), workDir)

	req := &models.ProjectExecutionRequest{
		ExecutionID: "exec-2",
		NodeID:      "node-1",
		Project:     &models.Project{ID: "p1", Language: "unknown", SourceRef: "ref://p1"},
		Input:       map[string]interface{}{},
	}

	result, err := engine.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, models.ProjectExecutionStatusFailed, result.Status)
	assert.Equal(t, models.ErrNoRunnerAvailable.Error(), result.Error)
}

func TestEngine_Execute_FetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: assert.AnError}
	engine := New(fetcher, newTestRegistry(), t.TempDir())

	req := &models.ProjectExecutionRequest{
		ExecutionID: "exec-3",
		NodeID:      "node-1",
		Project:     &models.Project{ID: "p1", SourceRef: "ref://p1"},
	}

	result, err := engine.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Error, "system error")
}

func TestEngine_Execute_RetainsDirectoryWhenConfigured(t *testing.T) {
	workDir := t.TempDir()
	fetcher := &fakeFetcher{files: []SourceFile{{RelPath: "data.txt", Content: []byte("x")}}}
	engine := New(fetcher, newTestRegistry(), workDir, WithRetention(true))

	req := &models.ProjectExecutionRequest{
		ExecutionID: "exec-4",
		NodeID:      "node-1",
		Project:     &models.Project{ID: "p1", SourceRef: "ref://p1"},
	}

	_, err := engine.Execute(context.Background(), req)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(workDir, "exec-exec-4"))
	assert.NoError(t, statErr, "retained directory should still exist")
}

func TestWriteEmbeddedFiles_SingleFile(t *testing.T) {
	dir := t.TempDir()
	content := base64.StdEncoding.EncodeToString([]byte("payload"))
	file := &models.InputFile{FileName: "report.txt", Content: content}

	require.NoError(t, writeEmbeddedFiles(dir, file))

	data, err := os.ReadFile(filepath.Join(dir, inputFilesDirName, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestScanOutputFiles_NoOutputDir(t *testing.T) {
	dir := t.TempDir()
	files, err := scanOutputFiles(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScanOutputFiles_FindsNestedFiles(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, outputDirName, "nested")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "result.json"), []byte("{}"), 0o644))

	files, err := scanOutputFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(outputDirName, "nested", "result.json"), files[0])
}

func TestWithBoundedTimeout_ZeroMeansNoDeadline(t *testing.T) {
	ctx, cancel := withBoundedTimeout(context.Background(), 0)
	defer cancel()
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
}

func TestWithBoundedTimeout_PositiveSetsDeadline(t *testing.T) {
	ctx, cancel := withBoundedTimeout(context.Background(), 50)
	defer cancel()
	deadline, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 25*time.Millisecond)
}
