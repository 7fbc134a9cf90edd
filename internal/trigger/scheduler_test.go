package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowkit/engine/internal/config"
	"github.com/workflowkit/engine/internal/logger"
	"github.com/workflowkit/engine/pkg/models"
)

type fakeSource struct {
	triggers []*models.Trigger

	mu            sync.Mutex
	markedCalls   int
	lastMarkedID  string
}

func (f *fakeSource) ListEnabled(context.Context) ([]*models.Trigger, error) { return f.triggers, nil }
func (f *fakeSource) MarkTriggered(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedCalls++
	f.lastMarkedID = id
	return nil
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls []*models.ExecutionRequest
}

func (f *fakeExecutor) Execute(_ context.Context, req *models.ExecutionRequest) (*models.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return &models.Execution{ID: "exec-1", WorkflowID: req.WorkflowID, Status: models.ExecutionStatusCompleted}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *logger.Logger {
	return logger.New(config.LoggingConfig{Level: "error", Format: "text"})
}

func TestScheduler_AddTrigger_RejectsInvalidCron(t *testing.T) {
	sched := NewScheduler(&fakeSource{}, &fakeExecutor{}, testLogger())
	err := sched.AddTrigger(&models.Trigger{ID: "t1", WorkflowID: "wf-1", CronExpression: "not a cron", Enabled: true})
	assert.Error(t, err)
}

func TestScheduler_AddTrigger_DisabledIsNoop(t *testing.T) {
	sched := NewScheduler(&fakeSource{}, &fakeExecutor{}, testLogger())
	err := sched.AddTrigger(&models.Trigger{ID: "t1", WorkflowID: "wf-1", CronExpression: "* * * * * *", Enabled: false})
	require.NoError(t, err)
	assert.Empty(t, sched.Entries())
}

func TestScheduler_Start_FiresEnabledTriggers(t *testing.T) {
	source := &fakeSource{triggers: []*models.Trigger{
		{ID: "t1", WorkflowID: "wf-1", CronExpression: "* * * * * *", Enabled: true, StaticInputs: map[string]interface{}{"x": 1}},
	}}
	exec := &fakeExecutor{}
	sched := NewScheduler(source, exec, testLogger())

	require.NoError(t, sched.Start(context.Background()))
	defer sched.Stop()

	require.Eventually(t, func() bool { return exec.callCount() > 0 }, 3*time.Second, 20*time.Millisecond)

	req := exec.calls[0]
	assert.Equal(t, "wf-1", req.WorkflowID)
	assert.Equal(t, models.TriggerTypeCron, req.TriggerType)
	assert.Equal(t, 1, req.Variables["x"])

	require.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.markedCalls > 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestScheduler_RemoveTrigger(t *testing.T) {
	sched := NewScheduler(&fakeSource{}, &fakeExecutor{}, testLogger())
	require.NoError(t, sched.AddTrigger(&models.Trigger{ID: "t1", WorkflowID: "wf-1", CronExpression: "* * * * * *", Enabled: true}))
	assert.Len(t, sched.Entries(), 1)

	sched.RemoveTrigger("t1")
	assert.Empty(t, sched.Entries())
}
