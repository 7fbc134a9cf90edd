// Package trigger implements the cron-driven execution-submission
// mechanism (§10.2): a Scheduler holds one robfig/cron/v3 entry per enabled
// Trigger and calls the Workflow Execution Engine's Execute on each firing.
// Trigger CRUD itself (create/update/delete/list) stays out of scope — this
// package only owns the in-memory scheduling of already-loaded triggers.
package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/workflowkit/engine/internal/logger"
	"github.com/workflowkit/engine/pkg/models"
)

// Executor is the Workflow Execution Engine boundary a firing trigger
// submits to.
type Executor interface {
	Execute(ctx context.Context, req *models.ExecutionRequest) (*models.Execution, error)
}

// TriggerSource loads the triggers a scheduler run starts with.
type TriggerSource interface {
	ListEnabled(ctx context.Context) ([]*models.Trigger, error)
	MarkTriggered(ctx context.Context, triggerID string, at time.Time) error
}

// Scheduler manages cron-based trigger firing, grounded on the teacher's
// CronScheduler: second-precision parsing, UTC by default, one cron.EntryID
// per trigger so it can be added/removed without rebuilding the whole
// schedule.
type Scheduler struct {
	source   TriggerSource
	executor Executor
	log      *logger.Logger

	cron    *cron.Cron
	entries map[string]cron.EntryID
	mu      sync.RWMutex
}

// NewScheduler constructs a Scheduler. It does not start firing until Start
// is called.
func NewScheduler(source TriggerSource, executor Executor, log *logger.Logger) *Scheduler {
	return &Scheduler{
		source:   source,
		executor: executor,
		log:      log,
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		entries:  make(map[string]cron.EntryID),
	}
}

// Start loads every enabled trigger from the source and begins firing.
func (s *Scheduler) Start(ctx context.Context) error {
	triggers, err := s.source.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("trigger: list enabled triggers: %w", err)
	}

	s.mu.Lock()
	for _, t := range triggers {
		if err := s.addLocked(t); err != nil {
			s.log.With("trigger_id", t.ID, "error", err).Error("failed to schedule trigger")
		}
	}
	s.mu.Unlock()

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// AddTrigger schedules a single trigger, replacing any existing entry for
// the same trigger ID.
func (s *Scheduler) AddTrigger(t *models.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(t)
}

func (s *Scheduler) addLocked(t *models.Trigger) error {
	if !t.Enabled {
		return nil
	}
	if entryID, ok := s.entries[t.ID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, t.ID)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(t.CronExpression)
	if err != nil {
		return fmt.Errorf("trigger: invalid cron expression %q: %w", t.CronExpression, err)
	}

	entryID := s.cron.Schedule(schedule, s.job(t))
	s.entries[t.ID] = entryID
	return nil
}

// RemoveTrigger unschedules a trigger. A no-op if it was never scheduled.
func (s *Scheduler) RemoveTrigger(triggerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[triggerID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, triggerID)
	}
}

// job builds the cron.Job closure a trigger's schedule fires.
func (s *Scheduler) job(t *models.Trigger) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		req := &models.ExecutionRequest{
			WorkflowID:  t.WorkflowID,
			TriggerType: models.TriggerTypeCron,
			Variables:   t.StaticInputs,
		}
		if _, err := s.executor.Execute(ctx, req); err != nil {
			s.log.With("trigger_id", t.ID, "workflow_id", t.WorkflowID, "error", err).Error("trigger execution failed")
			return
		}
		if err := s.source.MarkTriggered(ctx, t.ID, time.Now().UTC()); err != nil {
			s.log.With("trigger_id", t.ID, "error", err).Warn("failed to record trigger firing")
		}
	})
}

// Entries returns the set of trigger IDs currently scheduled, for
// diagnostics.
func (s *Scheduler) Entries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}
