package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/workflowkit/engine/pkg/models"
)

// ExecutionStore implements workflow.ExecutionStore against Postgres via
// bun, grounded on the teacher's ExecutionRepository: a transactional
// delete-then-reinsert of node executions backs every Update, since node
// executions are owned entirely by their parent execution.
type ExecutionStore struct {
	db *bun.DB
}

// NewExecutionStore wraps an open bun connection.
func NewExecutionStore(db *bun.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

func (s *ExecutionStore) Create(ctx context.Context, exec *models.Execution) error {
	row := newExecutionRow(exec)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("storage: create execution %s: %w", exec.ID, err)
		}
		return insertNodeExecutions(ctx, tx, exec.ID, exec.NodeExecutions)
	})
}

func (s *ExecutionStore) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	row := new(executionRow)
	err := s.db.NewSelect().
		Model(row).
		Relation("NodeExecutions").
		Where("ex.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrExecutionNotFound
		}
		return nil, fmt.Errorf("storage: get execution %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (s *ExecutionStore) Update(ctx context.Context, exec *models.Execution) error {
	row := newExecutionRow(exec)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(row).
			Column("status", "trigger_type", "input", "context", "output", "results",
				"error", "progress", "variables", "completed_at", "duration", "executed_by",
				"metadata", "updated_at").
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", exec.ID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("storage: update execution %s: %w", exec.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrExecutionNotFound
		}
		if _, err := tx.NewDelete().Model((*nodeExecutionRow)(nil)).Where("execution_id = ?", exec.ID).Exec(ctx); err != nil {
			return fmt.Errorf("storage: clear node executions for %s: %w", exec.ID, err)
		}
		return insertNodeExecutions(ctx, tx, exec.ID, exec.NodeExecutions)
	})
}

func (s *ExecutionStore) UpdateStatus(ctx context.Context, id string, status models.ExecutionStatus) error {
	res, err := s.db.NewUpdate().
		Model((*executionRow)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: update status for execution %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrExecutionNotFound
	}
	return nil
}

func (s *ExecutionStore) UpdateProgress(ctx context.Context, id string, progress models.ExecutionProgress) error {
	res, err := s.db.NewUpdate().
		Model((*executionRow)(nil)).
		Set("progress = ?", progress).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: update progress for execution %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrExecutionNotFound
	}
	return nil
}

func (s *ExecutionStore) UpdateNodeExecution(ctx context.Context, id string, ne *models.NodeExecution) error {
	row := newNodeExecutionRow(id, ne)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model(row).Where("id = ?", ne.ID).Exec(ctx)
		if err != nil {
			return fmt.Errorf("storage: update node execution %s: %w", ne.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(row).Exec(ctx)
		if err != nil {
			return fmt.Errorf("storage: insert node execution %s: %w", ne.ID, err)
		}
		return nil
	})
}

func (s *ExecutionStore) GetRunning(ctx context.Context) ([]*models.Execution, error) {
	return s.queryExecutions(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("ex.status IN (?)", bun.In([]string{
			string(models.ExecutionStatusRunning),
			string(models.ExecutionStatusPending),
		}))
	})
}

func (s *ExecutionStore) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return s.queryExecutions(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("ex.workflow_id = ?", workflowID).Order("ex.started_at DESC")
	})
}

func (s *ExecutionStore) GetHistory(ctx context.Context, workflowID string, limit int) ([]*models.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryExecutions(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("ex.workflow_id = ?", workflowID).Order("ex.started_at DESC").Limit(limit)
	})
}

func (s *ExecutionStore) queryExecutions(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) ([]*models.Execution, error) {
	var rows []*executionRow
	q := s.db.NewSelect().Model(&rows).Relation("NodeExecutions")
	q = filter(q)
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("storage: query executions: %w", err)
	}
	out := make([]*models.Execution, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *ExecutionStore) AppendLog(ctx context.Context, id string, line string) error {
	row := &executionLogRow{ExecutionID: id, Line: line, CreatedAt: time.Now().UTC()}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("storage: append log for execution %s: %w", id, err)
	}
	return nil
}

func (s *ExecutionStore) GetLogs(ctx context.Context, id string, skip, take int) ([]string, error) {
	if take <= 0 {
		take = 100
	}
	var rows []*executionLogRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("execution_id = ?", id).
		Order("id ASC").
		Offset(skip).
		Limit(take).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: get logs for execution %s: %w", id, err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Line)
	}
	return out, nil
}

func insertNodeExecutions(ctx context.Context, tx bun.Tx, executionID string, nodeExecs []*models.NodeExecution) error {
	if len(nodeExecs) == 0 {
		return nil
	}
	rows := make([]*nodeExecutionRow, 0, len(nodeExecs))
	for _, ne := range nodeExecs {
		rows = append(rows, newNodeExecutionRow(executionID, ne))
	}
	if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("storage: insert node executions for %s: %w", executionID, err)
	}
	return nil
}
