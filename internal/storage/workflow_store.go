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

// WorkflowStore implements workflow.WorkflowStore plus the create/update/
// list surface a workflow definition needs, grounded on the teacher's
// WorkflowRepository. CRUD HTTP/gRPC exposure of these methods is out of
// scope; they exist so a workflow definition has somewhere to come from.
type WorkflowStore struct {
	db *bun.DB
}

func NewWorkflowStore(db *bun.DB) *WorkflowStore {
	return &WorkflowStore{db: db}
}

func (s *WorkflowStore) Create(ctx context.Context, wf *models.Workflow) error {
	now := time.Now().UTC()
	wf.CreatedAt, wf.UpdatedAt = now, now
	row := newWorkflowRow(wf)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("storage: create workflow %s: %w", wf.ID, err)
	}
	return nil
}

func (s *WorkflowStore) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := new(workflowRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("storage: get workflow %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (s *WorkflowStore) Update(ctx context.Context, wf *models.Workflow) error {
	wf.UpdatedAt = time.Now().UTC()
	row := newWorkflowRow(wf)
	res, err := s.db.NewUpdate().Model(row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: update workflow %s: %w", wf.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrWorkflowNotFound
	}
	return nil
}

func (s *WorkflowStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*workflowRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: delete workflow %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrWorkflowNotFound
	}
	return nil
}

func (s *WorkflowStore) List(ctx context.Context, limit, offset int) ([]*models.Workflow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []*workflowRow
	err := s.db.NewSelect().Model(&rows).Order("created_at DESC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: list workflows: %w", err)
	}
	out := make([]*models.Workflow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
