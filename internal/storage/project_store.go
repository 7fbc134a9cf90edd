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

// ProjectStore implements workflow.ProjectStore plus the create/update/list
// surface a stored project needs.
type ProjectStore struct {
	db *bun.DB
}

func NewProjectStore(db *bun.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) Create(ctx context.Context, p *models.Project) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	row := newProjectRow(p)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("storage: create project %s: %w", p.ID, err)
	}
	return nil
}

func (s *ProjectStore) GetByID(ctx context.Context, id string) (*models.Project, error) {
	row := new(projectRow)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProjectNotFound
		}
		return nil, fmt.Errorf("storage: get project %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (s *ProjectStore) Update(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	row := newProjectRow(p)
	res, err := s.db.NewUpdate().Model(row).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: update project %s: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrProjectNotFound
	}
	return nil
}

func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*projectRow)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: delete project %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrProjectNotFound
	}
	return nil
}

func (s *ProjectStore) List(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []*projectRow
	err := s.db.NewSelect().Model(&rows).Order("created_at DESC").Limit(limit).Offset(offset).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: list projects: %w", err)
	}
	out := make([]*models.Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
