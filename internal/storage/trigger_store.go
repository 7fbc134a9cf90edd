package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/workflowkit/engine/pkg/models"
)

// triggerRow persists a Trigger record for the cron scheduler (internal/trigger).
type triggerRow struct {
	bun.BaseModel `bun:"table:triggers,alias:tr"`

	ID             string                 `bun:"id,pk"`
	WorkflowID     string                 `bun:"workflow_id,notnull"`
	CronExpression string                 `bun:"cron_expression,notnull"`
	Enabled        bool                   `bun:"enabled,notnull"`
	StaticInputs   map[string]interface{} `bun:"static_inputs,type:jsonb"`
	LastRunAt      *time.Time             `bun:"last_run_at"`
	CreatedAt      time.Time              `bun:"created_at,notnull"`
	UpdatedAt      time.Time              `bun:"updated_at,notnull"`
}

func (r *triggerRow) toDomain() *models.Trigger {
	return &models.Trigger{
		ID:             r.ID,
		WorkflowID:     r.WorkflowID,
		CronExpression: r.CronExpression,
		Enabled:        r.Enabled,
		StaticInputs:   r.StaticInputs,
		LastRunAt:      r.LastRunAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// TriggerStore implements internal/trigger's TriggerSource against
// Postgres, alongside a minimal CRUD surface for seeding triggers.
type TriggerStore struct {
	db *bun.DB
}

func NewTriggerStore(db *bun.DB) *TriggerStore {
	return &TriggerStore{db: db}
}

func (s *TriggerStore) Create(ctx context.Context, t *models.Trigger) error {
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	row := &triggerRow{
		ID: t.ID, WorkflowID: t.WorkflowID, CronExpression: t.CronExpression,
		Enabled: t.Enabled, StaticInputs: t.StaticInputs, LastRunAt: t.LastRunAt,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("storage: create trigger %s: %w", t.ID, err)
	}
	return nil
}

func (s *TriggerStore) ListEnabled(ctx context.Context) ([]*models.Trigger, error) {
	var rows []*triggerRow
	if err := s.db.NewSelect().Model(&rows).Where("enabled").Scan(ctx); err != nil {
		return nil, fmt.Errorf("storage: list enabled triggers: %w", err)
	}
	out := make([]*models.Trigger, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *TriggerStore) MarkTriggered(ctx context.Context, triggerID string, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*triggerRow)(nil)).
		Set("last_run_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", triggerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: mark trigger %s triggered: %w", triggerID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrTriggerNotFound
	}
	return nil
}
