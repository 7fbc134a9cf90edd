package models

import "time"

// Trigger is a cron-scheduled producer of workflow executions. Trigger
// CRUD (create/update/delete/list) is UI/CRUD surface out of this engine's
// scope; only the record shape the scheduler consumes lives here.
type Trigger struct {
	ID             string                 `json:"id"`
	WorkflowID     string                 `json:"workflow_id"`
	CronExpression string                 `json:"cron_expression"`
	Enabled        bool                   `json:"enabled"`
	StaticInputs   map[string]interface{} `json:"static_inputs,omitempty"`
	LastRunAt      *time.Time             `json:"last_run_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}
