package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workflowkit/engine/pkg/models"
)

func sampleWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:     "wf-1",
		Name:   "sample",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.Node{
			{ID: "a", Name: "first", Type: models.NodeTypeProject, ProjectID: "proj-a"},
		},
	}
}

func TestWorkflowStore_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewWorkflowStore(db)

	mock.ExpectExec(`INSERT INTO "workflows"`).WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Create(context.Background(), sampleWorkflow())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowStore_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewWorkflowStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM "workflows"`).WillReturnRows(sqlmock.NewRows(nil))

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrWorkflowNotFound)
}

func TestWorkflowStore_Delete_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewWorkflowStore(db)

	mock.ExpectExec(`DELETE FROM "workflows"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrWorkflowNotFound)
}

func TestWorkflowStore_List(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewWorkflowStore(db)

	rows := sqlmock.NewRows([]string{"id", "name", "description", "version", "status", "tags",
		"nodes", "edges", "settings", "permissions", "variables", "metadata", "created_by",
		"created_at", "updated_at"}).
		AddRow("wf-1", "sample", "", 1, "active", "[]", "[]", "[]", "{}", "{}", "{}", "{}", "", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT (.+) FROM "workflows"`).WillReturnRows(rows)

	out, err := store.List(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "wf-1", out[0].ID)
}
