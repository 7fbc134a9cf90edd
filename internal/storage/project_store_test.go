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

func sampleProject() *models.Project {
	return &models.Project{ID: "proj-1", Name: "calc", Language: "python", SourceRef: "blob://proj-1"}
}

func TestProjectStore_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewProjectStore(db)

	mock.ExpectExec(`INSERT INTO "projects"`).WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Create(context.Background(), sampleProject())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectStore_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewProjectStore(db)

	rows := sqlmock.NewRows([]string{"id", "name", "language", "entry_point", "source_ref",
		"environment", "created_at", "updated_at"}).
		AddRow("proj-1", "calc", "python", "", "blob://proj-1", "{}", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT (.+) FROM "projects"`).WillReturnRows(rows)

	p, err := store.GetByID(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "calc", p.Name)
}

func TestProjectStore_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewProjectStore(db)

	mock.ExpectQuery(`SELECT (.+) FROM "projects"`).WillReturnRows(sqlmock.NewRows(nil))

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrProjectNotFound)
}
