package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

var runColumns = []string{"id", "term_id", "grade", "version", "status", "proposal_id", "total_weeks", "meta", "created_by", "published_at", "created_at", "updated_at"}

func TestTimetableRunRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM timetable_runs WHERE term_id = $1 AND grade = $2")).
		WithArgs("term-1", "10").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_runs")).
		WithArgs(sqlmock.AnyArg(), "term-1", "10", 3, models.TimetableStatusDraft, "proposal-1", 18, sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.TimetableRun{TermID: "term-1", Grade: "10", ProposalID: "proposal-1", TotalWeeks: 18}
	require.NoError(t, repo.CreateVersioned(context.Background(), nil, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 3, run.Version)
	assert.Equal(t, types.JSONText(`{}`), run.Meta)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, repo.CreateVersioned(context.Background(), nil, &models.TimetableRun{TermID: "term-1"}))
	assert.Error(t, repo.CreateVersioned(context.Background(), nil, nil))
}

func TestTimetableRunRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM timetable_runs WHERE term_id = ? AND grade = ?")).
		WithArgs("term-1", "10").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	now := time.Now()
	rows := sqlmock.NewRows(runColumns).
		AddRow("run-2", "term-1", "10", 2, "PUBLISHED", "p-2", 18, `{}`, "user-1", now, now, now).
		AddRow("run-1", "term-1", "10", 1, "DRAFT", "p-1", 18, `{}`, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_runs WHERE term_id = ? AND grade = ? ORDER BY grade ASC, version DESC LIMIT ? OFFSET ?")).
		WithArgs("term-1", "10", 20, 0).
		WillReturnRows(rows)

	runs, total, err := repo.List(context.Background(), TimetableRunFilter{TermID: "term-1", Grade: "10"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, runs, 2)
	assert.Equal(t, models.TimetableStatusPublished, runs[0].Status)
	require.NotNil(t, runs[0].CreatedBy)
	assert.Nil(t, runs[1].PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_runs WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(runColumns))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_runs SET status = $1, published_at = COALESCE($2, published_at), updated_at = $3 WHERE id = $4")).
		WithArgs(models.TimetableStatusPublished, sqlmock.AnyArg(), sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "run-1", models.TimetableStatusPublished, nil))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_runs SET status = $1, meta = $2")).
		WithArgs(models.TimetableStatusArchived, types.JSONText(`{"reason":"superseded"}`), nil, sqlmock.AnyArg(), "run-9").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), nil, "run-9", models.TimetableStatusArchived, types.JSONText(`{"reason":"superseded"}`))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryArchiveAndDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_runs SET status = $1, updated_at = $2 WHERE term_id = $3 AND grade = $4 AND status = $5 AND id <> $6")).
		WithArgs(models.TimetableStatusArchived, sqlmock.AnyArg(), "term-1", "10", models.TimetableStatusPublished, "run-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	archived, err := repo.ArchivePublished(context.Background(), nil, "term-1", "10", "run-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), archived)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetable_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), nil, "run-1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
