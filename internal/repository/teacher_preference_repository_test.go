package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherPreferenceRepositoryListByTeachers(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTeacherPreferenceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "max_load_per_day", "max_load_per_week", "unavailable", "created_at", "updated_at"}).
		AddRow("pref-1", "teacher-1", 6, 30, `[{"day_of_week":"MONDAY","time_range":"1-2"}]`, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM teacher_preferences WHERE teacher_id IN (?, ?)")).
		WithArgs("teacher-1", "teacher-2").
		WillReturnRows(rows)

	prefs, err := repo.ListByTeachers(context.Background(), []string{"teacher-1", "teacher-2"})
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, 6, prefs[0].MaxLoadPerDay)
	assert.JSONEq(t, `[{"day_of_week":"MONDAY","time_range":"1-2"}]`, prefs[0].Unavailable.String())

	none, err := repo.ListByTeachers(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.NoError(t, mock.ExpectationsWereMet())
}
