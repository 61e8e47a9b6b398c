package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRepositoryListPublishedLectures(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "title", "position", "duration_sec", "is_published"}).
		AddRow("lec-1", "course-1", "Intro", 1, 300, true).
		AddRow("lec-2", "course-1", "Deep dive", 2, 900, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM lectures")).
		WithArgs("course-1").
		WillReturnRows(rows)

	lectures, err := repo.ListPublishedLectures(context.Background(), nil, "course-1")
	require.NoError(t, err)
	require.Len(t, lectures, 2)
	assert.Equal(t, "lec-2", lectures[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryFindQuizNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM quizzes WHERE id = $1")).
		WithArgs("quiz-x").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindQuiz(context.Background(), "quiz-x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryAdjustEnrollmentCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET enrollment_count = GREATEST(enrollment_count + $2, 0)")).
		WithArgs("course-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.AdjustEnrollmentCount(context.Background(), nil, "course-1", 1))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET enrollment_count")).
		WithArgs("missing", -1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.AdjustEnrollmentCount(context.Background(), nil, "missing", -1), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
