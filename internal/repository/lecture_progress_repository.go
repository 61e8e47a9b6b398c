package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-progress-api/internal/models"
)

const lectureProgressColumns = `id, student_id, lecture_id, course_id, progress, last_position, notes,
        is_completed, completed_at, created_at, updated_at`

// LectureProgressRepository persists per (student, lecture) progress rows.
type LectureProgressRepository struct {
	db *sqlx.DB
}

// NewLectureProgressRepository constructs the repository.
func NewLectureProgressRepository(db *sqlx.DB) *LectureProgressRepository {
	return &LectureProgressRepository{db: db}
}

// Get returns the row for the pair or sql.ErrNoRows.
func (r *LectureProgressRepository) Get(ctx context.Context, exec sqlx.ExtContext, studentID, lectureID string) (*models.LectureProgress, error) {
	query := `SELECT ` + lectureProgressColumns + ` FROM lecture_progress WHERE student_id = $1 AND lecture_id = $2`
	var row models.LectureProgress
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &row, query, studentID, lectureID); err != nil {
		return nil, lookupErr(err)
	}
	return &row, nil
}

// Upsert inserts the row on first touch and overwrites it afterwards.
func (r *LectureProgressRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, row *models.LectureProgress) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	const query = `INSERT INTO lecture_progress (id, student_id, lecture_id, course_id, progress, last_position, notes,
        is_completed, completed_at, created_at, updated_at)
        VALUES (:id, :student_id, :lecture_id, :course_id, :progress, :last_position, :notes,
        :is_completed, :completed_at, :created_at, :updated_at)
        ON CONFLICT (student_id, lecture_id) DO UPDATE SET
        progress = EXCLUDED.progress, last_position = EXCLUDED.last_position, notes = EXCLUDED.notes,
        is_completed = EXCLUDED.is_completed, completed_at = EXCLUDED.completed_at, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, row); err != nil {
		return fmt.Errorf("upsert lecture progress: %w", err)
	}
	return nil
}

// ListByCourse returns every row the student holds for lectures of the course.
func (r *LectureProgressRepository) ListByCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) ([]models.LectureProgress, error) {
	query := `SELECT ` + lectureProgressColumns + ` FROM lecture_progress WHERE student_id = $1 AND course_id = $2`
	var rows []models.LectureProgress
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &rows, query, studentID, courseID); err != nil {
		return nil, fmt.Errorf("list lecture progress: %w", err)
	}
	return rows, nil
}

// ResetForCourse zeroes every row of the pair without deleting it and returns the number of rows touched.
func (r *LectureProgressRepository) ResetForCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string, at time.Time) (int64, error) {
	const query = `UPDATE lecture_progress SET progress = 0, is_completed = FALSE, completed_at = NULL, last_position = 0, updated_at = $3
        WHERE student_id = $1 AND course_id = $2`
	result, err := pick(r.db, exec).ExecContext(ctx, query, studentID, courseID, at)
	if err != nil {
		return 0, fmt.Errorf("reset lecture progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rows affected: %w", err)
	}
	return affected, nil
}
