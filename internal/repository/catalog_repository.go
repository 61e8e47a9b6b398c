package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-progress-api/internal/models"
)

// CatalogRepository reads courses, lectures and quizzes owned by the catalog.
// The only write is the enrollment counter on courses.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindCourse returns a course by id.
func (r *CatalogRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, instructor_id, title, is_published, enrollment_count, rating, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &course, nil
}

// FindLecture returns a lecture by id regardless of publication state.
func (r *CatalogRepository) FindLecture(ctx context.Context, id string) (*models.Lecture, error) {
	const query = `SELECT id, course_id, title, position, duration_sec, is_published FROM lectures WHERE id = $1`
	var lecture models.Lecture
	if err := r.db.GetContext(ctx, &lecture, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &lecture, nil
}

// ListPublishedLectures returns the published lectures of a course in order.
func (r *CatalogRepository) ListPublishedLectures(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]models.Lecture, error) {
	const query = `SELECT id, course_id, title, position, duration_sec, is_published FROM lectures
        WHERE course_id = $1 AND is_published ORDER BY position ASC`
	var lectures []models.Lecture
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &lectures, query, courseID); err != nil {
		return nil, fmt.Errorf("list published lectures: %w", err)
	}
	return lectures, nil
}

// FindQuiz returns a quiz by id.
func (r *CatalogRepository) FindQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	const query = `SELECT id, course_id, lecture_id, title, total_points, passing_score, is_published FROM quizzes WHERE id = $1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		return nil, lookupErr(err)
	}
	return &quiz, nil
}

// ListQuestions returns every question of a quiz.
func (r *CatalogRepository) ListQuestions(ctx context.Context, quizID string) ([]models.Question, error) {
	const query = `SELECT id, quiz_id, type, prompt, correct_answer, points, position FROM questions
        WHERE quiz_id = $1 ORDER BY position ASC`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, quizID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// AdjustEnrollmentCount moves the course enrollment counter by delta, never below zero.
func (r *CatalogRepository) AdjustEnrollmentCount(ctx context.Context, exec sqlx.ExtContext, courseID string, delta int) error {
	const query = `UPDATE courses SET enrollment_count = GREATEST(enrollment_count + $2, 0), updated_at = NOW() WHERE id = $1`
	result, err := pick(r.db, exec).ExecContext(ctx, query, courseID, delta)
	if err != nil {
		return fmt.Errorf("adjust enrollment count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("enrollment count rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
