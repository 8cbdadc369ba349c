package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-coursework-api/internal/models"
)

// ErrDuplicateSubmission is returned when an insert collides with the unique
// (assignment_id, user_id) constraint. A concurrent duplicate create must
// surface this error, never overwrite the existing row.
var ErrDuplicateSubmission = errors.New("submission already exists for this assignment and student")

const pqUniqueViolation = "23505"

const submissionColumns = `id, assignment_id, user_id, submitted_at, file_url, answer_text, score, feedback, status, graded_by, graded_at, created_at, updated_at`

// SubmissionRepository manages persistence for submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs a SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// List returns submission details matching the filter.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	base := `FROM submissions s
        JOIN users u ON u.id = s.user_id
        JOIN assignments a ON a.id = s.assignment_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.AssignmentID != "" {
		conditions = append(conditions, fmt.Sprintf("s.assignment_id = $%d", len(args)+1))
		args = append(args, filter.AssignmentID)
	}
	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("s.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.assignment_id, s.user_id, s.submitted_at, s.file_url, s.answer_text, s.score, s.feedback, s.status, s.graded_by, s.graded_at, s.created_at, s.updated_at,
        u.full_name AS student_name, u.email AS student_email, a.title AS assignment_title, a.course_id, a.due_date
        %s ORDER BY u.full_name ASC LIMIT %d OFFSET %d`, base, size, offset)

	var submissions []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	return submissions, total, nil
}

// FindByID fetches a submission by ID.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1", submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByAssignmentAndUser fetches the unique row for the pair, if present.
func (r *SubmissionRepository) FindByAssignmentAndUser(ctx context.Context, assignmentID, userID string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE assignment_id = $1 AND user_id = $2", submissionColumns)
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, userID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// Create inserts a new submission row. The unique (assignment_id, user_id)
// constraint is the single arbiter under concurrent creates; a violation is
// mapped to ErrDuplicateSubmission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	submission.CreatedAt = now
	submission.UpdatedAt = now
	const query = `INSERT INTO submissions (id, assignment_id, user_id, submitted_at, file_url, answer_text, score, feedback, status, graded_by, graded_at, created_at, updated_at)
        VALUES (:id, :assignment_id, :user_id, :submitted_at, :file_url, :answer_text, :score, :feedback, :status, :graded_by, :graded_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrDuplicateSubmission
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// UpdateWork persists the owner-editable fields of a submission.
func (r *SubmissionRepository) UpdateWork(ctx context.Context, submission *models.Submission) error {
	submission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE submissions SET answer_text = :answer_text, file_url = :file_url, submitted_at = :submitted_at,
        status = :status, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

// Grade applies the grading transition in a single atomic UPDATE: score,
// feedback, grader identity, grading time and the target status change
// together or not at all.
func (r *SubmissionRepository) Grade(ctx context.Context, id string, score int, feedback *string, gradedBy string, status models.SubmissionStatus) (*models.Submission, error) {
	query := fmt.Sprintf(`UPDATE submissions
        SET score = $2, feedback = $3, graded_by = $4, graded_at = $5, status = $6, updated_at = $5
        WHERE id = $1
        RETURNING %s`, submissionColumns)
	var submission models.Submission
	now := time.Now().UTC()
	if err := r.db.GetContext(ctx, &submission, query, id, score, feedback, gradedBy, now, status); err != nil {
		return nil, err
	}
	return &submission, nil
}

// UpdateStatus changes only the status column, used for the return
// transition.
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	const query = `UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	return nil
}

// Delete removes a submission row.
func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM submissions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	return nil
}
