package models

import "time"

// SubmissionStatus represents the lifecycle of a submission.
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "pending"
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusLate      SubmissionStatus = "late"
	SubmissionStatusGraded    SubmissionStatus = "graded"
	SubmissionStatusReturned  SubmissionStatus = "returned"
)

// IsEditableByOwner reports whether the owning student may still mutate the
// row. Once a grading event happened the owner loses write access entirely.
func (s SubmissionStatus) IsEditableByOwner() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusSubmitted, SubmissionStatusLate:
		return true
	default:
		return false
	}
}

// Submission is a student's single record of work against one assignment.
// (assignment_id, user_id) is unique: at most one row per student per
// assignment.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	UserID       string           `db:"user_id" json:"user_id"`
	SubmittedAt  *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	FileURL      *string          `db:"file_url" json:"file_url,omitempty"`
	AnswerText   *string          `db:"answer_text" json:"answer_text,omitempty"`
	Score        *int             `db:"score" json:"score,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	Status       SubmissionStatus `db:"status" json:"status"`
	GradedBy     *string          `db:"graded_by" json:"graded_by,omitempty"`
	GradedAt     *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionDetail enriches a submission with student and assignment info.
type SubmissionDetail struct {
	Submission
	StudentName     string    `db:"student_name" json:"student_name"`
	StudentEmail    string    `db:"student_email" json:"student_email"`
	AssignmentTitle string    `db:"assignment_title" json:"assignment_title"`
	CourseID        string    `db:"course_id" json:"course_id"`
	DueDate         time.Time `db:"due_date" json:"due_date"`
}

// SubmissionFilter provides filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID string
	UserID       string
	Status       SubmissionStatus
	Page         int
	PageSize     int
}
