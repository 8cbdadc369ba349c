package models

import "time"

// AssignmentType distinguishes gradable units of work.
type AssignmentType string

const (
	AssignmentTypeQuiz       AssignmentType = "quiz"
	AssignmentTypeAssignment AssignmentType = "assignment"
	AssignmentTypeExam       AssignmentType = "exam"
)

// AssignmentStatus represents the publication lifecycle of an assignment.
// Transitions are forward-only: draft -> published -> archived.
type AssignmentStatus string

const (
	AssignmentStatusDraft     AssignmentStatus = "draft"
	AssignmentStatusPublished AssignmentStatus = "published"
	AssignmentStatusArchived  AssignmentStatus = "archived"
)

// Assignment is a gradable unit of work belonging to a course.
type Assignment struct {
	ID           string           `db:"id" json:"id"`
	CourseID     string           `db:"course_id" json:"course_id"`
	QuizID       *string          `db:"quiz_id" json:"quiz_id,omitempty"`
	Title        string           `db:"title" json:"title"`
	Description  *string          `db:"description" json:"description,omitempty"`
	Type         AssignmentType   `db:"type" json:"type"`
	DueDate      time.Time        `db:"due_date" json:"due_date"`
	MaxScore     int              `db:"max_score" json:"max_score"`
	Instructions *string          `db:"instructions" json:"instructions,omitempty"`
	Status       AssignmentStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// CanTransitionTo reports whether the status change is a legal forward step.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	switch s {
	case AssignmentStatusDraft:
		return next == AssignmentStatusPublished
	case AssignmentStatusPublished:
		return next == AssignmentStatusArchived
	default:
		return false
	}
}

// AssignmentFilter provides filters for listing assignments.
type AssignmentFilter struct {
	CourseID  string
	Type      AssignmentType
	Status    AssignmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
