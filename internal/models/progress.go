package models

import "time"

// ProgressStatus is the derived status reported by the student progress
// projection. It is computed per read and never stored.
type ProgressStatus string

const (
	ProgressNotSubmitted ProgressStatus = "not_submitted"
	ProgressSubmitted    ProgressStatus = "submitted"
	ProgressLate         ProgressStatus = "late"
	ProgressGraded       ProgressStatus = "graded"
)

// AssignmentStats aggregates submission state for one assignment. Recomputed
// from the submissions table on every read.
type AssignmentStats struct {
	AssignmentID   string   `db:"assignment_id" json:"assignment_id"`
	CourseID       string   `db:"course_id" json:"course_id"`
	Title          string   `db:"title" json:"title"`
	TotalCount     int      `db:"total_count" json:"total_count"`
	PendingCount   int      `db:"pending_count" json:"pending_count"`
	SubmittedCount int      `db:"submitted_count" json:"submitted_count"`
	LateCount      int      `db:"late_count" json:"late_count"`
	GradedCount    int      `db:"graded_count" json:"graded_count"`
	ReturnedCount  int      `db:"returned_count" json:"returned_count"`
	AverageScore   *float64 `db:"average_score" json:"average_score,omitempty"`
}

// StudentAssignmentProgress is one row per (active enrollment x published
// assignment) with a derived progress status.
type StudentAssignmentProgress struct {
	AssignmentID    string         `db:"assignment_id" json:"assignment_id"`
	AssignmentTitle string         `db:"assignment_title" json:"assignment_title"`
	CourseID        string         `db:"course_id" json:"course_id"`
	UserID          string         `db:"user_id" json:"user_id"`
	StudentName     string         `db:"student_name" json:"student_name"`
	DueDate         time.Time      `db:"due_date" json:"due_date"`
	SubmittedAt     *time.Time     `db:"submitted_at" json:"submitted_at,omitempty"`
	Score           *int           `db:"score" json:"score,omitempty"`
	ProgressStatus  ProgressStatus `db:"progress_status" json:"progress_status"`
}
