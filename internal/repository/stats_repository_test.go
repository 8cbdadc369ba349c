package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-coursework-api/internal/models"
)

func TestStatsRepositoryAssignmentStats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	avg := 82.5
	rows := sqlmock.NewRows([]string{
		"assignment_id", "course_id", "title", "total_count", "pending_count",
		"submitted_count", "late_count", "graded_count", "returned_count", "average_score",
	}).AddRow("asg-1", "course-1", "Essay", 10, 1, 4, 2, 2, 3, &avg)

	mock.ExpectQuery("SELECT a.id AS assignment_id").
		WithArgs("asg-1").
		WillReturnRows(rows)

	stats, err := repo.AssignmentStats(context.Background(), "asg-1")
	require.NoError(t, err)
	require.Equal(t, 10, stats.TotalCount)
	require.Equal(t, 2, stats.LateCount)
	require.NotNil(t, stats.AverageScore)
	require.Equal(t, 82.5, *stats.AverageScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryStudentProgress(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	submitted := due.Add(24 * time.Hour)
	rows := sqlmock.NewRows([]string{
		"assignment_id", "assignment_title", "course_id", "user_id", "student_name",
		"due_date", "submitted_at", "score", "progress_status",
	}).
		AddRow("asg-1", "Essay", "course-1", "stu-1", "Student One", due, &submitted, nil, models.ProgressLate).
		AddRow("asg-2", "Quiz", "course-1", "stu-1", "Student One", due, nil, nil, models.ProgressNotSubmitted)

	mock.ExpectQuery("FROM enrollments e").
		WithArgs("stu-1").
		WillReturnRows(rows)

	progress, err := repo.StudentProgress(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, progress, 2)
	require.Equal(t, models.ProgressLate, progress[0].ProgressStatus)
	require.Nil(t, progress[0].Score, "score hidden until returned")
	require.Equal(t, models.ProgressNotSubmitted, progress[1].ProgressStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepositoryCourseProgress(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStatsRepository(db)

	due := time.Now()
	score := 85
	rows := sqlmock.NewRows([]string{
		"assignment_id", "assignment_title", "course_id", "user_id", "student_name",
		"due_date", "submitted_at", "score", "progress_status",
	}).AddRow("asg-1", "Essay", "course-1", "stu-1", "Student One", due, &due, &score, models.ProgressGraded)

	mock.ExpectQuery("FROM enrollments e").
		WithArgs("course-1").
		WillReturnRows(rows)

	progress, err := repo.CourseProgress(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, progress, 1)
	require.Equal(t, models.ProgressGraded, progress[0].ProgressStatus)
	require.NotNil(t, progress[0].Score)
	require.NoError(t, mock.ExpectationsWereMet())
}
