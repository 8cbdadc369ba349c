package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-coursework-api/internal/models"
)

func TestEnrollmentRepositoryIsActivelyEnrolled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("stu-1", "course-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	enrolled, err := repo.IsActivelyEnrolled(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	require.True(t, enrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryIsActivelyEnrolledMiss(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM enrollments").
		WithArgs("stu-1", "course-2", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	enrolled, err := repo.IsActivelyEnrolled(context.Background(), "stu-1", "course-2")
	require.NoError(t, err)
	require.False(t, enrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListActiveByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_id", "user_id", "status", "enrolled_at", "student_name", "student_email", "course_title"}).
		AddRow("enr-1", "course-1", "stu-1", models.EnrollmentStatusActive, time.Now(), "Student One", "one@example.com", "Algorithms")
	mock.ExpectQuery("SELECT e.id, e.course_id").
		WithArgs("course-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollments, err := repo.ListActiveByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	require.Equal(t, "Student One", enrollments[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}
