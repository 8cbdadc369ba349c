package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-coursework-api/internal/models"
	"github.com/noah-isme/lms-coursework-api/internal/policy"
	"github.com/noah-isme/lms-coursework-api/internal/repository"
	appErrors "github.com/noah-isme/lms-coursework-api/pkg/errors"
)

type mockSubmissionRepo struct {
	byID       map[string]models.Submission
	gradeCalls int
}

func (m *mockSubmissionRepo) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	var result []models.SubmissionDetail
	for _, s := range m.byID {
		if filter.AssignmentID != "" && filter.AssignmentID != s.AssignmentID {
			continue
		}
		if filter.UserID != "" && filter.UserID != s.UserID {
			continue
		}
		result = append(result, models.SubmissionDetail{Submission: s})
	}
	return result, len(result), nil
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if s, ok := m.byID[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) FindByAssignmentAndUser(ctx context.Context, assignmentID, userID string) (*models.Submission, error) {
	for _, s := range m.byID {
		if s.AssignmentID == assignmentID && s.UserID == userID {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	if m.byID == nil {
		m.byID = make(map[string]models.Submission)
	}
	for _, s := range m.byID {
		if s.AssignmentID == submission.AssignmentID && s.UserID == submission.UserID {
			return repository.ErrDuplicateSubmission
		}
	}
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	m.byID[submission.ID] = *submission
	return nil
}

func (m *mockSubmissionRepo) UpdateWork(ctx context.Context, submission *models.Submission) error {
	m.byID[submission.ID] = *submission
	return nil
}

func (m *mockSubmissionRepo) Grade(ctx context.Context, id string, score int, feedback *string, gradedBy string, status models.SubmissionStatus) (*models.Submission, error) {
	m.gradeCalls++
	s, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	now := time.Now().UTC()
	s.Score = &score
	s.Feedback = feedback
	s.GradedBy = &gradedBy
	s.GradedAt = &now
	s.Status = status
	m.byID[id] = s
	return &s, nil
}

func (m *mockSubmissionRepo) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error {
	s, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Status = status
	m.byID[id] = s
	return nil
}

func (m *mockSubmissionRepo) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

type mockAssignmentReader struct {
	assignments map[string]models.Assignment
}

func (m *mockAssignmentReader) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.assignments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses map[string]models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentChecker struct {
	enrolled map[string]bool
}

func (m *mockEnrollmentChecker) IsActivelyEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	return m.enrolled[userID+":"+courseID], nil
}

var (
	dueDate    = time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	student    = policy.Caller{UserID: "student-1", Role: models.RoleStudent}
	instructor = policy.Caller{UserID: "teacher-1", Role: models.RoleTeacher}
	admin      = policy.Caller{UserID: "admin-1", Role: models.RoleAdmin}
)

func newSubmissionFixture(t *testing.T) (*SubmissionService, *mockSubmissionRepo) {
	t.Helper()
	submissions := &mockSubmissionRepo{byID: make(map[string]models.Submission)}
	assignments := &mockAssignmentReader{assignments: map[string]models.Assignment{
		"as-1": {ID: "as-1", CourseID: "course-1", Title: "Essay", Type: models.AssignmentTypeAssignment, Status: models.AssignmentStatusPublished, DueDate: dueDate, MaxScore: 100},
		"as-2": {ID: "as-2", CourseID: "course-1", Title: "Draft quiz", Type: models.AssignmentTypeQuiz, Status: models.AssignmentStatusDraft, DueDate: dueDate, MaxScore: 10},
	}}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Title: "Algebra", Code: "MATH101", InstructorID: "teacher-1"},
	}}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{
		"student-1:course-1": true,
		"student-2:course-1": true,
	}}
	svc := NewSubmissionService(submissions, assignments, courses, enrollments, nil, nil)
	return svc, submissions
}

func TestSubmitOnTime(t *testing.T) {
	svc, _ := newSubmissionFixture(t)
	svc.now = func() time.Time { return dueDate.Add(-time.Hour) }

	answer := "my answer"
	submission, err := svc.Submit(context.Background(), student, "as-1", SubmitWorkRequest{AnswerText: &answer})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusSubmitted, submission.Status)
	assert.Equal(t, "student-1", submission.UserID)
	require.NotNil(t, submission.SubmittedAt)
}

func TestSubmitAfterDueDateIsLate(t *testing.T) {
	svc, _ := newSubmissionFixture(t)
	svc.now = func() time.Time { return dueDate.Add(time.Minute) }

	submission, err := svc.Submit(context.Background(), student, "as-1", SubmitWorkRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusLate, submission.Status)
}

func TestSubmitDuplicateConflicts(t *testing.T) {
	svc, _ := newSubmissionFixture(t)
	svc.now = func() time.Time { return dueDate.Add(-time.Hour) }

	_, err := svc.Submit(context.Background(), student, "as-1", SubmitWorkRequest{})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), student, "as-1", SubmitWorkRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSubmitRequiresActiveEnrollment(t *testing.T) {
	svc, _ := newSubmissionFixture(t)
	outsider := policy.Caller{UserID: "student-9", Role: models.RoleStudent}

	_, err := svc.Submit(context.Background(), outsider, "as-1", SubmitWorkRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitToDraftAssignmentForbidden(t *testing.T) {
	svc, _ := newSubmissionFixture(t)

	_, err := svc.Submit(context.Background(), student, "as-2", SubmitWorkRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubmitUnknownAssignmentNotFound(t *testing.T) {
	svc, _ := newSubmissionFixture(t)

	_, err := svc.Submit(context.Background(), student, "nope", SubmitWorkRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGetRedactsUnreleasedGrade(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	score := 85
	feedback := "good work"
	submittedAt := dueDate.Add(-time.Hour)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusGraded, Score: &score, Feedback: &feedback,
		SubmittedAt: &submittedAt,
	}

	got, err := svc.Get(context.Background(), student, "sub-1")
	require.NoError(t, err)
	assert.Nil(t, got.Score)
	assert.Nil(t, got.Feedback)
	assert.NotNil(t, got.SubmittedAt)
}

func TestGetShowsReleasedGradeToOwner(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	score := 85
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusReturned, Score: &score,
	}

	got, err := svc.Get(context.Background(), student, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, 85, *got.Score)
}

func TestGetInstructorSeesUnreleasedGrade(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	score := 42
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusGraded, Score: &score,
	}

	got, err := svc.Get(context.Background(), instructor, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, got.Score)
	assert.Equal(t, 42, *got.Score)
}

func TestGetOtherStudentsSubmissionForbidden(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-2",
		Status: models.SubmissionStatusSubmitted,
	}

	_, err := svc.Get(context.Background(), student, "sub-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUpdateWorkRefreshesLateness(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submittedAt := dueDate.Add(-2 * time.Hour)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusSubmitted, SubmittedAt: &submittedAt,
	}
	svc.now = func() time.Time { return dueDate.Add(time.Hour) }

	answer := "revised"
	got, err := svc.UpdateWork(context.Background(), student, "sub-1", SubmitWorkRequest{AnswerText: &answer})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusLate, got.Status)
}

func TestUpdateWorkAfterGradingForbiddenForOwner(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusGraded,
	}

	_, err := svc.UpdateWork(context.Background(), student, "sub-1", SubmitWorkRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestGradeScoreOutOfRange(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusSubmitted,
	}

	score := 150
	_, err := svc.Grade(context.Background(), instructor, "sub-1", GradeSubmissionRequest{Score: &score})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeSetsAllFieldsAtomically(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusSubmitted,
	}

	score := 90
	feedback := "solid"
	got, err := svc.Grade(context.Background(), instructor, "sub-1", GradeSubmissionRequest{Score: &score, Feedback: &feedback})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusGraded, got.Status)
	require.NotNil(t, got.Score)
	assert.Equal(t, 90, *got.Score)
	require.NotNil(t, got.GradedBy)
	assert.Equal(t, "teacher-1", *got.GradedBy)
	assert.NotNil(t, got.GradedAt)
}

func TestGradeWithReleaseReturnsImmediately(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusLate,
	}

	score := 70
	got, err := svc.Grade(context.Background(), instructor, "sub-1", GradeSubmissionRequest{Score: &score, Release: true})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusReturned, got.Status)
}

func TestGradeByStudentForbidden(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusSubmitted,
	}

	score := 50
	_, err := svc.Grade(context.Background(), student, "sub-1", GradeSubmissionRequest{Score: &score})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReturnOnlyFromGraded(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusSubmitted,
	}

	_, err := svc.Return(context.Background(), instructor, "sub-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusGraded,
	}
	got, err := svc.Return(context.Background(), instructor, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusReturned, got.Status)
}

func TestRecordGradeCreatesGradedRow(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)

	score := 0
	got, err := svc.RecordGrade(context.Background(), instructor, RecordGradeRequest{
		AssignmentID: "as-1", UserID: "student-2", Score: &score,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusGraded, got.Status)
	assert.Nil(t, got.SubmittedAt)
	require.NotNil(t, got.GradedBy)
	assert.Equal(t, "teacher-1", *got.GradedBy)
	assert.Len(t, submissions.byID, 1)
}

func TestRecordGradeUpdatesExistingSubmission(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-2",
		Status: models.SubmissionStatusSubmitted,
	}

	score := 65
	got, err := svc.RecordGrade(context.Background(), instructor, RecordGradeRequest{
		AssignmentID: "as-1", UserID: "student-2", Score: &score,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", got.ID)
	assert.Equal(t, 1, submissions.gradeCalls)
	assert.Len(t, submissions.byID, 1)
}

func TestRecordGradeRequiresEnrollment(t *testing.T) {
	svc, _ := newSubmissionFixture(t)

	score := 10
	_, err := svc.RecordGrade(context.Background(), instructor, RecordGradeRequest{
		AssignmentID: "as-1", UserID: "student-9", Score: &score,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteByStudentForbidden(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusSubmitted,
	}

	err := svc.Delete(context.Background(), student, "sub-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), admin, "sub-1"))
	assert.Empty(t, submissions.byID)
}

func TestListForcesStudentToOwnRows(t *testing.T) {
	svc, submissions := newSubmissionFixture(t)
	score := 55
	submissions.byID["sub-1"] = models.Submission{
		ID: "sub-1", AssignmentID: "as-1", UserID: "student-1",
		Status: models.SubmissionStatusGraded, Score: &score,
	}
	submissions.byID["sub-2"] = models.Submission{
		ID: "sub-2", AssignmentID: "as-1", UserID: "student-2",
		Status: models.SubmissionStatusSubmitted,
	}

	rows, pagination, err := svc.List(context.Background(), student, models.SubmissionFilter{UserID: "student-2"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "student-1", rows[0].UserID)
	assert.Nil(t, rows[0].Score)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestListInstructorRequiresAssignmentScope(t *testing.T) {
	svc, _ := newSubmissionFixture(t)

	_, _, err := svc.List(context.Background(), instructor, models.SubmissionFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.List(context.Background(), instructor, models.SubmissionFilter{AssignmentID: "as-1"})
	require.NoError(t, err)
}
