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
	appErrors "github.com/noah-isme/lms-coursework-api/pkg/errors"
)

type mockAssignmentRepo struct {
	byID           map[string]models.Assignment
	visibleByUser  map[string][]models.Assignment
	statusUpdates  []models.AssignmentStatus
	deletedIDs     []string
	lastListFilter models.AssignmentFilter
}

func (m *mockAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	m.lastListFilter = filter
	var result []models.Assignment
	for _, a := range m.byID {
		if filter.CourseID != "" && filter.CourseID != a.CourseID {
			continue
		}
		if filter.Status != "" && filter.Status != a.Status {
			continue
		}
		result = append(result, a)
	}
	return result, len(result), nil
}

func (m *mockAssignmentRepo) ListVisibleToStudent(ctx context.Context, userID string) ([]models.Assignment, error) {
	return m.visibleByUser[userID], nil
}

func (m *mockAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := m.byID[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	if m.byID == nil {
		m.byID = make(map[string]models.Assignment)
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	m.byID[assignment.ID] = *assignment
	return nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	if _, ok := m.byID[assignment.ID]; !ok {
		return sql.ErrNoRows
	}
	m.byID[assignment.ID] = *assignment
	return nil
}

func (m *mockAssignmentRepo) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error {
	a, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.Status = status
	m.byID[id] = a
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

func newAssignmentFixture(t *testing.T) (*AssignmentService, *mockAssignmentRepo) {
	t.Helper()
	assignments := &mockAssignmentRepo{
		byID: map[string]models.Assignment{
			"as-1": {ID: "as-1", CourseID: "course-1", Title: "Essay", Type: models.AssignmentTypeAssignment, Status: models.AssignmentStatusDraft, DueDate: dueDate, MaxScore: 100},
			"as-2": {ID: "as-2", CourseID: "course-1", Title: "Quiz", Type: models.AssignmentTypeQuiz, Status: models.AssignmentStatusPublished, DueDate: dueDate, MaxScore: 20},
		},
		visibleByUser: map[string][]models.Assignment{
			"student-1": {{ID: "as-2", CourseID: "course-1", Status: models.AssignmentStatusPublished}},
		},
	}
	courses := &mockCourseReader{courses: map[string]models.Course{
		"course-1": {ID: "course-1", Title: "Algebra", Code: "MATH101", InstructorID: "teacher-1"},
		"course-2": {ID: "course-2", Title: "Biology", Code: "BIO101", InstructorID: "teacher-2"},
	}}
	enrollments := &mockEnrollmentChecker{enrolled: map[string]bool{
		"student-1:course-1": true,
	}}
	return NewAssignmentService(assignments, courses, enrollments, nil, nil), assignments
}

func TestListStudentSeesOnlyPublishedEnrolled(t *testing.T) {
	svc, _ := newAssignmentFixture(t)

	assignments, pagination, err := svc.List(context.Background(), student, models.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "as-2", assignments[0].ID)
	assert.Nil(t, pagination)
}

func TestListInstructorRequiresOwnCourse(t *testing.T) {
	svc, _ := newAssignmentFixture(t)

	_, _, err := svc.List(context.Background(), instructor, models.AssignmentFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.List(context.Background(), instructor, models.AssignmentFilter{CourseID: "course-2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	assignments, pagination, err := svc.List(context.Background(), instructor, models.AssignmentFilter{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Len(t, assignments, 2)
	assert.Equal(t, 2, pagination.TotalCount)
}

func TestGetDraftHiddenFromStudent(t *testing.T) {
	svc, _ := newAssignmentFixture(t)

	_, err := svc.Get(context.Background(), student, "as-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	got, err := svc.Get(context.Background(), student, "as-2")
	require.NoError(t, err)
	assert.Equal(t, "as-2", got.ID)
}

func TestGetArchivedHiddenFromStudent(t *testing.T) {
	svc, assignments := newAssignmentFixture(t)
	a := assignments.byID["as-2"]
	a.Status = models.AssignmentStatusArchived
	assignments.byID["as-2"] = a

	_, err := svc.Get(context.Background(), student, "as-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	got, err := svc.Get(context.Background(), instructor, "as-2")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusArchived, got.Status)
}

func TestCreateStartsAsDraft(t *testing.T) {
	svc, _ := newAssignmentFixture(t)

	created, err := svc.Create(context.Background(), instructor, CreateAssignmentRequest{
		CourseID: "course-1",
		Title:    "Midterm",
		Type:     "exam",
		DueDate:  dueDate,
		MaxScore: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusDraft, created.Status)
	assert.NotEmpty(t, created.ID)
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	svc, _ := newAssignmentFixture(t)

	_, err := svc.Create(context.Background(), instructor, CreateAssignmentRequest{
		CourseID: "course-1",
		Title:    "Broken",
		Type:     "homework",
		DueDate:  dueDate,
		MaxScore: 0,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateOnForeignCourseForbidden(t *testing.T) {
	svc, _ := newAssignmentFixture(t)

	_, err := svc.Create(context.Background(), instructor, CreateAssignmentRequest{
		CourseID: "course-2",
		Title:    "Sneaky",
		Type:     "quiz",
		DueDate:  dueDate,
		MaxScore: 10,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestPublishLifecycle(t *testing.T) {
	svc, _ := newAssignmentFixture(t)

	published, err := svc.Publish(context.Background(), instructor, "as-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusPublished, published.Status)

	archived, err := svc.Archive(context.Background(), instructor, "as-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusArchived, archived.Status)
}

func TestIllegalTransitionsRejected(t *testing.T) {
	svc, assignments := newAssignmentFixture(t)

	// draft -> archived skips published
	_, err := svc.Archive(context.Background(), instructor, "as-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// published -> published is not a step
	_, err = svc.Publish(context.Background(), instructor, "as-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// archived is terminal
	a := assignments.byID["as-2"]
	a.Status = models.AssignmentStatusArchived
	assignments.byID["as-2"] = a
	_, err = svc.Publish(context.Background(), instructor, "as-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTransitionByStudentForbidden(t *testing.T) {
	svc, _ := newAssignmentFixture(t)

	_, err := svc.Publish(context.Background(), student, "as-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUpdateKeepsStatus(t *testing.T) {
	svc, assignments := newAssignmentFixture(t)

	updated, err := svc.Update(context.Background(), admin, "as-2", UpdateAssignmentRequest{
		Title:    "Quiz v2",
		Type:     "quiz",
		DueDate:  dueDate.Add(24 * time.Hour),
		MaxScore: 25,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AssignmentStatusPublished, updated.Status)
	assert.Equal(t, "Quiz v2", assignments.byID["as-2"].Title)
}

func TestDeleteByOwnerOnly(t *testing.T) {
	svc, assignments := newAssignmentFixture(t)

	foreign := policy.Caller{UserID: "teacher-2", Role: models.RoleTeacher}
	err := svc.Delete(context.Background(), foreign, "as-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), instructor, "as-1"))
	assert.Equal(t, []string{"as-1"}, assignments.deletedIDs)
}
