package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-coursework-api/internal/models"
	"github.com/noah-isme/lms-coursework-api/internal/policy"
	appErrors "github.com/noah-isme/lms-coursework-api/pkg/errors"
)

type assignmentRepo interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
	ListVisibleToStudent(ctx context.Context, userID string) ([]models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error
	Delete(ctx context.Context, id string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentChecker interface {
	IsActivelyEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

// CreateAssignmentRequest is the payload for creating an assignment.
type CreateAssignmentRequest struct {
	CourseID     string    `json:"course_id" validate:"required"`
	QuizID       *string   `json:"quiz_id"`
	Title        string    `json:"title" validate:"required"`
	Description  *string   `json:"description"`
	Type         string    `json:"type" validate:"required,oneof=quiz assignment exam"`
	DueDate      time.Time `json:"due_date" validate:"required"`
	MaxScore     int       `json:"max_score" validate:"required,gt=0"`
	Instructions *string   `json:"instructions"`
}

// UpdateAssignmentRequest carries mutable assignment fields.
type UpdateAssignmentRequest struct {
	Title        string    `json:"title" validate:"required"`
	Description  *string   `json:"description"`
	Type         string    `json:"type" validate:"required,oneof=quiz assignment exam"`
	DueDate      time.Time `json:"due_date" validate:"required"`
	MaxScore     int       `json:"max_score" validate:"required,gt=0"`
	Instructions *string   `json:"instructions"`
	QuizID       *string   `json:"quiz_id"`
}

// AssignmentService orchestrates assignment lifecycle flows behind the
// authorization policies.
type AssignmentService struct {
	assignments assignmentRepo
	courses     courseReader
	enrollments enrollmentChecker
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(assignments assignmentRepo, courses courseReader, enrollments enrollmentChecker, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		courses:     courses,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger,
	}
}

// List returns assignments visible to the caller. Students get the published
// assignments of their active enrollments; instructors and admins get the
// filtered table view, instructors restricted to courses they own.
func (s *AssignmentService) List(ctx context.Context, caller policy.Caller, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error) {
	if caller.IsStudent() {
		assignments, err := s.assignments.ListVisibleToStudent(ctx, caller.UserID)
		if err != nil {
			return nil, nil, storeError(err, "failed to list assignments")
		}
		return assignments, nil, nil
	}

	if !caller.IsAdmin() {
		if filter.CourseID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "course_id is required")
		}
		course, err := s.loadCourse(ctx, filter.CourseID)
		if err != nil {
			return nil, nil, err
		}
		if !policy.CanWriteAssignment(caller, course) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "not the course instructor")
		}
	}

	assignments, total, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list assignments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return assignments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one assignment if the read policy allows it.
func (s *AssignmentService) Get(ctx context.Context, caller policy.Caller, id string) (*models.Assignment, error) {
	assignment, course, err := s.loadAssignment(ctx, id)
	if err != nil {
		return nil, err
	}

	enrolled := false
	if caller.IsStudent() {
		enrolled, err = s.enrollments.IsActivelyEnrolled(ctx, caller.UserID, assignment.CourseID)
		if err != nil {
			return nil, storeError(err, "failed to check enrollment")
		}
	}
	if !policy.CanReadAssignment(caller, assignment, course, enrolled) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment not accessible")
	}
	return assignment, nil
}

// Create inserts a new assignment in draft status.
func (s *AssignmentService) Create(ctx context.Context, caller policy.Caller, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	course, err := s.loadCourse(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !policy.CanWriteAssignment(caller, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the course instructor")
	}

	assignment := &models.Assignment{
		CourseID:     req.CourseID,
		QuizID:       req.QuizID,
		Title:        req.Title,
		Description:  req.Description,
		Type:         models.AssignmentType(req.Type),
		DueDate:      req.DueDate,
		MaxScore:     req.MaxScore,
		Instructions: req.Instructions,
		Status:       models.AssignmentStatusDraft,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, storeError(err, "failed to create assignment")
	}
	s.logger.Info("assignment created",
		zap.String("assignment_id", assignment.ID),
		zap.String("course_id", assignment.CourseID),
		zap.String("created_by", caller.UserID))
	return assignment, nil
}

// Update persists mutable fields of an assignment.
func (s *AssignmentService) Update(ctx context.Context, caller policy.Caller, id string, req UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	assignment, course, err := s.loadAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanWriteAssignment(caller, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the course instructor")
	}

	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.Type = models.AssignmentType(req.Type)
	assignment.DueDate = req.DueDate
	assignment.MaxScore = req.MaxScore
	assignment.Instructions = req.Instructions
	assignment.QuizID = req.QuizID
	if err := s.assignments.Update(ctx, assignment); err != nil {
		return nil, storeError(err, "failed to update assignment")
	}
	return assignment, nil
}

// Publish advances draft -> published.
func (s *AssignmentService) Publish(ctx context.Context, caller policy.Caller, id string) (*models.Assignment, error) {
	return s.transition(ctx, caller, id, models.AssignmentStatusPublished)
}

// Archive advances published -> archived.
func (s *AssignmentService) Archive(ctx context.Context, caller policy.Caller, id string) (*models.Assignment, error) {
	return s.transition(ctx, caller, id, models.AssignmentStatusArchived)
}

func (s *AssignmentService) transition(ctx context.Context, caller policy.Caller, id string, next models.AssignmentStatus) (*models.Assignment, error) {
	assignment, course, err := s.loadAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanWriteAssignment(caller, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the course instructor")
	}
	if !assignment.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status: illegal transition from "+string(assignment.Status)+" to "+string(next))
	}
	if err := s.assignments.UpdateStatus(ctx, id, next); err != nil {
		return nil, storeError(err, "failed to update assignment status")
	}
	assignment.Status = next
	return assignment, nil
}

// Delete removes the assignment; submission rows cascade.
func (s *AssignmentService) Delete(ctx context.Context, caller policy.Caller, id string) error {
	_, course, err := s.loadAssignment(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanWriteAssignment(caller, course) {
		return appErrors.Clone(appErrors.ErrForbidden, "not the course instructor")
	}
	if err := s.assignments.Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete assignment")
	}
	s.logger.Info("assignment deleted", zap.String("assignment_id", id), zap.String("deleted_by", caller.UserID))
	return nil
}

func (s *AssignmentService) loadAssignment(ctx context.Context, id string) (*models.Assignment, *models.Course, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, nil, storeError(err, "failed to load assignment")
	}
	course, err := s.loadCourse(ctx, assignment.CourseID)
	if err != nil {
		return nil, nil, err
	}
	return assignment, course, nil
}

func (s *AssignmentService) loadCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storeError(err, "failed to load course")
	}
	return course, nil
}
