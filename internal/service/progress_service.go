package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-coursework-api/internal/models"
	"github.com/noah-isme/lms-coursework-api/internal/policy"
	appErrors "github.com/noah-isme/lms-coursework-api/pkg/errors"
)

type statsRepo interface {
	AssignmentStats(ctx context.Context, assignmentID string) (*models.AssignmentStats, error)
	CourseAssignmentStats(ctx context.Context, courseID string) ([]models.AssignmentStats, error)
	StudentProgress(ctx context.Context, userID string) ([]models.StudentAssignmentProgress, error)
	CourseProgress(ctx context.Context, courseID string) ([]models.StudentAssignmentProgress, error)
}

type enrollmentLister interface {
	ListActiveByCourse(ctx context.Context, courseID string) ([]models.EnrollmentDetail, error)
}

// ProgressService serves the derived read projections. Every call recomputes
// from the base tables; repeated reads with no intervening writes return
// identical results.
type ProgressService struct {
	stats       statsRepo
	assignments assignmentReader
	courses     courseReader
	enrollments enrollmentLister
	logger      *zap.Logger
}

// NewProgressService constructs ProgressService.
func NewProgressService(stats statsRepo, assignments assignmentReader, courses courseReader, enrollments enrollmentLister, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{stats: stats, assignments: assignments, courses: courses, enrollments: enrollments, logger: logger}
}

// AssignmentStats returns the aggregate for one assignment, instructor and
// admin only.
func (s *ProgressService) AssignmentStats(ctx context.Context, caller policy.Caller, assignmentID string) (*models.AssignmentStats, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, storeError(err, "failed to load assignment")
	}
	if err := s.requireCourseStaff(ctx, caller, assignment.CourseID); err != nil {
		return nil, err
	}
	stats, err := s.stats.AssignmentStats(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, storeError(err, "failed to compute assignment stats")
	}
	return stats, nil
}

// CourseStats returns per-assignment aggregates for a course, instructor and
// admin only.
func (s *ProgressService) CourseStats(ctx context.Context, caller policy.Caller, courseID string) ([]models.AssignmentStats, error) {
	if err := s.requireCourseStaff(ctx, caller, courseID); err != nil {
		return nil, err
	}
	stats, err := s.stats.CourseAssignmentStats(ctx, courseID)
	if err != nil {
		return nil, storeError(err, "failed to compute course stats")
	}
	return stats, nil
}

// MyProgress returns the calling student's progress rows. Scores are only
// present on returned submissions; the projection itself redacts the rest.
func (s *ProgressService) MyProgress(ctx context.Context, caller policy.Caller) ([]models.StudentAssignmentProgress, error) {
	progress, err := s.stats.StudentProgress(ctx, caller.UserID)
	if err != nil {
		return nil, storeError(err, "failed to compute progress")
	}
	return progress, nil
}

// CourseProgress returns the per-student projection for a course, instructor
// and admin only.
func (s *ProgressService) CourseProgress(ctx context.Context, caller policy.Caller, courseID string) ([]models.StudentAssignmentProgress, error) {
	if err := s.requireCourseStaff(ctx, caller, courseID); err != nil {
		return nil, err
	}
	progress, err := s.stats.CourseProgress(ctx, courseID)
	if err != nil {
		return nil, storeError(err, "failed to compute course progress")
	}
	return progress, nil
}

// CourseRoster returns the active enrollments for a course with student
// details, instructor and admin only.
func (s *ProgressService) CourseRoster(ctx context.Context, caller policy.Caller, courseID string) ([]models.EnrollmentDetail, error) {
	if err := s.requireCourseStaff(ctx, caller, courseID); err != nil {
		return nil, err
	}
	roster, err := s.enrollments.ListActiveByCourse(ctx, courseID)
	if err != nil {
		return nil, storeError(err, "failed to load course roster")
	}
	return roster, nil
}

func (s *ProgressService) requireCourseStaff(ctx context.Context, caller policy.Caller, courseID string) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return storeError(err, "failed to load course")
	}
	if !policy.CanGradeSubmission(caller, course) {
		return appErrors.Clone(appErrors.ErrForbidden, "not the course instructor")
	}
	return nil
}
