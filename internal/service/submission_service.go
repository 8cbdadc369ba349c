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
	"github.com/noah-isme/lms-coursework-api/internal/repository"
	appErrors "github.com/noah-isme/lms-coursework-api/pkg/errors"
)

type submissionRepo interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByAssignmentAndUser(ctx context.Context, assignmentID, userID string) (*models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	UpdateWork(ctx context.Context, submission *models.Submission) error
	Grade(ctx context.Context, id string, score int, feedback *string, gradedBy string, status models.SubmissionStatus) (*models.Submission, error)
	UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus) error
	Delete(ctx context.Context, id string) error
}

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

// SubmitWorkRequest is the payload for creating or updating a student's
// submission.
type SubmitWorkRequest struct {
	AnswerText *string `json:"answer_text"`
	FileURL    *string `json:"file_url"`
}

// GradeSubmissionRequest is the grading payload. Score is on the percentage
// scale, 0..100, regardless of the assignment's max_score.
type GradeSubmissionRequest struct {
	Score    *int    `json:"score" validate:"required,gte=0,lte=100"`
	Feedback *string `json:"feedback"`
	Release  bool    `json:"release"`
}

// RecordGradeRequest lets an instructor record a grade for a student who has
// no submission row of their own.
type RecordGradeRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required"`
	UserID       string  `json:"user_id" validate:"required"`
	Score        *int    `json:"score" validate:"required,gte=0,lte=100"`
	Feedback     *string `json:"feedback"`
}

// SubmissionService orchestrates the submission lifecycle: student create and
// edit, instructor grading and release. Every operation evaluates the policy
// predicates against the injected caller before touching the repositories.
type SubmissionService struct {
	submissions submissionRepo
	assignments assignmentReader
	courses     courseReader
	enrollments enrollmentChecker
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(submissions submissionRepo, assignments assignmentReader, courses courseReader, enrollments enrollmentChecker, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		submissions: submissions,
		assignments: assignments,
		courses:     courses,
		enrollments: enrollments,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns submissions for an assignment. Students only ever see their
// own rows, with unreleased grades redacted.
func (s *SubmissionService) List(ctx context.Context, caller policy.Caller, filter models.SubmissionFilter) ([]models.SubmissionDetail, *models.Pagination, error) {
	if caller.IsStudent() {
		filter.UserID = caller.UserID
	} else if !caller.IsAdmin() {
		if filter.AssignmentID == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "assignment_id is required")
		}
		_, course, err := s.loadAssignmentWithCourse(ctx, filter.AssignmentID)
		if err != nil {
			return nil, nil, err
		}
		if !policy.CanGradeSubmission(caller, course) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "not the course instructor")
		}
	}

	submissions, total, err := s.submissions.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list submissions")
	}
	if caller.IsStudent() {
		for i := range submissions {
			redactUnreleased(&submissions[i].Submission)
		}
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return submissions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one submission if the read policy allows it.
func (s *SubmissionService) Get(ctx context.Context, caller policy.Caller, id string) (*models.Submission, error) {
	submission, course, err := s.loadSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanReadSubmission(caller, submission, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submission not accessible")
	}
	if caller.IsStudent() && submission.UserID == caller.UserID {
		redactUnreleased(submission)
	}
	return submission, nil
}

// Submit creates the caller's submission row for an assignment. The unique
// (assignment_id, user_id) constraint is the final arbiter: a concurrent
// duplicate surfaces as a conflict, never a silent overwrite.
func (s *SubmissionService) Submit(ctx context.Context, caller policy.Caller, assignmentID string, req SubmitWorkRequest) (*models.Submission, error) {
	assignment, _, err := s.loadAssignmentWithCourse(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.enrollments.IsActivelyEnrolled(ctx, caller.UserID, assignment.CourseID)
	if err != nil {
		return nil, storeError(err, "failed to check enrollment")
	}
	if !policy.CanCreateSubmission(caller, assignment, enrolled) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submission not allowed")
	}

	submittedAt := s.now()
	submission := &models.Submission{
		AssignmentID: assignmentID,
		UserID:       caller.UserID,
		SubmittedAt:  &submittedAt,
		AnswerText:   req.AnswerText,
		FileURL:      req.FileURL,
		Status:       submitStatus(submittedAt, assignment.DueDate),
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "assignment_id, user_id: submission already exists")
		}
		return nil, storeError(err, "failed to create submission")
	}
	s.logger.Info("submission created",
		zap.String("submission_id", submission.ID),
		zap.String("assignment_id", assignmentID),
		zap.String("user_id", caller.UserID),
		zap.String("status", string(submission.Status)))
	return submission, nil
}

// UpdateWork replaces the caller's submitted work. Owners may do this only
// while the row is pre-grading; instructors and admins at any time.
func (s *SubmissionService) UpdateWork(ctx context.Context, caller policy.Caller, id string, req SubmitWorkRequest) (*models.Submission, error) {
	submission, course, err := s.loadSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanUpdateSubmission(caller, submission, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submission can no longer be modified")
	}

	assignment, err := s.assignments.FindByID(ctx, submission.AssignmentID)
	if err != nil {
		return nil, storeError(err, "failed to load assignment")
	}

	submission.AnswerText = req.AnswerText
	submission.FileURL = req.FileURL
	if submission.Status.IsEditableByOwner() {
		// Resubmission refreshes the timestamp, which may flip the row to
		// late once the due date has passed.
		submittedAt := s.now()
		submission.SubmittedAt = &submittedAt
		submission.Status = submitStatus(submittedAt, assignment.DueDate)
	}
	if err := s.submissions.UpdateWork(ctx, submission); err != nil {
		return nil, storeError(err, "failed to update submission")
	}
	return submission, nil
}

// Grade applies the grading transition: score, feedback, grader identity and
// the status change land in one atomic row update. Release jumps straight to
// returned.
func (s *SubmissionService) Grade(ctx context.Context, caller policy.Caller, id string, req GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "score: must be between 0 and 100")
	}
	_, course, err := s.loadSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanGradeSubmission(caller, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor may grade")
	}

	status := models.SubmissionStatusGraded
	if req.Release {
		status = models.SubmissionStatusReturned
	}
	graded, err := s.submissions.Grade(ctx, id, *req.Score, req.Feedback, caller.UserID, status)
	if err != nil {
		return nil, storeError(err, "failed to grade submission")
	}
	s.logger.Info("submission graded",
		zap.String("submission_id", id),
		zap.Int("score", *req.Score),
		zap.String("graded_by", caller.UserID),
		zap.String("status", string(status)))
	return graded, nil
}

// Return releases a saved grade to the student: graded -> returned. It is a
// distinct instructor action, never automatic.
func (s *SubmissionService) Return(ctx context.Context, caller policy.Caller, id string) (*models.Submission, error) {
	submission, course, err := s.loadSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanGradeSubmission(caller, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor may return grades")
	}
	if submission.Status != models.SubmissionStatusGraded {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status: only graded submissions can be returned")
	}
	if err := s.submissions.UpdateStatus(ctx, id, models.SubmissionStatusReturned); err != nil {
		return nil, storeError(err, "failed to return submission")
	}
	submission.Status = models.SubmissionStatusReturned
	return submission, nil
}

// RecordGrade lets an instructor grade a student who never submitted: the
// row is created already graded in a single insert.
func (s *SubmissionService) RecordGrade(ctx context.Context, caller policy.Caller, req RecordGradeRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	assignment, course, err := s.loadAssignmentWithCourse(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	if !policy.CanGradeSubmission(caller, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor may grade")
	}
	enrolled, err := s.enrollments.IsActivelyEnrolled(ctx, req.UserID, assignment.CourseID)
	if err != nil {
		return nil, storeError(err, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user_id: student is not actively enrolled")
	}

	if existing, err := s.submissions.FindByAssignmentAndUser(ctx, req.AssignmentID, req.UserID); err == nil {
		return s.Grade(ctx, caller, existing.ID, GradeSubmissionRequest{Score: req.Score, Feedback: req.Feedback})
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, storeError(err, "failed to load submission")
	}

	now := s.now()
	submission := &models.Submission{
		AssignmentID: req.AssignmentID,
		UserID:       req.UserID,
		Score:        req.Score,
		Feedback:     req.Feedback,
		Status:       models.SubmissionStatusGraded,
		GradedBy:     &caller.UserID,
		GradedAt:     &now,
	}
	if err := s.submissions.Create(ctx, submission); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			// Lost the race against the student's own create.
			return nil, appErrors.Clone(appErrors.ErrConflict, "assignment_id, user_id: submission already exists")
		}
		return nil, storeError(err, "failed to record grade")
	}
	return submission, nil
}

// Delete removes a submission row.
func (s *SubmissionService) Delete(ctx context.Context, caller policy.Caller, id string) error {
	_, course, err := s.loadSubmission(ctx, id)
	if err != nil {
		return err
	}
	if !policy.CanDeleteSubmission(caller, course) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the course instructor may delete submissions")
	}
	if err := s.submissions.Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete submission")
	}
	return nil
}

func (s *SubmissionService) loadSubmission(ctx context.Context, id string) (*models.Submission, *models.Course, error) {
	submission, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, nil, storeError(err, "failed to load submission")
	}
	_, course, err := s.loadAssignmentWithCourse(ctx, submission.AssignmentID)
	if err != nil {
		return nil, nil, err
	}
	return submission, course, nil
}

func (s *SubmissionService) loadAssignmentWithCourse(ctx context.Context, assignmentID string) (*models.Assignment, *models.Course, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, nil, storeError(err, "failed to load assignment")
	}
	course, err := s.courses.FindByID(ctx, assignment.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, storeError(err, "failed to load course")
	}
	return assignment, course, nil
}

// submitStatus derives the stored status at submit time: strictly after the
// due date is late.
func submitStatus(submittedAt, dueDate time.Time) models.SubmissionStatus {
	if submittedAt.After(dueDate) {
		return models.SubmissionStatusLate
	}
	return models.SubmissionStatusSubmitted
}

// redactUnreleased hides grading output from the owner until the submission
// has been returned.
func redactUnreleased(submission *models.Submission) {
	if policy.ScoreVisibleToOwner(submission) {
		return
	}
	submission.Score = nil
	submission.Feedback = nil
	submission.GradedBy = nil
	submission.GradedAt = nil
}
