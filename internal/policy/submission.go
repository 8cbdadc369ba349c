package policy

import "github.com/noah-isme/lms-coursework-api/internal/models"

// CanReadSubmission gates read access to a submission row: the owning
// student, the instructor of the assignment's course, or an admin.
func CanReadSubmission(caller Caller, submission *models.Submission, course *models.Course) bool {
	if submission == nil {
		return false
	}
	if caller.IsAdmin() || caller.IsInstructorOf(course) {
		return true
	}
	return submission.UserID == caller.UserID
}

// CanCreateSubmission gates creation of a submission row by a student: the
// caller must be the row owner, actively enrolled in the assignment's course,
// and the assignment must be published.
func CanCreateSubmission(caller Caller, assignment *models.Assignment, activelyEnrolled bool) bool {
	if assignment == nil {
		return false
	}
	return caller.IsStudent() &&
		activelyEnrolled &&
		assignment.Status == models.AssignmentStatusPublished
}

// CanUpdateSubmission gates mutation of an existing row. The owner may write
// only while the row is pre-grading (pending, submitted or late); the course
// instructor and admins may write at any status.
func CanUpdateSubmission(caller Caller, submission *models.Submission, course *models.Course) bool {
	if submission == nil {
		return false
	}
	if caller.IsAdmin() || caller.IsInstructorOf(course) {
		return true
	}
	return submission.UserID == caller.UserID && submission.Status.IsEditableByOwner()
}

// CanGradeSubmission gates the grading and return transitions, which are
// reserved to the course instructor and admins.
func CanGradeSubmission(caller Caller, course *models.Course) bool {
	return caller.IsAdmin() || caller.IsInstructorOf(course)
}

// CanDeleteSubmission gates row deletion, same parties as grading.
func CanDeleteSubmission(caller Caller, course *models.Course) bool {
	return caller.IsAdmin() || caller.IsInstructorOf(course)
}

// ScoreVisibleToOwner reports whether the owning student may see the score
// and feedback. A grade saved as "graded" is not yet released; only the
// explicit return transition makes it visible.
func ScoreVisibleToOwner(submission *models.Submission) bool {
	return submission != nil && submission.Status == models.SubmissionStatusReturned
}
