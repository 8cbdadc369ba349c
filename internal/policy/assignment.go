package policy

import "github.com/noah-isme/lms-coursework-api/internal/models"

// CanReadAssignment gates read access to a single assignment row.
// Students see only published assignments in courses they are actively
// enrolled in; archived assignments are hidden from students. The course
// instructor and admins see every status.
func CanReadAssignment(caller Caller, assignment *models.Assignment, course *models.Course, activelyEnrolled bool) bool {
	if assignment == nil {
		return false
	}
	if caller.IsAdmin() || caller.IsInstructorOf(course) {
		return true
	}
	return caller.IsStudent() &&
		activelyEnrolled &&
		assignment.Status == models.AssignmentStatusPublished
}

// CanWriteAssignment gates create, update and delete of assignments:
// the owning course's instructor or an admin.
func CanWriteAssignment(caller Caller, course *models.Course) bool {
	return caller.IsAdmin() || caller.IsInstructorOf(course)
}

// StudentAssignmentVisible is the list-filter form of CanReadAssignment for
// student callers: repositories apply the equivalent SQL filter server-side,
// and services re-check loaded rows with this predicate.
func StudentAssignmentVisible(assignment *models.Assignment, activelyEnrolled bool) bool {
	return assignment != nil &&
		activelyEnrolled &&
		assignment.Status == models.AssignmentStatusPublished
}
