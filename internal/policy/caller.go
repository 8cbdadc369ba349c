// Package policy contains the row-level authorization rules for assignments
// and submissions. Every rule is a pure predicate over the calling identity,
// the target row and its joined parent rows; there is no I/O and no hidden
// state, so each rule can be re-evaluated on every request and unit-tested in
// isolation. Services evaluate these predicates at the data-access boundary
// before touching the repositories.
package policy

import "github.com/noah-isme/lms-coursework-api/internal/models"

// Caller identifies the authenticated principal for a single request. It is
// built from the verified JWT claims and passed explicitly into every policy
// evaluation; nothing in this package reads ambient session state.
type Caller struct {
	UserID string
	Role   models.UserRole
	Email  string
}

// IsAdmin reports whether the caller holds the global admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// IsInstructorOf reports whether the caller owns the course.
func (c Caller) IsInstructorOf(course *models.Course) bool {
	return course != nil && c.Role == models.RoleTeacher && course.InstructorID == c.UserID
}

// IsStudent reports whether the caller holds the student role.
func (c Caller) IsStudent() bool {
	return c.Role == models.RoleStudent
}

// FromClaims builds a Caller from verified JWT claims.
func FromClaims(claims *models.JWTClaims) Caller {
	if claims == nil {
		return Caller{}
	}
	return Caller{UserID: claims.UserID, Role: claims.Role, Email: claims.Email}
}
