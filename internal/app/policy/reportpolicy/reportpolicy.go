// Package reportpolicy provides authorization policies for project access.
//
// Authorization rules:
//   - Admins can view and manage every project
//   - Teachers can only view and manage projects they own
//   - Students see a project only through the tasks they can reach
package reportpolicy

import (
	"net/http"

	"github.com/dalemusser/questhub/internal/app/system/authz"
	"github.com/dalemusser/questhub/internal/domain/models"
)

// CanManageProject reports whether the current user may edit, delete or
// add tasks to p.
func CanManageProject(r *http.Request, p models.Project) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleTeacher:
		return p.TeacherID == uid
	}
	return false
}

// CanViewReport reports whether the current user may download the
// progress report of p. The rule is the same as for management.
func CanViewReport(r *http.Request, p models.Project) bool {
	return CanManageProject(r, p)
}
