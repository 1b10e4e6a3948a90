// internal/app/policy/grouppolicy/grouppolicy.go
package grouppolicy

import (
	"net/http"

	"github.com/dalemusser/questhub/internal/app/system/authz"
	"github.com/dalemusser/questhub/internal/domain/models"
)

// CanManageGroup reports whether the current request user can edit or
// delete the group:
//   - Admins always can
//   - Teachers can if they created the group
func CanManageGroup(r *http.Request, g models.Group) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleTeacher && g.TeacherID == uid
}

// CanBindProject reports whether the current request user may bind a group
// to the project. Teachers may only bind their own projects.
func CanBindProject(r *http.Request, p models.Project) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleTeacher && p.TeacherID == uid
}
