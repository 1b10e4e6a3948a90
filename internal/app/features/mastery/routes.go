// internal/app/features/mastery/routes.go
package mastery

import (
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/users. Teachers and admins only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(models.RoleTeacher, models.RoleAdmin))
		pr.Put("/{userID}/mastery", h.HandleSet)
		pr.Post("/mastery/import", h.HandleImport)
	})
	return r
}
