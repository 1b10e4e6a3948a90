// internal/app/features/admin/routes.go
package admin

import (
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/admin. Every route is admin-only.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireRole(models.RoleAdmin))
		pr.Get("/users", h.ServeUsers)
		pr.Post("/users/{userID}/active", h.HandleSetActive)
		pr.Get("/stats", h.ServeStats)
	})
	return r
}
