// internal/app/features/projects/routes.go
package projects

import (
	"github.com/dalemusser/questhub/internal/app/features/tasks"
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/projects. The task endpoints scoped to a project
// are served by the tasks feature.
func Routes(h *Handler, th *tasks.Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.With(sm.RequireRole(models.RoleTeacher, models.RoleAdmin)).Post("/", h.HandleCreate)

		pr.Route("/{projectID}", func(p chi.Router) {
			p.Get("/", h.ServeProject)
			p.Patch("/", h.HandleUpdate)
			p.Delete("/", h.HandleDelete)

			p.Get("/report.csv", h.ServeReport)
			p.Post("/apply-template", h.HandleApplyTemplate)

			tasks.ProjectRoutes(th)(p)
		})
	})

	return r
}
