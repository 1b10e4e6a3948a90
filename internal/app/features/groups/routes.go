// internal/app/features/groups/routes.go
package groups

import (
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/groups.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Everything under /groups requires authentication
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// a student's own group
		pr.Get("/mine", h.ServeMine)

		// VIEW (teacher, admin or member)
		pr.Get("/{groupID}", h.ServeGroup)

		pr.Group(func(tr chi.Router) {
			tr.Use(sm.RequireRole(models.RoleTeacher, models.RoleAdmin))

			// LIST
			tr.Get("/", h.ServeList)
			tr.Get("/unassigned", h.ServeUnassigned)

			// CREATE / EDIT / DELETE
			tr.Post("/", h.HandleCreate)
			tr.Put("/{groupID}", h.HandleUpdate)
			tr.Delete("/{groupID}", h.HandleDelete)

			// BALANCE (preview, then commit)
			tr.Post("/balance", h.HandleBalancePreview)
			tr.Post("/balance/commit", h.HandleBalanceCommit)
		})
	})

	return r
}
