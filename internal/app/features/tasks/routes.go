// internal/app/features/tasks/routes.go
package tasks

import (
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/tasks.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/mine", h.ServeMine)

		pr.Get("/{taskID}", h.ServeTask)
		pr.Patch("/{taskID}", h.HandleUpdate)
		pr.Delete("/{taskID}", h.HandleDelete)

		// evidence ledger
		pr.Post("/{taskID}/evidence", h.HandleAddEvidence)
		pr.Put("/{taskID}/repo", h.HandleLinkRepo)
		pr.Post("/{taskID}/commits/sync", h.HandleSyncCommits)
	})

	return r
}

// ProjectRoutes registers the project-scoped task endpoints on a router
// already carrying a {projectID} parameter.
func ProjectRoutes(h *Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/tasks", h.ServeProjectTasks)
		r.Post("/tasks", h.HandleCreate)
		r.Get("/board", h.ServeBoard)
	}
}
