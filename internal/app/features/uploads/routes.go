// internal/app/features/uploads/routes.go
package uploads

import (
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/uploads.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.HandleUpload)
		pr.Delete("/{storageID}", h.HandleDelete)
	})
	return r
}
