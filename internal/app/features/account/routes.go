// internal/app/features/account/routes.go
package account

import (
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// AuthRoutes mounts under /api/auth.
func AuthRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)
	return r
}

// MeRoutes mounts under /api/me.
func MeRoutes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/", h.ServeMe)
		pr.Put("/", h.HandleUpdateMe)
		pr.Put("/password", h.HandleChangePassword)
		pr.Get("/logins", h.ServeLogins)
	})
	return r
}
