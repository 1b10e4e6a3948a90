// internal/app/features/gamification/routes.go
package gamification

import (
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /api/gamification.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/badges", h.ServeBadges)
	r.Get("/rewards", h.ServeRewards)
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Get("/stats", h.ServeStats)
		pr.Get("/leaderboard", h.ServeLeaderboard)
	})
	return r
}
