// internal/app/features/gamification/gamification.go
package gamification

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/gamify"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/authz"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/paging"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LeaderboardSize is the default number of leaderboard entries.
const LeaderboardSize = 10

type statsResponse struct {
	UserID         primitive.ObjectID  `json:"user_id"`
	Name           string              `json:"name"`
	Progress       gamify.Progress     `json:"progress"`
	Badges         []gamify.Badge      `json:"badges"`
	CompletedTasks int64               `json:"completed_tasks"`
	NextReward     *gamify.LevelReward `json:"next_reward,omitempty"`
}

type leaderEntry struct {
	Rank   int                `json:"rank"`
	UserID primitive.ObjectID `json:"user_id"`
	Name   string             `json:"name"`
	XP     int                `json:"xp"`
	Level  int                `json:"level"`
	Badges int                `json:"badges"`
}

// ServeStats handles GET /api/gamification/stats. Students see their own
// numbers; teachers and admins may pass ?user_id= to look at a student.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	target := a.ID
	if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonutil.Error(w, r, h.Log, apierr.Invalid("bad user id", nil))
			return
		}
		if id != a.ID && authz.IsStudent(r) {
			jsonutil.Error(w, r, h.Log, apierr.Forbidden("students can only view their own stats"))
			return
		}
		target = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := userstore.New(h.DB).GetByID(ctx, target)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			err = apierr.NotFound("user not found")
		}
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	done, err := taskstore.New(h.DB).CountCompletedByAssignee(ctx, u.ID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	badges := make([]gamify.Badge, 0, len(u.Badges))
	for _, id := range u.Badges {
		if b, ok := gamify.BadgeByID(id); ok {
			badges = append(badges, b)
		}
	}
	resp := statsResponse{
		UserID:         u.ID,
		Name:           u.FullName,
		Progress:       gamify.ProgressFor(u.XP),
		Badges:         badges,
		CompletedTasks: done,
	}
	if next, ok := gamify.NextReward(u.XP); ok {
		resp.NextReward = &next
	}
	jsonutil.OK(w, resp)
}

// ServeLeaderboard handles GET /api/gamification/leaderboard?limit=.
func (h *Handler) ServeLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	limit := paging.Limit(r, LeaderboardSize, paging.PageSize)
	users, err := userstore.New(h.DB).Leaderboard(ctx, int64(limit))
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	out := make([]leaderEntry, 0, len(users))
	for i, u := range users {
		out = append(out, leaderEntry{
			Rank:   i + 1,
			UserID: u.ID,
			Name:   u.FullName,
			XP:     u.XP,
			Level:  gamify.Level(u.XP),
			Badges: len(u.Badges),
		})
	}
	jsonutil.OK(w, map[string]any{"leaders": out})
}

// ServeRewards handles GET /api/gamification/rewards.
func (h *Handler) ServeRewards(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, map[string]any{
		"xp_per_level": gamify.XPPerLevel,
		"rewards":      gamify.Rewards,
	})
}

// ServeBadges handles GET /api/gamification/badges.
func (h *Handler) ServeBadges(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, map[string]any{"badges": gamify.Catalogue})
}
