// internal/app/features/admin/stats.go
package admin

import (
	"context"
	"net/http"

	groupstore "github.com/dalemusser/questhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/questhub/internal/app/store/memberships"
	projectstore "github.com/dalemusser/questhub/internal/app/store/projects"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type statsResponse struct {
	Users           map[string]int64            `json:"users"`
	Projects        int64                       `json:"projects"`
	Groups          int                         `json:"groups"`
	GroupedStudents int                         `json:"grouped_students"`
	Tasks           map[models.TaskStatus]int64 `json:"tasks"`
	TasksDone       int64                       `json:"tasks_done"`
	TasksTotal      int64                       `json:"tasks_total"`
}

// ServeStats handles GET /api/admin/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	roles, err := userstore.New(h.DB).CountByRole(ctx)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	projects, err := projectstore.New(h.DB).Count(ctx)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	groups, err := groupstore.New(h.DB).ListAll(ctx)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	members, err := membershipstore.New(h.DB).CountByGroups(ctx, ids)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	grouped := 0
	for _, n := range members {
		grouped += n
	}
	byStatus, err := taskstore.New(h.DB).CountByStatus(ctx)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	var total int64
	for _, n := range byStatus {
		total += n
	}
	jsonutil.OK(w, statsResponse{
		Users:           roles,
		Projects:        projects,
		Groups:          len(groups),
		GroupedStudents: grouped,
		Tasks:           byStatus,
		TasksDone:       byStatus[models.StatusDone],
		TasksTotal:      total,
	})
}
