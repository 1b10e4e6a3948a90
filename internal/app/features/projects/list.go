// internal/app/features/projects/list.go
package projects

import (
	"context"
	"net/http"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	groupstore "github.com/dalemusser/questhub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/questhub/internal/app/store/memberships"
	projectstore "github.com/dalemusser/questhub/internal/app/store/projects"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/app/taskflow"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeList handles GET /api/projects.
//
// Admins see every project and teachers their own. Students see the
// projects they hold a task in plus the project bound to their group.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.visibleProjects(ctx, a)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ids := make([]primitive.ObjectID, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	progress, err := taskstore.New(h.DB).ProgressByProjects(ctx, ids)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	items := make([]projectListItem, len(list))
	for i, p := range list {
		pr := progress[p.ID]
		items[i] = projectListItem{Project: p, TaskCount: pr.Total, DoneCount: pr.Done}
	}
	jsonutil.OK(w, map[string]any{"projects": items})
}

func (h *Handler) visibleProjects(ctx context.Context, a taskflow.Actor) ([]models.Project, error) {
	ps := projectstore.New(h.DB)
	switch a.Role {
	case models.RoleAdmin:
		return ps.ListAll(ctx)
	case models.RoleTeacher:
		return ps.ListByTeacher(ctx, a.ID)
	}

	ids, err := h.studentProjectIDs(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return ps.ListByIDs(ctx, ids)
}

// studentProjectIDs collects the projects a student can reach through an
// assigned task or through their group's binding.
func (h *Handler) studentProjectIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if !id.IsZero() && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	mine, err := taskstore.New(h.DB).ListByAssignee(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, t := range mine {
		add(t.ProjectID)
	}

	gid, ok, err := membershipstore.New(h.DB).GroupOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ok {
		g, err := groupstore.New(h.DB).GetByID(ctx, gid)
		switch {
		case err == groupstore.ErrNotFound:
		case err != nil:
			return nil, err
		case g.ProjectID != nil:
			add(*g.ProjectID)
		}
	}
	return ids, nil
}
