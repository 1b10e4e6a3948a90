// internal/app/features/projects/delete.go
package projects

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/store/audit"
	groupstore "github.com/dalemusser/questhub/internal/app/store/groups"
	notificationstore "github.com/dalemusser/questhub/internal/app/store/notifications"
	projectstore "github.com/dalemusser/questhub/internal/app/store/projects"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// HandleDelete handles DELETE /api/projects/{projectID}.
//
// The project, its tasks and the notifications about those tasks are
// removed and bound groups are released, in one transaction when the
// deployment supports it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, err := h.loadManaged(ctx, r, "delete it")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	var removed, unbound int64
	err = txn.Run(ctx, h.DB.Client(), h.Log, func(ctx context.Context) error {
		ts := taskstore.New(h.DB)
		tasks, err := ts.ListByProject(ctx, p.ID)
		if err != nil {
			return err
		}
		ids := make([]primitive.ObjectID, len(tasks))
		for i, t := range tasks {
			ids[i] = t.ID
		}
		if _, err := notificationstore.New(h.DB).DeleteByTask(ctx, ids); err != nil {
			return err
		}
		if removed, err = ts.DeleteByProject(ctx, p.ID); err != nil {
			return err
		}
		if unbound, err = groupstore.New(h.DB).UnbindProject(ctx, p.ID); err != nil {
			return err
		}
		return projectstore.New(h.DB).Delete(ctx, p.ID)
	})
	if err != nil {
		if errors.Is(err, projectstore.ErrNotFound) {
			err = apierr.NotFound("project not found")
		}
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	h.Audit.Admin(ctx, r, audit.EventProjectDeleted, a.ID, nil, map[string]string{
		"project_id":     p.ID.Hex(),
		"title":          p.Title,
		"tasks_deleted":  strconv.FormatInt(removed, 10),
		"groups_unbound": strconv.FormatInt(unbound, 10),
	})
	h.Log.Info("project deleted",
		zap.String("project_id", p.ID.Hex()),
		zap.Int64("tasks_deleted", removed),
		zap.Int64("groups_unbound", unbound))
	w.WriteHeader(http.StatusNoContent)
}
