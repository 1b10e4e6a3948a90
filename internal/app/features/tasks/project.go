// internal/app/features/tasks/project.go
package tasks

import (
	"context"
	"net/http"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/app/taskflow"
)

// ServeProjectTasks handles GET /api/projects/{projectID}/tasks.
func (h *Handler) ServeProjectTasks(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	pid, err := shared.IDParam(r, "projectID")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	_, list, err := h.Engine.ListByProject(ctx, a, pid)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, map[string]any{"tasks": list})
}

// ServeBoard handles GET /api/projects/{projectID}/board.
func (h *Handler) ServeBoard(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	pid, err := shared.IDParam(r, "projectID")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	board, err := h.Engine.Board(ctx, a, pid)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, board)
}

// HandleCreate handles POST /api/projects/{projectID}/tasks.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	pid, err := shared.IDParam(r, "projectID")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	var in taskflow.NewTask
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Engine.Create(ctx, a, pid, in)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.Created(w, t)
}
