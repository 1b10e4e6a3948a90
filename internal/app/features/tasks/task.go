// internal/app/features/tasks/task.go
package tasks

import (
	"context"
	"io"
	"net/http"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
)

// ServeTask handles GET /api/tasks/{taskID}. A student opening a Backlog
// task starts it.
func (h *Handler) ServeTask(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	id, err := shared.IDParam(r, "taskID")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Engine.Get(ctx, a, id)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, t)
}

// HandleUpdate handles PATCH /api/tasks/{taskID}. The accepted fields
// depend on the caller's relation to the task.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	id, err := shared.IDParam(r, "taskID")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, jsonutil.MaxBodyBytes))
	if err != nil {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("request body is too large", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	out, err := h.Engine.Update(ctx, a, id, body)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, out)
}

// HandleDelete handles DELETE /api/tasks/{taskID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	id, err := shared.IDParam(r, "taskID")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Engine.Delete(ctx, a, id); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeMine handles GET /api/tasks/mine.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Engine.Mine(ctx, a)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, map[string]any{"tasks": list})
}
