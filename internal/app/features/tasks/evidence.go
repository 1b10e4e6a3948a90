// internal/app/features/tasks/evidence.go
package tasks

import (
	"context"
	"net/http"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/app/taskflow"
)

// HandleAddEvidence handles POST /api/tasks/{taskID}/evidence with
// {url, storage_id, resource_type}.
func (h *Handler) HandleAddEvidence(w http.ResponseWriter, r *http.Request) {
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
	var in taskflow.EvidenceInput
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Engine.AddEvidence(ctx, a, id, in)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.Created(w, t)
}

type linkRepoRequest struct {
	URL string `json:"url"`
}

// HandleLinkRepo handles PUT /api/tasks/{taskID}/repo with {url}.
func (h *Handler) HandleLinkRepo(w http.ResponseWriter, r *http.Request) {
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
	var in linkRepoRequest
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	t, err := h.Engine.LinkRepo(ctx, a, id, in.URL)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, t)
}

// HandleSyncCommits handles POST /api/tasks/{taskID}/commits/sync.
func (h *Handler) HandleSyncCommits(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	t, err := h.Engine.SyncCommits(ctx, a, id)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, t)
}
