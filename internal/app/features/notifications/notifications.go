// internal/app/features/notifications/notifications.go
package notifications

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	notificationstore "github.com/dalemusser/questhub/internal/app/store/notifications"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/paging"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/domain/models"
)

type listResponse struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
}

// ServeList handles GET /api/notifications. ?unread=1 restricts the list
// to unread entries; ?limit= caps it.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	store := notificationstore.New(h.DB)
	limit := paging.Limit(r, notificationstore.DefaultLimit, paging.MaxPageSize)
	list, err := store.ListForRecipient(ctx, a.ID, paging.Flag(r, "unread"), int64(limit))
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	unread, err := store.CountUnread(ctx, a.ID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, listResponse{Notifications: list, UnreadCount: unread})
}

// HandleRead handles POST /api/notifications/{notificationID}/read. A
// notification addressed to someone else is reported as not found.
func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	id, err := shared.IDParam(r, "notificationID")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := notificationstore.New(h.DB).MarkRead(ctx, id, a.ID); err != nil {
		if errors.Is(err, notificationstore.ErrNotFound) {
			err = apierr.NotFound("notification not found")
		}
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReadAll handles POST /api/notifications/read-all.
func (h *Handler) HandleReadAll(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := notificationstore.New(h.DB).MarkAllRead(ctx, a.ID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, map[string]int64{"marked": n})
}
