// internal/app/features/admin/users.go
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/store/audit"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/normalize"
	"github.com/dalemusser/questhub/internal/app/system/paging"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type usersResponse struct {
	Users []shared.UserView `json:"users"`
	Page  paging.Result     `json:"page"`
}

// ServeUsers handles GET /api/admin/users.
//
// Filters: ?role=, ?active=1, ?search= (name prefix, or email when it contains '@'); ?role=all means any role. Keyset paging with
// ?after= / ?before= cursors and ?limit=.
func (h *Handler) ServeUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := userstore.ListFilter{
		Role:       normalize.Role(normalize.FilterID(q.Get("role"))),
		ActiveOnly: paging.Flag(r, "active"),
		Search:     normalize.QueryParam(q.Get("search")),
	}
	if f.Role != "" && !validRole(f.Role) {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("unknown role", map[string]string{"role": "must be student, teacher or admin"}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	req := paging.Parse(r)
	rows, err := userstore.New(h.DB).List(ctx, f, req.Keyset())
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	res := paging.TrimPage(&rows, req)
	paging.SetCursors(&res, rows,
		func(u models.User) string { return u.FullNameCI },
		func(u models.User) primitive.ObjectID { return u.ID })

	views := make([]shared.UserView, 0, len(rows))
	for _, u := range rows {
		views = append(views, shared.ViewUser(u))
	}
	jsonutil.OK(w, usersResponse{Users: views, Page: res})
}

type activeInput struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// HandleSetActive handles POST /api/admin/users/{userID}/active. An admin
// cannot deactivate their own account.
func (h *Handler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	id, err := shared.IDParam(r, "userID")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	var in activeInput
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if id == a.ID && !*in.IsActive {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("You can't deactivate your own account.", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	users := userstore.New(h.DB)
	if err := users.SetActive(ctx, id, *in.IsActive); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			err = apierr.NotFound("user not found")
		}
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	u, err := users.GetByID(ctx, id)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	event := audit.EventUserDeactivated
	if *in.IsActive {
		event = audit.EventUserActivated
	}
	h.AuditLog.Admin(ctx, r, event, a.ID, &id, map[string]string{"is_active": strconv.FormatBool(*in.IsActive)})
	h.Log.Info("user active flag changed",
		zap.String("user_id", id.Hex()),
		zap.Bool("is_active", *in.IsActive),
		zap.String("by", a.ID.Hex()))

	jsonutil.OK(w, shared.ViewUser(*u))
}

func validRole(role string) bool {
	for _, r := range models.Roles {
		if r == role {
			return true
		}
	}
	return false
}
