// internal/app/features/account/me.go
package account

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	loginstore "github.com/dalemusser/questhub/internal/app/store/logins"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/paging"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func (h *Handler) loadMe(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := userstore.New(h.DB).GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) {
		return nil, apierr.Unauthorized("sign in required")
	}
	return u, err
}

// ServeMe handles GET /api/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.loadMe(ctx, a.ID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	u.PasswordHash = ""
	jsonutil.OK(w, shared.ViewUser(*u))
}

// HandleUpdateMe handles PUT /api/me. Only the display name is editable.
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	var in updateMeRequest
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if strings.TrimSpace(in.FullName) == "" {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("Full name is required.", map[string]string{"full_name": "Full name is required."}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	store := userstore.New(h.DB)
	if err := store.UpdateName(ctx, a.ID, in.FullName); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			err = apierr.Unauthorized("sign in required")
		}
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	u, err := h.loadMe(ctx, a.ID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	u.PasswordHash = ""
	jsonutil.OK(w, shared.ViewUser(*u))
}

// HandleChangePassword handles PUT /api/me/password.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	var in passwordRequest
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.loadMe(ctx, a.ID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if !userstore.CheckPassword(u.PasswordHash, in.Current) {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("Current password is incorrect.",
			map[string]string{"current_password": "Current password is incorrect."}))
		return
	}
	if err := userstore.New(h.DB).SetPassword(ctx, a.ID, in.New); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	h.Log.Info("password changed", zap.String("user_id", a.ID.Hex()))
	w.WriteHeader(http.StatusNoContent)
}

// ServeLogins handles GET /api/me/logins: the caller's recent sign-ins.
func (h *Handler) ServeLogins(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	recs, err := loginstore.New(h.DB).Recent(ctx, a.ID, int64(paging.Limit(r, 10, 50)))
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, map[string]any{"logins": recs})
}
