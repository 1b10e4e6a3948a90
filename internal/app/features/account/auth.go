// internal/app/features/account/auth.go
package account

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/store/audit"
	loginstore "github.com/dalemusser/questhub/internal/app/store/logins"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.uber.org/zap"
)

// errBadCredentials is deliberately the same for an unknown email and a
// wrong password.
var errBadCredentials = apierr.Unauthorized("invalid email or password")

// HandleRegister handles POST /api/auth/register. The new account is
// signed in straight away.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	role := in.Role
	if role == "" {
		role = models.RoleStudent
	}
	if role == models.RoleTeacher && !h.AllowTeacherSignup {
		jsonutil.Error(w, r, h.Log, apierr.Forbidden("teacher accounts are created by an administrator"))
		return
	}
	if strings.TrimSpace(in.FullName) == "" {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("Full name is required.", map[string]string{"full_name": "Full name is required."}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := userstore.New(h.DB).Create(ctx, models.User{
		FullName: in.FullName,
		Email:    in.Email,
		Role:     role,
	}, in.Password)
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		jsonutil.Error(w, r, h.Log, apierr.Conflict("an account with this email already exists"))
		return
	}
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	h.AuditLog.Registered(ctx, r, u.ID, u.Role)
	h.Log.Info("account registered", zap.String("user_id", u.ID.Hex()), zap.String("role", u.Role))

	resp, err := h.startSession(w, r, u)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.Created(w, resp)
}

// HandleLogin handles POST /api/auth/login. On success it sets the session
// cookie and also returns a bearer token for clients that prefer one.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
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

	if h.Limiter != nil {
		if err := h.Limiter.Check(r, in.Email); err != nil {
			h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedRateLimit, nil, in.Email, "rate limited")
			jsonutil.Error(w, r, h.Log, err)
			return
		}
	}

	u, err := userstore.New(h.DB).GetByEmail(ctx, in.Email)
	if errors.Is(err, userstore.ErrNotFound) {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserNotFound, nil, in.Email, "unknown email")
		jsonutil.Error(w, r, h.Log, errBadCredentials)
		return
	}
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if !userstore.CheckPassword(u.PasswordHash, in.Password) {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedWrongPassword, &u.ID, in.Email, "wrong password")
		jsonutil.Error(w, r, h.Log, errBadCredentials)
		return
	}
	if !u.IsActive {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserDisabled, &u.ID, in.Email, "account disabled")
		jsonutil.Error(w, r, h.Log, apierr.Forbidden("this account has been disabled"))
		return
	}

	if h.Limiter != nil {
		h.Limiter.Succeeded(in.Email)
	}
	u.PasswordHash = ""
	resp, err := h.startSession(w, r, *u)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	if err := loginstore.New(h.DB).CreateFrom(ctx, r, u.ID, models.LoginPassword); err != nil {
		h.Log.Warn("login record failed", zap.String("user_id", u.ID.Hex()), zap.Error(err))
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email)
	jsonutil.OK(w, resp)
}

// HandleLogout handles POST /api/auth/logout. It always succeeds; bearer
// tokens simply expire.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if a, err := shared.Actor(r); err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		h.AuditLog.Logout(ctx, r, a.ID)
	}
	if err := h.SessionMgr.Logout(w, r); err != nil {
		h.Log.Warn("clearing session failed", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u models.User) (sessionResponse, error) {
	su := auth.SessionUser{ID: u.ID.Hex(), Name: u.FullName, Email: u.Email, Role: u.Role}
	if err := h.SessionMgr.Login(w, r, su); err != nil {
		return sessionResponse{}, err
	}
	token, exp, err := h.SessionMgr.IssueToken(su)
	if err != nil {
		return sessionResponse{}, err
	}
	return sessionResponse{User: shared.ViewUser(u), Token: token, ExpiresAt: exp}, nil
}
