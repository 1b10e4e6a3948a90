// internal/app/features/coderun/handler.go
package coderun

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/app/system/codeexec"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/metrics"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler forwards code to the sandbox. It only runs code; saving a
// submission goes through the task endpoints.
type Handler struct {
	Runner *codeexec.Client
	Log    *zap.Logger
}

func NewHandler(runner *codeexec.Client, logger *zap.Logger) *Handler {
	return &Handler{Runner: runner, Log: logger}
}

// Routes mounts under /api/code.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/run", h.HandleRun)
	})
	return r
}

type runRequest struct {
	Code     string `json:"code" validate:"required" label:"Code"`
	Language string `json:"language" validate:"required,max=20" label:"Language"`
}

// HandleRun handles POST /api/code/run.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	var in runRequest
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upstream())
	defer cancel()

	res, err := h.Runner.Run(ctx, in.Code, in.Language)
	switch {
	case errors.Is(err, codeexec.ErrUnsupportedLanguage):
		metrics.CodeRuns.WithLabelValues("rejected").Inc()
		jsonutil.Error(w, r, h.Log, apierr.Invalid("Language is not supported.", map[string]string{"language": "Language is not supported."}))
		return
	case errors.Is(err, codeexec.ErrTooLarge):
		metrics.CodeRuns.WithLabelValues("rejected").Inc()
		jsonutil.Error(w, r, h.Log, apierr.Invalid("Code is too large.", map[string]string{"code": "Code is too large."}))
		return
	case err != nil:
		metrics.CodeRuns.WithLabelValues("failed").Inc()
		jsonutil.Error(w, r, h.Log, apierr.Upstream("code runner unavailable", err))
		return
	}

	metrics.CodeRuns.WithLabelValues("ok").Inc()
	h.Log.Debug("code run", zap.String("user_id", a.ID.Hex()), zap.String("language", in.Language), zap.Int("exit_code", res.ExitCode))
	jsonutil.OK(w, res)
}
