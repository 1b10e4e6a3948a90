// internal/app/features/mastery/set.go
package mastery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/store/audit"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/csvutil"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
)

type setInput struct {
	Mastery map[string]float64 `json:"mastery" validate:"required"`
}

// clean lower-cases subjects and checks every score. Subjects that fold to
// the same key are rejected.
func clean(raw map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	fields := map[string]string{}
	for k, v := range raw {
		subject := strings.ToLower(strings.TrimSpace(k))
		switch {
		case !csvutil.ValidSubject(subject):
			fields[k] = "Subject must be non-empty and may not contain '.' or start with '$'."
		case v < csvutil.MinScore || v > csvutil.MaxScore:
			fields[k] = fmt.Sprintf("Score must be between %d and %d.", csvutil.MinScore, csvutil.MaxScore)
		default:
			if _, dup := out[subject]; dup {
				fields[k] = "Subject is listed twice."
				continue
			}
			out[subject] = v
		}
	}
	if len(fields) > 0 {
		return nil, apierr.Invalid("Some mastery scores are invalid.", fields)
	}
	return out, nil
}

// HandleSet handles PUT /api/users/{userID}/mastery. The given map replaces
// the student's scores; an empty map clears them.
func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
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
	var in setInput
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	scores, err := clean(in.Mastery)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	users := userstore.New(h.DB)
	if err := users.SetMastery(ctx, id, scores); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			err = apierr.NotFound("student not found")
		}
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	u, err := users.GetByID(ctx, id)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventMasteryUpdated, a.ID, &id,
		map[string]string{"subjects": strconv.Itoa(len(scores))})
	jsonutil.OK(w, shared.ViewUser(*u))
}
