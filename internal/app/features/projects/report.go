// internal/app/features/projects/report.go
package projects

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/dalemusser/questhub/internal/app/policy/reportpolicy"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/csvutil"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var reportHeader = []string{
	"Task", "Assignee", "Email", "Status", "Priority", "Points",
	"XP Awarded", "Evidence", "Review Cycles", "Due", "Completed",
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ServeReport handles GET /api/projects/{projectID}/report.csv: one row per
// task with its assignee and progress.
func (h *Handler) ServeReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, err := h.loadProject(ctx, r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if !reportpolicy.CanViewReport(r, p) {
		jsonutil.Error(w, r, h.Log, apierr.Forbidden("only the project's teacher can download its report"))
		return
	}

	tasks, err := taskstore.New(h.DB).ListByProject(ctx, p.ID)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.AssigneeID)
	}
	users, err := userstore.New(h.DB).GetMany(ctx, ids)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	type who struct{ name, email string }
	byID := make(map[primitive.ObjectID]who, len(users))
	for _, u := range users {
		byID[u.ID] = who{u.FullName, u.Email}
	}

	name := unsafeFilename.ReplaceAllString(p.Title, "_")
	if name == "" || name == "_" {
		name = "project"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-report.csv"`, name))

	cw := csvutil.NewWriter(w)
	if err := cw.Write(reportHeader...); err != nil {
		h.Log.Warn("write report header", zap.Error(err))
		return
	}
	for _, t := range tasks {
		u := byID[t.AssigneeID]
		if err := cw.Write(
			t.Title,
			u.name,
			u.email,
			string(t.Status),
			t.Priority,
			strconv.Itoa(t.EffectivePoints()),
			strconv.FormatBool(t.XPAwarded),
			strconv.Itoa(len(t.EvidenceLinks)),
			strconv.Itoa(t.ReviewCycle),
			formatTime(t.DueDate),
			formatTime(t.CompletedAt),
		); err != nil {
			h.Log.Warn("write report row", zap.String("project_id", p.ID.Hex()), zap.Error(err))
			return
		}
	}
	if err := cw.Flush(); err != nil {
		h.Log.Warn("flush report", zap.String("project_id", p.ID.Hex()), zap.Error(err))
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
