// internal/app/features/projects/template.go
package projects

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/templategen"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// HandleApplyTemplate handles POST /api/projects/{projectID}/apply-template.
//
// Each template task is created once for every listed student. The task
// list comes from the body or, when only "generate" is given, from the
// template generator.
func (h *Handler) HandleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	var in applyTemplateRequest
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

	p, err := h.loadManaged(ctx, r, "add tasks")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	items, source := in.Tasks, ""
	if len(items) == 0 {
		if in.Generate == nil || h.Templates == nil {
			jsonutil.Error(w, r, h.Log, apierr.Invalid("tasks or generate is required", map[string]string{"tasks": "Add at least one task."}))
			return
		}
		var tpl templategen.Template
		tpl, source = h.Templates.Generate(ctx, *in.Generate)
		items = tpl.Tasks
	}

	students, err := h.activeStudents(ctx, in.AssigneeIDs)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	priority, _ := models.ParsePriority(in.Priority)

	var batch []models.Task
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		desc := htmlsanitize.Sanitize(item.Description)
		for _, sid := range students {
			batch = append(batch, models.Task{
				ProjectID:   p.ID,
				AssigneeID:  sid,
				Title:       title,
				Description: desc,
				Priority:    priority,
				Points:      in.Points,
				CreatedByID: a.ID,
			})
		}
	}
	if len(batch) == 0 {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("the template has no usable tasks", nil))
		return
	}

	created, err := taskstore.New(h.DB).CreateMany(ctx, batch)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	h.Log.Info("template applied",
		zap.String("project_id", p.ID.Hex()),
		zap.Int("students", len(students)),
		zap.Int("tasks_created", len(created)),
		zap.String("source", source))
	jsonutil.Created(w, appliedResponse{Source: source, Created: len(created), Tasks: created})
}

// activeStudents resolves ids, keeping their order and dropping repeats,
// and fails unless every one is an active student.
func (h *Handler) activeStudents(ctx context.Context, raw []string) ([]primitive.ObjectID, error) {
	seen := map[primitive.ObjectID]bool{}
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, apierr.Invalid("bad student id", map[string]string{"assignee_ids": "Invalid id."})
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	users, err := userstore.New(h.DB).GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	ok := make(map[primitive.ObjectID]bool, len(users))
	for _, u := range users {
		ok[u.ID] = u.Role == models.RoleStudent && u.IsActive
	}
	for _, id := range ids {
		if !ok[id] {
			return nil, apierr.Invalid(fmt.Sprintf("%s is not an active student", id.Hex()),
				map[string]string{"assignee_ids": "Every assignee must be an active student."})
		}
	}
	return ids, nil
}
