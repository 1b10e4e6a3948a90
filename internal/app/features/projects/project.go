// internal/app/features/projects/project.go
package projects

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/policy/reportpolicy"
	projectstore "github.com/dalemusser/questhub/internal/app/store/projects"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/questhub/internal/app/system/jsonutil"
	"github.com/dalemusser/questhub/internal/app/system/timeouts"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// loadProject reads the {projectID} parameter and the project it names.
func (h *Handler) loadProject(ctx context.Context, r *http.Request) (models.Project, error) {
	pid, err := shared.IDParam(r, "projectID")
	if err != nil {
		return models.Project{}, err
	}
	p, err := projectstore.New(h.DB).GetByID(ctx, pid)
	if errors.Is(err, projectstore.ErrNotFound) {
		return models.Project{}, apierr.NotFound("project not found")
	}
	return p, err
}

// loadManaged is loadProject plus the owner check.
func (h *Handler) loadManaged(ctx context.Context, r *http.Request, action string) (models.Project, error) {
	p, err := h.loadProject(ctx, r)
	if err != nil {
		return models.Project{}, err
	}
	if !reportpolicy.CanManageProject(r, p) {
		return models.Project{}, apierr.Forbidden("only the project's teacher can " + action)
	}
	return p, nil
}

func parseColumns(raw []string) ([]models.TaskStatus, error) {
	if raw == nil {
		return nil, nil
	}
	cols := make([]models.TaskStatus, len(raw))
	for i, s := range raw {
		st, err := models.ParseTaskStatus(s)
		if err != nil {
			return nil, apierr.Invalid(fmt.Sprintf("unknown column %q", s), map[string]string{"columns": "Unknown status."})
		}
		cols[i] = st
	}
	if !projectstore.ValidColumns(cols) {
		return nil, apierr.Invalid(projectstore.ErrBadColumns.Error(), map[string]string{"columns": "Invalid board."})
	}
	return cols, nil
}

// ServeProject handles GET /api/projects/{projectID}.
func (h *Handler) ServeProject(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.loadProject(ctx, r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if !reportpolicy.CanManageProject(r, p) {
		ids, err := h.studentProjectIDs(ctx, a.ID)
		if err != nil {
			jsonutil.Error(w, r, h.Log, err)
			return
		}
		if !containsID(ids, p.ID) {
			jsonutil.Error(w, r, h.Log, apierr.Forbidden("you do not have access to this project"))
			return
		}
	}
	jsonutil.OK(w, p)
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// HandleCreate handles POST /api/projects.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	a, err := shared.Actor(r)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if a.Role != models.RoleTeacher && a.Role != models.RoleAdmin {
		jsonutil.Error(w, r, h.Log, apierr.Forbidden("only teachers can create projects"))
		return
	}
	var in createRequest
	if err := jsonutil.DecodeStrict(w, r, &in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	if err := shared.Validate(in); err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		jsonutil.Error(w, r, h.Log, apierr.Invalid("Title is required.", map[string]string{"title": "Title is required."}))
		return
	}
	cols, err := parseColumns(in.Columns)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	p := models.Project{
		Title:       title,
		Description: htmlsanitize.Sanitize(in.Description),
		TeacherID:   a.ID,
		Columns:     cols,
	}
	if in.Deadline != nil {
		d := in.Deadline.UTC()
		p.Deadline = &d
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	created, err := projectstore.New(h.DB).Create(ctx, p)
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	h.Log.Info("project created", zap.String("project_id", created.ID.Hex()), zap.String("teacher_id", a.ID.Hex()))
	jsonutil.Created(w, created)
}

// HandleUpdate handles PATCH /api/projects/{projectID}. A column that still
// holds tasks cannot be removed.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in updateRequest
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

	p, err := h.loadManaged(ctx, r, "edit it")
	if err != nil {
		jsonutil.Error(w, r, h.Log, err)
		return
	}

	upd := projectstore.Update{Deadline: in.Deadline, ClearDeadline: in.ClearDeadline}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			jsonutil.Error(w, r, h.Log, apierr.Invalid("Title is required.", map[string]string{"title": "Title is required."}))
			return
		}
		upd.Title = &title
	}
	if in.Description != nil {
		d := htmlsanitize.Sanitize(*in.Description)
		upd.Description = &d
	}
	if in.Columns != nil {
		if upd.Columns, err = parseColumns(in.Columns); err != nil {
			jsonutil.Error(w, r, h.Log, err)
			return
		}
		if err := h.checkColumnsInUse(ctx, p.ID, upd.Columns); err != nil {
			jsonutil.Error(w, r, h.Log, err)
			return
		}
	}

	updated, err := projectstore.New(h.DB).Update(ctx, p.ID, upd)
	if err != nil {
		if errors.Is(err, projectstore.ErrNotFound) {
			err = apierr.NotFound("project not found")
		}
		jsonutil.Error(w, r, h.Log, err)
		return
	}
	jsonutil.OK(w, updated)
}

func (h *Handler) checkColumnsInUse(ctx context.Context, projectID primitive.ObjectID, cols []models.TaskStatus) error {
	keep := models.Project{Columns: cols}
	tasks, err := taskstore.New(h.DB).ListByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if !keep.HasColumn(t.Status) {
			return apierr.Conflict(fmt.Sprintf("column %q still holds tasks", t.Status))
		}
	}
	return nil
}
