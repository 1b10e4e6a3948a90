// internal/app/taskflow/tasks.go
package taskflow

import (
	"context"
	"errors"
	"strings"
	"time"

	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/questhub/internal/app/system/inputval"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// NewTask is the body of a task creation request.
type NewTask struct {
	Title       string     `json:"title" validate:"required,max=200" label:"Title"`
	Description string     `json:"description" validate:"max=10000" label:"Description"`
	AssigneeID  string     `json:"assignee_id" validate:"required,objectid" label:"Assignee"`
	Priority    string     `json:"priority" validate:"omitempty,priority" label:"Priority"`
	Points      int        `json:"points" validate:"omitempty,min=1,max=1000" label:"Points"`
	Status      string     `json:"status" validate:"omitempty,taskstatus" label:"Status"`
	DueDate     *time.Time `json:"due_date"`
}

// Column is one board column and the tasks in it.
type Column struct {
	Status models.TaskStatus `json:"status"`
	Tasks  []models.Task     `json:"tasks"`
}

// Board is a project's kanban view.
type Board struct {
	Project models.Project `json:"project"`
	Columns []Column       `json:"columns"`
}

// canManage reports whether a may create, delete or list every task of p.
func canManage(a Actor, p models.Project) bool {
	return a.isAdmin() || (a.Role == models.RoleTeacher && p.TeacherID == a.ID)
}

// Get returns a task the caller can reach. A student-side caller opening a
// Backlog task moves it to In Progress.
func (e *Engine) Get(ctx context.Context, a Actor, taskID primitive.ObjectID) (models.Task, error) {
	if a.isAdmin() {
		t, _, err := e.load(ctx, taskID)
		return t, err
	}
	sc, err := e.authorize(ctx, a, taskID)
	if err != nil {
		return models.Task{}, err
	}
	t := sc.task

	if sc.rel.StudentSide() && t.Status == models.StatusBacklog && sc.project.HasColumn(models.StatusInProgress) {
		from, to := models.StatusBacklog, models.StatusInProgress
		started, err := e.tasks.Apply(ctx, t.ID, taskstore.Patch{Status: &to, IfStatus: &from})
		switch {
		case err == nil:
			return started, nil
		case errors.Is(err, taskstore.ErrStale):
			// Someone else moved it first; show what is stored now.
			return e.reload(ctx, t.ID)
		default:
			return models.Task{}, storeErr(err)
		}
	}
	return t, nil
}

func (e *Engine) reload(ctx context.Context, id primitive.ObjectID) (models.Task, error) {
	t, err := e.tasks.GetByID(ctx, id)
	return t, storeErr(err)
}

// Create adds a task to a project. Only the project's teacher (or an
// admin) may create tasks, and the assignee must be an active student.
func (e *Engine) Create(ctx context.Context, a Actor, projectID primitive.ObjectID, in NewTask) (models.Task, error) {
	p, err := e.loadProject(ctx, projectID)
	if err != nil {
		return models.Task{}, err
	}
	if !canManage(a, p) {
		return models.Task{}, apierr.Forbidden("only the project's teacher can add tasks")
	}
	if res := inputval.Validate(in); res.HasErrors() {
		return models.Task{}, invalid(res)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, apierr.Invalid("Title is required.", map[string]string{"title": "Title is required."})
	}

	status := models.StatusBacklog
	if in.Status != "" {
		if status, err = e.targetStatus(p, in.Status); err != nil {
			return models.Task{}, err
		}
	}
	// Review and Done are only reached through Update, which keeps the
	// review cycle and the payout in step.
	if status != models.StatusBacklog && status != models.StatusInProgress {
		return models.Task{}, apierr.Invalid("New tasks start in Backlog or In Progress.",
			map[string]string{"status": "New tasks start in Backlog or In Progress."})
	}
	priority, _ := models.ParsePriority(in.Priority)
	assignee, _ := primitive.ObjectIDFromHex(in.AssigneeID)
	if err := e.activeStudent(ctx, assignee); err != nil {
		return models.Task{}, err
	}

	t := models.Task{
		ProjectID:   p.ID,
		AssigneeID:  assignee,
		Title:       title,
		Description: htmlsanitize.Sanitize(in.Description),
		Status:      status,
		Priority:    priority,
		Points:      in.Points,
		CreatedByID: a.ID,
	}
	if in.DueDate != nil {
		d := in.DueDate.UTC()
		t.DueDate = &d
	}
	created, err := e.tasks.Create(ctx, t)
	if err != nil {
		return models.Task{}, err
	}
	e.log.Info("task created",
		zap.String("task_id", created.ID.Hex()),
		zap.String("project_id", p.ID.Hex()),
		zap.String("assignee_id", assignee.Hex()))
	return created, nil
}

// ListByProject returns the project's tasks visible to a. Teachers of the
// project and members of a group bound to it see every task; other
// students see only their own.
func (e *Engine) ListByProject(ctx context.Context, a Actor, projectID primitive.ObjectID) (models.Project, []models.Task, error) {
	p, err := e.loadProject(ctx, projectID)
	if err != nil {
		return models.Project{}, nil, err
	}
	all, err := e.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return models.Project{}, nil, err
	}
	if canManage(a, p) {
		return p, all, nil
	}

	groupIDs, err := e.groups.IDsByProject(ctx, projectID)
	if err != nil {
		return models.Project{}, nil, err
	}
	member, err := e.members.IsMemberOfAny(ctx, groupIDs, a.ID)
	if err != nil {
		return models.Project{}, nil, err
	}
	if member {
		return p, all, nil
	}

	own := make([]models.Task, 0)
	for _, t := range all {
		if t.AssigneeID == a.ID {
			own = append(own, t)
		}
	}
	if len(own) == 0 {
		return models.Project{}, nil, apierr.Forbidden("you have no tasks in this project")
	}
	return p, own, nil
}

// Board groups the visible tasks of a project by column, in column order.
// Tasks whose status is no longer a column land in the first column.
func (e *Engine) Board(ctx context.Context, a Actor, projectID primitive.ObjectID) (Board, error) {
	p, tasks, err := e.ListByProject(ctx, a, projectID)
	if err != nil {
		return Board{}, err
	}
	cols := make([]Column, len(p.Columns))
	index := make(map[models.TaskStatus]int, len(p.Columns))
	for i, s := range p.Columns {
		cols[i] = Column{Status: s, Tasks: []models.Task{}}
		index[s] = i
	}
	for _, t := range tasks {
		i, ok := index[t.Status]
		if !ok {
			i = 0
		}
		if len(cols) > 0 {
			cols[i].Tasks = append(cols[i].Tasks, t)
		}
	}
	return Board{Project: p, Columns: cols}, nil
}

// Mine lists the tasks assigned to a.
func (e *Engine) Mine(ctx context.Context, a Actor) ([]models.Task, error) {
	return e.tasks.ListByAssignee(ctx, a.ID)
}

// Delete removes a task. Only the project's teacher (or an admin) may.
func (e *Engine) Delete(ctx context.Context, a Actor, taskID primitive.ObjectID) error {
	t, p, err := e.load(ctx, taskID)
	if err != nil {
		return err
	}
	if !canManage(a, p) {
		return apierr.Forbidden("only the project's teacher can delete tasks")
	}
	if err := e.tasks.Delete(ctx, t.ID); err != nil {
		return storeErr(err)
	}
	e.log.Info("task deleted", zap.String("task_id", t.ID.Hex()), zap.String("project_id", p.ID.Hex()))
	return nil
}
