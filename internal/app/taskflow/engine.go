// internal/app/taskflow/engine.go
//
// Package taskflow runs the task lifecycle: who may touch a task, which
// fields each side may change, the status transitions, the evidence ledger,
// notifications to the counter-party and the one-time XP payout on
// completion.
//
// Every mutation runs in the same order: authorize, filter fields, persist,
// notify, pay out.
package taskflow

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/questhub/internal/app/policy/taskpolicy"
	projectstore "github.com/dalemusser/questhub/internal/app/store/projects"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Tasks is the slice of the task store the engine needs.
type Tasks interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Task, error)
	Create(ctx context.Context, t models.Task) (models.Task, error)
	ListByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Task, error)
	ListByAssignee(ctx context.Context, assigneeID primitive.ObjectID) ([]models.Task, error)
	Apply(ctx context.Context, id primitive.ObjectID, p taskstore.Patch) (models.Task, error)
	AppendEvidence(ctx context.Context, id primitive.ObjectID, evs []models.Evidence) (models.Task, error)
	SetGitHubRepo(ctx context.Context, id primitive.ObjectID, repo models.GitHubRepo) (models.Task, error)
	ReplaceCommits(ctx context.Context, id primitive.ObjectID, commits []models.GitHubCommit) (models.Task, error)
	MarkXPAwarded(ctx context.Context, id primitive.ObjectID) (bool, error)
	ReleaseXPAward(ctx context.Context, id primitive.ObjectID) error
	CountCompletedByAssignee(ctx context.Context, assigneeID primitive.ObjectID) (int64, error)
	ProjectComplete(ctx context.Context, projectID primitive.ObjectID) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Projects loads the parent project of a task.
type Projects interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error)
}

// Users reads users and credits rewards.
type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	AwardXP(ctx context.Context, id primitive.ObjectID, xp int, badges []string) (*models.User, error)
}

// Notifier accepts notifications for asynchronous delivery. It reports
// false when the notification was dropped.
type Notifier interface {
	Notify(n models.Notification) bool
}

// Commits reads a repository's recent commits.
type Commits interface {
	ListCommits(ctx context.Context, owner, repo string, limit int) ([]models.GitHubCommit, error)
}

// CommitLimit is how many commits a sync fetches.
const CommitLimit = 30

// Actor is the authenticated caller.
type Actor struct {
	ID   primitive.ObjectID
	Name string
	Role string
}

func (a Actor) isAdmin() bool { return a.Role == models.RoleAdmin }

// Deps wires the engine to its collaborators.
type Deps struct {
	Tasks       Tasks
	Projects    Projects
	Users       Users
	Groups      taskpolicy.Groups
	Memberships taskpolicy.Memberships
	Notifier    Notifier
	Commits     Commits
	Log         *zap.Logger
}

// Engine runs task operations.
type Engine struct {
	tasks    Tasks
	projects Projects
	users    Users
	groups   taskpolicy.Groups
	members  taskpolicy.Memberships
	notifier Notifier
	commits  Commits
	log      *zap.Logger

	now func() time.Time
}

// New builds an Engine. Commits may be nil, in which case syncing is refused.
func New(d Deps) *Engine {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		tasks:    d.Tasks,
		projects: d.Projects,
		users:    d.Users,
		groups:   d.Groups,
		members:  d.Memberships,
		notifier: d.Notifier,
		commits:  d.Commits,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// scope is a loaded task with its project and the caller's relation to it.
type scope struct {
	task    models.Task
	project models.Project
	rel     taskpolicy.Relation
}

// load fetches the task and its project. A task whose project is gone is
// reported as a missing parent, distinct from the task itself being missing.
func (e *Engine) load(ctx context.Context, taskID primitive.ObjectID) (models.Task, models.Project, error) {
	t, err := e.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, taskstore.ErrNotFound) {
			return models.Task{}, models.Project{}, apierr.NotFound("task not found")
		}
		return models.Task{}, models.Project{}, err
	}
	p, err := e.projects.GetByID(ctx, t.ProjectID)
	if err != nil {
		if errors.Is(err, projectstore.ErrNotFound) {
			e.log.Warn("task references missing project",
				zap.String("task_id", t.ID.Hex()),
				zap.String("project_id", t.ProjectID.Hex()))
			return models.Task{}, models.Project{}, apierr.MissingParent("project")
		}
		return models.Task{}, models.Project{}, err
	}
	return t, p, nil
}

// authorize loads the task and resolves the caller's relation. Callers with
// no relation get Forbidden.
func (e *Engine) authorize(ctx context.Context, a Actor, taskID primitive.ObjectID) (scope, error) {
	t, p, err := e.load(ctx, taskID)
	if err != nil {
		return scope{}, err
	}
	rel, err := taskpolicy.Resolve(ctx, e.groups, e.members, p, t, a.ID)
	if err != nil {
		return scope{}, err
	}
	if rel == taskpolicy.None {
		return scope{}, apierr.Forbidden("you are not the teacher, assignee or a group member for this task")
	}
	return scope{task: t, project: p, rel: rel}, nil
}

// loadProject fetches a project for a project-level operation.
func (e *Engine) loadProject(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	p, err := e.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, projectstore.ErrNotFound) {
			return models.Project{}, apierr.NotFound("project not found")
		}
		return models.Project{}, err
	}
	return p, nil
}

// storeErr maps task store sentinels onto the API taxonomy.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, taskstore.ErrNotFound):
		return apierr.NotFound("task not found")
	case errors.Is(err, taskstore.ErrStale):
		return apierr.Conflict("the task was changed by someone else; reload and try again")
	case errors.Is(err, taskstore.ErrFeedbackExists):
		return apierr.Conflict("feedback was already given for this review cycle")
	}
	return err
}

// activeStudent checks that id names an active student.
func (e *Engine) activeStudent(ctx context.Context, id primitive.ObjectID) error {
	u, err := e.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			return apierr.Invalid("assignee not found", map[string]string{"assignee_id": "Assignee not found."})
		}
		return err
	}
	if u.Role != models.RoleStudent || !u.IsActive {
		return apierr.Invalid("assignee must be an active student",
			map[string]string{"assignee_id": "Assignee must be an active student."})
	}
	return nil
}
