package taskflow

import (
	"context"
	"errors"
	"sync"
	"time"

	projectstore "github.com/dalemusser/questhub/internal/app/store/projects"
	taskstore "github.com/dalemusser/questhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/questhub/internal/app/store/users"
	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeTasks struct {
	mu        sync.Mutex
	tasks     map[primitive.ObjectID]models.Task
	appendErr error // returned by AppendEvidence when set
	appends   int
}

func (f *fakeTasks) GetByID(_ context.Context, id primitive.ObjectID) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return models.Task{}, taskstore.ErrNotFound
	}
	return t, nil
}

func (f *fakeTasks) Create(_ context.Context, t models.Task) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = primitive.NewObjectID()
	if t.Points <= 0 {
		t.Points = models.DefaultTaskPoints
	}
	if t.EvidenceLinks == nil {
		t.EvidenceLinks = []models.Evidence{}
	}
	t.CreatedAt = time.Now().UTC()
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeTasks) ListByProject(_ context.Context, projectID primitive.ObjectID) ([]models.Task, error) {
	return f.filter(func(t models.Task) bool { return t.ProjectID == projectID }), nil
}

func (f *fakeTasks) ListByAssignee(_ context.Context, assigneeID primitive.ObjectID) ([]models.Task, error) {
	return f.filter(func(t models.Task) bool { return t.AssigneeID == assigneeID }), nil
}

func (f *fakeTasks) filter(keep func(models.Task) bool) []models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Task{}
	for _, t := range f.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeTasks) Apply(_ context.Context, id primitive.ObjectID, p taskstore.Patch) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return models.Task{}, taskstore.ErrNotFound
	}
	if p.IfStatus != nil && t.Status != *p.IfStatus {
		return models.Task{}, taskstore.ErrStale
	}
	if p.Feedback != nil && t.Feedback != nil && t.Feedback.Cycle == p.Feedback.Cycle {
		return models.Task{}, taskstore.ErrFeedbackExists
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Points != nil {
		t.Points = *p.Points
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.AssigneeID != nil {
		t.AssigneeID = *p.AssigneeID
	}
	if p.CodeSubmission != nil {
		t.CodeSubmission = p.CodeSubmission
	}
	if p.SubmissionType != nil {
		t.SubmissionType = *p.SubmissionType
	}
	if p.Feedback != nil {
		t.Feedback = p.Feedback
	}
	if p.IncReviewCycle {
		t.ReviewCycle++
	}
	if p.CompletedAt != nil {
		t.CompletedAt = p.CompletedAt
	}
	f.tasks[id] = t
	return t, nil
}

func (f *fakeTasks) update(id primitive.ObjectID, fn func(*models.Task)) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return models.Task{}, taskstore.ErrNotFound
	}
	fn(&t)
	f.tasks[id] = t
	return t, nil
}

func (f *fakeTasks) AppendEvidence(_ context.Context, id primitive.ObjectID, evs []models.Evidence) (models.Task, error) {
	f.mu.Lock()
	f.appends++
	err := f.appendErr
	f.mu.Unlock()
	if err != nil {
		return models.Task{}, err
	}
	return f.update(id, func(t *models.Task) {
		links := make([]models.Evidence, len(t.EvidenceLinks), len(t.EvidenceLinks)+len(evs))
		copy(links, t.EvidenceLinks)
		t.EvidenceLinks = append(links, evs...)
	})
}

func (f *fakeTasks) SetGitHubRepo(_ context.Context, id primitive.ObjectID, repo models.GitHubRepo) (models.Task, error) {
	return f.update(id, func(t *models.Task) {
		t.GitHubRepo = &repo
		t.GitHubCommits = nil
	})
}

func (f *fakeTasks) ReplaceCommits(_ context.Context, id primitive.ObjectID, commits []models.GitHubCommit) (models.Task, error) {
	return f.update(id, func(t *models.Task) { t.GitHubCommits = commits })
}

func (f *fakeTasks) MarkXPAwarded(_ context.Context, id primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok || t.XPAwarded {
		return false, nil
	}
	t.XPAwarded = true
	f.tasks[id] = t
	return true, nil
}

func (f *fakeTasks) ReleaseXPAward(_ context.Context, id primitive.ObjectID) error {
	_, err := f.update(id, func(t *models.Task) { t.XPAwarded = false })
	return err
}

func (f *fakeTasks) CountCompletedByAssignee(_ context.Context, assigneeID primitive.ObjectID) (int64, error) {
	n := len(f.filter(func(t models.Task) bool {
		return t.AssigneeID == assigneeID && t.Status == models.StatusDone
	}))
	return int64(n), nil
}

func (f *fakeTasks) ProjectComplete(_ context.Context, projectID primitive.ObjectID) (bool, error) {
	all := f.filter(func(t models.Task) bool { return t.ProjectID == projectID })
	if len(all) == 0 {
		return false, nil
	}
	for _, t := range all {
		if t.Status != models.StatusDone {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeTasks) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[id]; !ok {
		return taskstore.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

type fakeProjects map[primitive.ObjectID]models.Project

func (f fakeProjects) GetByID(_ context.Context, id primitive.ObjectID) (models.Project, error) {
	p, ok := f[id]
	if !ok {
		return models.Project{}, projectstore.ErrNotFound
	}
	return p, nil
}

type fakeUsers struct {
	mu        sync.Mutex
	users     map[primitive.ObjectID]*models.User
	failAward bool
	awards    int
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	cp := *u
	cp.Badges = append([]string(nil), u.Badges...)
	return &cp, nil
}

func (f *fakeUsers) AwardXP(_ context.Context, id primitive.ObjectID, xp int, badges []string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAward {
		return nil, errors.New("write failed")
	}
	u, ok := f.users[id]
	if !ok {
		return nil, userstore.ErrNotFound
	}
	f.awards++
	u.XP += xp
	for _, b := range badges {
		if !u.HasBadge(b) {
			u.Badges = append(u.Badges, b)
		}
	}
	cp := *u
	return &cp, nil
}

type fakeGroups map[primitive.ObjectID][]primitive.ObjectID

func (f fakeGroups) IDsByProject(_ context.Context, projectID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return f[projectID], nil
}

type fakeMembers map[primitive.ObjectID][]primitive.ObjectID

func (f fakeMembers) IsMemberOfAny(_ context.Context, groupIDs []primitive.ObjectID, userID primitive.ObjectID) (bool, error) {
	for _, g := range groupIDs {
		for _, u := range f[g] {
			if u == userID {
				return true, nil
			}
		}
	}
	return false, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (f *fakeNotifier) Notify(n models.Notification) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return true
}

func (f *fakeNotifier) all() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.sent...)
}

type fakeCommits struct {
	commits []models.GitHubCommit
	err     error
	calls   int
}

func (f *fakeCommits) ListCommits(_ context.Context, _, _ string, _ int) ([]models.GitHubCommit, error) {
	f.calls++
	return f.commits, f.err
}

// world is a small classroom: one teacher, one project with one task
// assigned to alice, a group bound to the project containing bob, and an
// outsider.
type world struct {
	engine   *Engine
	tasks    *fakeTasks
	users    *fakeUsers
	notifier *fakeNotifier
	commits  *fakeCommits

	project models.Project
	task    models.Task

	teacher  Actor
	alice    Actor
	bob      Actor
	outsider Actor

	clock time.Time
}

func newWorld() *world {
	w := &world{
		clock:    time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		notifier: &fakeNotifier{},
		commits:  &fakeCommits{},
	}
	w.teacher = Actor{ID: primitive.NewObjectID(), Name: "Ms. Rivera", Role: models.RoleTeacher}
	w.alice = Actor{ID: primitive.NewObjectID(), Name: "Alice", Role: models.RoleStudent}
	w.bob = Actor{ID: primitive.NewObjectID(), Name: "Bob", Role: models.RoleStudent}
	w.outsider = Actor{ID: primitive.NewObjectID(), Name: "Olive", Role: models.RoleStudent}

	w.project = models.Project{
		ID:        primitive.NewObjectID(),
		Title:     "Eco Garden",
		TeacherID: w.teacher.ID,
		Columns:   append([]models.TaskStatus(nil), models.DefaultColumns...),
	}
	w.task = models.Task{
		ID:            primitive.NewObjectID(),
		ProjectID:     w.project.ID,
		AssigneeID:    w.alice.ID,
		Title:         "Build a compost bin",
		Status:        models.StatusBacklog,
		Priority:      models.PriorityHigh,
		Points:        10,
		EvidenceLinks: []models.Evidence{},
		CreatedAt:     w.clock.Add(-2 * time.Hour),
	}
	w.tasks = &fakeTasks{tasks: map[primitive.ObjectID]models.Task{w.task.ID: w.task}}

	w.users = &fakeUsers{users: map[primitive.ObjectID]*models.User{}}
	for _, a := range []Actor{w.teacher, w.alice, w.bob, w.outsider} {
		w.users.users[a.ID] = &models.User{ID: a.ID, FullName: a.Name, Role: a.Role, IsActive: true, Badges: []string{}}
	}

	groupID := primitive.NewObjectID()
	w.engine = New(Deps{
		Tasks:       w.tasks,
		Projects:    fakeProjects{w.project.ID: w.project},
		Users:       w.users,
		Groups:      fakeGroups{w.project.ID: {groupID}},
		Memberships: fakeMembers{groupID: {w.bob.ID}},
		Notifier:    w.notifier,
		Commits:     w.commits,
		Log:         zap.NewNop(),
	})
	w.engine.now = func() time.Time { return w.clock }
	return w
}

// setStatus puts the task straight into s, bypassing the engine.
func (w *world) setStatus(s models.TaskStatus) {
	_, _ = w.tasks.update(w.task.ID, func(t *models.Task) { t.Status = s })
}

func (w *world) stored() models.Task {
	t, _ := w.tasks.GetByID(context.Background(), w.task.ID)
	return t
}
