package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts an active user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Email:      email,
		Role:       role,
		Badges:     []string{},
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateStudent inserts an active student.
func (f *Fixtures) CreateStudent(ctx context.Context, fullName, email string) models.User {
	return f.CreateUser(ctx, fullName, email, models.RoleStudent)
}

// CreateTeacher inserts an active teacher.
func (f *Fixtures) CreateTeacher(ctx context.Context, fullName, email string) models.User {
	return f.CreateUser(ctx, fullName, email, models.RoleTeacher)
}

// CreateAdmin inserts an active admin.
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string) models.User {
	return f.CreateUser(ctx, fullName, email, models.RoleAdmin)
}

// CreateProject inserts a project with the default board columns.
func (f *Fixtures) CreateProject(ctx context.Context, title string, teacherID primitive.ObjectID) models.Project {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Project{
		ID:        primitive.NewObjectID(),
		Title:     title,
		TitleCI:   text.Fold(title),
		TeacherID: teacherID,
		Columns:   append([]models.TaskStatus(nil), models.DefaultColumns...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("projects").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test project: %v", err)
	}
	return p
}

// CreateTask inserts a Backlog task in project assigned to assigneeID.
func (f *Fixtures) CreateTask(ctx context.Context, title string, p models.Project, assigneeID primitive.ObjectID) models.Task {
	f.t.Helper()

	now := time.Now().UTC()
	task := models.Task{
		ID:            primitive.NewObjectID(),
		ProjectID:     p.ID,
		AssigneeID:    assigneeID,
		Title:         title,
		Status:        models.StatusBacklog,
		Priority:      models.PriorityMedium,
		Points:        models.DefaultTaskPoints,
		EvidenceLinks: []models.Evidence{},
		CreatedByID:   p.TeacherID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("tasks").InsertOne(ctx, task); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}
	return task
}

// CreateGroup inserts a group, optionally bound to a project.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, teacherID primitive.ObjectID, projectID *primitive.ObjectID) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		TeacherID: teacherID,
		ProjectID: projectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// AddMember inserts a group membership.
func (f *Fixtures) AddMember(ctx context.Context, groupID, userID primitive.ObjectID) models.GroupMembership {
	f.t.Helper()

	m := models.GroupMembership{
		ID:        primitive.NewObjectID(),
		GroupID:   groupID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("group_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create group membership: %v", err)
	}
	return m
}
