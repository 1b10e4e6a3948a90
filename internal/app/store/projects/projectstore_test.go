package projectstore_test

import (
	"errors"
	"testing"
	"time"

	projectstore "github.com/dalemusser/questhub/internal/app/store/projects"
	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/dalemusser/questhub/internal/testutil"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestValidColumns(t *testing.T) {
	tests := []struct {
		name string
		cols []models.TaskStatus
		want bool
	}{
		{"default", models.DefaultColumns, true},
		{"minimal", []models.TaskStatus{models.StatusBacklog, models.StatusDone}, true},
		{"missing done", []models.TaskStatus{models.StatusBacklog, models.StatusInProgress}, false},
		{"missing backlog", []models.TaskStatus{models.StatusInProgress, models.StatusDone}, false},
		{"duplicate", []models.TaskStatus{models.StatusBacklog, models.StatusDone, models.StatusDone}, false},
		{"unknown", []models.TaskStatus{models.StatusBacklog, "Blocked", models.StatusDone}, false},
		{"non-canonical spelling", []models.TaskStatus{"backlog", models.StatusDone}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := projectstore.ValidColumns(tt.cols); got != tt.want {
				t.Errorf("ValidColumns(%v) = %v, want %v", tt.cols, got, tt.want)
			}
		})
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := projectstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacherID := primitive.NewObjectID()
	created, err := store.Create(ctx, models.Project{Title: "Éco Garden", TeacherID: teacherID})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.TitleCI != text.Fold("Éco Garden") {
		t.Errorf("TitleCI: got %q", created.TitleCI)
	}
	if len(created.Columns) != len(models.DefaultColumns) {
		t.Errorf("expected default columns, got %v", created.Columns)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.TeacherID != teacherID {
		t.Errorf("TeacherID: got %v, want %v", got.TeacherID, teacherID)
	}

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, projectstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = store.Create(ctx, models.Project{Title: "Bad", TeacherID: teacherID, Columns: []models.TaskStatus{models.StatusBacklog}})
	if !errors.Is(err, projectstore.ErrBadColumns) {
		t.Errorf("expected ErrBadColumns, got %v", err)
	}
}

func TestStore_Update(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := projectstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	p := fixtures.CreateProject(ctx, "Original", primitive.NewObjectID())

	title := "Renamed"
	deadline := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Millisecond)
	got, err := store.Update(ctx, p.ID, projectstore.Update{Title: &title, Deadline: &deadline})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Title != "Renamed" || got.TitleCI != text.Fold("Renamed") {
		t.Errorf("title not updated: %+v", got)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Errorf("Deadline: got %v, want %v", got.Deadline, deadline)
	}

	got, err = store.Update(ctx, p.ID, projectstore.Update{ClearDeadline: true})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Deadline != nil {
		t.Errorf("expected deadline cleared, got %v", got.Deadline)
	}

	if _, err := store.Update(ctx, primitive.NewObjectID(), projectstore.Update{Title: &title}); !errors.Is(err, projectstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := projectstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	teacher := primitive.NewObjectID()
	b := fixtures.CreateProject(ctx, "Bravo", teacher)
	a := fixtures.CreateProject(ctx, "alpha", teacher)
	fixtures.CreateProject(ctx, "Other", primitive.NewObjectID())

	list, err := store.ListByTeacher(ctx, teacher)
	if err != nil {
		t.Fatalf("ListByTeacher failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Errorf("unexpected order: %+v", list)
	}

	if err := store.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, a.ID); !errors.Is(err, projectstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count: got %d, want 2", n)
	}
}
