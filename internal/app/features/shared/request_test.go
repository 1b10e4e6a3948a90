package shared_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/questhub/internal/app/features/shared"
	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestActor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, err := shared.Actor(req); !apierr.Is(err, apierr.KindUnauthorized) {
		t.Fatalf("anonymous: got %v, want unauthorized", err)
	}

	u := testutil.TeacherUser()
	a, err := shared.Actor(testutil.WithUser(req, u))
	if err != nil {
		t.Fatalf("Actor: %v", err)
	}
	if a.ID.Hex() != u.ID || a.Role != u.Role || a.Name != u.Name {
		t.Errorf("Actor = %+v, want %+v", a, u)
	}
}

func TestIDParam(t *testing.T) {
	id := primitive.NewObjectID()
	req := testutil.WithChiURLParam(httptest.NewRequest("GET", "/", nil), "taskID", id.Hex())

	got, err := shared.IDParam(req, "taskID")
	if err != nil || got != id {
		t.Fatalf("IDParam = %v, %v; want %v", got, err, id)
	}

	bad := testutil.WithChiURLParam(httptest.NewRequest("GET", "/", nil), "taskID", "nope")
	if _, err := shared.IDParam(bad, "taskID"); !apierr.Is(err, apierr.KindValidation) {
		t.Errorf("bad id: got %v, want validation error", err)
	}
}

func TestValidate(t *testing.T) {
	type body struct {
		Title string `json:"title" validate:"required" label:"Title"`
	}
	err := shared.Validate(body{})
	if !apierr.Is(err, apierr.KindValidation) {
		t.Fatalf("Validate(empty) = %v, want validation error", err)
	}
	if shared.Validate(body{Title: "ok"}) != nil {
		t.Error("Validate(valid) returned an error")
	}
}
