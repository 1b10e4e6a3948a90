package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/questhub/internal/app/system/auth"
	"github.com/dalemusser/questhub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestUserCtx_NoUser(t *testing.T) {
	role, _, id, ok := authz.UserCtx(httptest.NewRequest("GET", "/", nil))
	if ok || role != "visitor" || id != primitive.NilObjectID {
		t.Errorf("got (%q, %v, %v), want visitor/nil/false", role, id, ok)
	}
}

func TestUserCtx_MalformedIDFailsClosed(t *testing.T) {
	req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{ID: "not-an-id", Role: "admin"})
	if _, _, _, ok := authz.UserCtx(req); ok {
		t.Error("malformed ID should not authenticate")
	}
	if authz.IsAdmin(req) {
		t.Error("IsAdmin should be false for malformed ID")
	}
}

func TestRoleHelpers(t *testing.T) {
	id := primitive.NewObjectID()
	req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{ID: id.Hex(), Name: "Ms T", Role: "Teacher"})

	role, name, got, ok := authz.UserCtx(req)
	if !ok || role != "teacher" || name != "Ms T" || got != id {
		t.Fatalf("UserCtx = (%q, %q, %v, %v)", role, name, got, ok)
	}
	if authz.IsStudent(req) || authz.IsAdmin(req) {
		t.Error("role helpers disagree with teacher role")
	}
}
