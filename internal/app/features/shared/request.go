// internal/app/features/shared/request.go
//
// Package shared holds request helpers used by every JSON feature.
package shared

import (
	"net/http"
	"strings"

	"github.com/dalemusser/questhub/internal/app/system/apierr"
	"github.com/dalemusser/questhub/internal/app/system/authz"
	"github.com/dalemusser/questhub/internal/app/system/inputval"
	"github.com/dalemusser/questhub/internal/app/taskflow"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor returns the signed-in caller, or an Unauthorized error.
func Actor(r *http.Request) (taskflow.Actor, error) {
	role, name, id, ok := authz.UserCtx(r)
	if !ok {
		return taskflow.Actor{}, apierr.Unauthorized("sign in required")
	}
	return taskflow.Actor{ID: id, Name: name, Role: role}, nil
}

// IDParam parses the chi URL parameter name as an ObjectID.
func IDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apierr.Invalid("bad "+strings.TrimSuffix(name, "ID")+" id", nil)
	}
	return id, nil
}

// Validate runs the struct tags of v and returns the first failure as a
// validation error carrying every field message.
func Validate(v any) error {
	if res := inputval.Validate(v); res.HasErrors() {
		return apierr.Invalid(res.First(), res.Fields())
	}
	return nil
}
