// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/questhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("projects", projectsSchema())
	ensure("tasks", tasksSchema())
	ensure("groups", groupsSchema())
	ensure("group_memberships", groupMembershipsSchema())
	ensure("notifications", notificationsSchema())

	// No validator; the collection is still created up front.
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var (
	nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
	integer  = bson.A{"int", "long"}
)

func strs[T ~string](xs []T) bson.A {
	out := make(bson.A, len(xs))
	for i, x := range xs {
		out[i] = string(x)
	}
	return out
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "email", "role", "xp", "is_active"},
			"properties": bson.M{
				"full_name":    nonBlank,
				"full_name_ci": bson.M{"bsonType": "string"},
				"email":        nonBlank,
				"role":         bson.M{"enum": strs(models.Roles)},
				"xp":           bson.M{"bsonType": integer, "minimum": 0},
				"badges":       bson.M{"bsonType": "array", "uniqueItems": true, "items": bson.M{"bsonType": "string"}},
				"mastery":      bson.M{"bsonType": "object"},
				"is_active":    bson.M{"bsonType": "bool"},
			},
		},
	}
}

func projectsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "teacher_id", "columns"},
			"properties": bson.M{
				"title":      nonBlank,
				"teacher_id": bson.M{"bsonType": "objectId"},
				"columns": bson.M{
					"bsonType": "array",
					"minItems": 2,
					"items":    bson.M{"enum": strs(models.TaskStatuses)},
				},
				"deadline": bson.M{"bsonType": bson.A{"date", "null"}},
			},
		},
	}
}

func tasksSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"project_id", "assignee_id", "title", "status", "priority", "points", "xp_awarded"},
			"properties": bson.M{
				"project_id":      bson.M{"bsonType": "objectId"},
				"assignee_id":     bson.M{"bsonType": "objectId"},
				"title":           nonBlank,
				"status":          bson.M{"enum": strs(models.TaskStatuses)},
				"priority":        bson.M{"enum": strs(models.Priorities)},
				"points":          bson.M{"bsonType": integer, "minimum": 0},
				"review_cycle":    bson.M{"bsonType": integer, "minimum": 0},
				"xp_awarded":      bson.M{"bsonType": "bool"},
				"evidence_links":  bson.M{"bsonType": bson.A{"array", "null"}},
				"submission_type": bson.M{"enum": bson.A{"", models.SubmissionLink, models.SubmissionFile, models.SubmissionCode, models.SubmissionGitHub}},
			},
		},
	}
}

func groupsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "teacher_id"},
			"properties": bson.M{
				"name":       nonBlank,
				"name_ci":    nonBlank,
				"teacher_id": bson.M{"bsonType": "objectId"},
				"project_id": bson.M{"bsonType": bson.A{"objectId", "null"}},
			},
		},
	}
}

func groupMembershipsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "group_id"},
			"properties": bson.M{
				"user_id":    bson.M{"bsonType": "objectId"},
				"group_id":   bson.M{"bsonType": "objectId"},
				"created_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func notificationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"recipient_id", "type", "message", "is_read", "created_at"},
			"properties": bson.M{
				"sender_id":    bson.M{"bsonType": "objectId"},
				"recipient_id": bson.M{"bsonType": "objectId"},
				"type":         bson.M{"enum": bson.A{models.NotifySubmission, models.NotifyEvidence, models.NotifyFeedback, models.NotifySystem}},
				"message":      bson.M{"bsonType": "string"},
				"is_read":      bson.M{"bsonType": "bool"},
				"created_at":   bson.M{"bsonType": "date"},
			},
		},
	}
}
