// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no group matches.
var ErrNotFound = errors.New("group not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.Name = strings.TrimSpace(g.Name)
	g.NameCI = text.Fold(g.Name)
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// UpdateInfo renames a group and rebinds its project. A nil projectID
// unbinds it.
func (s *Store) UpdateInfo(ctx context.Context, id primitive.ObjectID, name string, projectID *primitive.ObjectID) (models.Group, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if n := strings.TrimSpace(name); n != "" {
		set["name"] = n
		set["name_ci"] = text.Fold(n)
	}
	update := bson.M{"$set": set}
	if projectID != nil {
		set["project_id"] = *projectID
	} else {
		update["$unset"] = bson.M{"project_id": ""}
	}

	var g models.Group
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&g)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// ListAll returns every group sorted by name.
func (s *Store) ListAll(ctx context.Context) ([]models.Group, error) {
	return s.find(ctx, bson.M{})
}

// ListByTeacher returns a teacher's groups sorted by name.
func (s *Store) ListByTeacher(ctx context.Context, teacherID primitive.ObjectID) ([]models.Group, error) {
	return s.find(ctx, bson.M{"teacher_id": teacherID})
}

// ListByProject returns the groups bound to a project.
func (s *Store) ListByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Group, error) {
	return s.find(ctx, bson.M{"project_id": projectID})
}

// ListByIDs returns the groups with the given ids.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Group, error) {
	if len(ids) == 0 {
		return []models.Group{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// IDsByProject returns the ids of the groups bound to a project.
func (s *Store) IDsByProject(ctx context.Context, projectID primitive.ObjectID) ([]primitive.ObjectID, error) {
	gs, err := s.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(gs))
	for i, g := range gs {
		ids[i] = g.ID
	}
	return ids, nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Group{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnbindProject clears project_id on every group bound to projectID.
func (s *Store) UnbindProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"project_id": projectID},
		bson.M{
			"$unset": bson.M{"project_id": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes a group document. Callers remove memberships.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
