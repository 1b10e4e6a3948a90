// internal/app/store/projects/projectstore.go
package projectstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/questhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no project matches.
	ErrNotFound = errors.New("project not found")
	// ErrBadColumns is returned for a column list that is not a valid board.
	ErrBadColumns = errors.New("columns must be distinct known statuses including Backlog and Done")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("projects")}
}

// ValidColumns reports whether cols is a usable board: every entry a known
// status, no repeats, Backlog and Done present.
func ValidColumns(cols []models.TaskStatus) bool {
	seen := make(map[models.TaskStatus]bool, len(cols))
	for _, c := range cols {
		if !c.Valid() || seen[c] {
			return false
		}
		seen[c] = true
	}
	return seen[models.StatusBacklog] && seen[models.StatusDone]
}

// Create inserts a project. Empty Columns get the default board.
func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	if len(p.Columns) == 0 {
		p.Columns = append([]models.TaskStatus(nil), models.DefaultColumns...)
	}
	if !ValidColumns(p.Columns) {
		return models.Project{}, ErrBadColumns
	}
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.TitleCI = text.Fold(p.Title)
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// GetByID loads a project by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}

// ListAll returns every project sorted by title.
func (s *Store) ListAll(ctx context.Context) ([]models.Project, error) {
	return s.find(ctx, bson.M{})
}

// ListByTeacher returns a teacher's projects sorted by title.
func (s *Store) ListByTeacher(ctx context.Context, teacherID primitive.ObjectID) ([]models.Project, error) {
	return s.find(ctx, bson.M{"teacher_id": teacherID})
}

// ListByIDs returns the projects with the given ids sorted by title.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Project, error) {
	if len(ids) == 0 {
		return []models.Project{}, nil
	}
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "title_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Project{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update holds the editable fields of a project. Nil fields are left unchanged.
type Update struct {
	Title         *string
	Description   *string
	Columns       []models.TaskStatus
	Deadline      *time.Time
	ClearDeadline bool
}

// Update applies upd and returns the stored project.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) (models.Project, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}
	if upd.Title != nil {
		set["title"] = *upd.Title
		set["title_ci"] = text.Fold(*upd.Title)
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Columns != nil {
		if !ValidColumns(upd.Columns) {
			return models.Project{}, ErrBadColumns
		}
		set["columns"] = upd.Columns
	}
	switch {
	case upd.ClearDeadline:
		unset["deadline"] = ""
	case upd.Deadline != nil:
		set["deadline"] = upd.Deadline.UTC()
	}

	doc := bson.M{"$set": set}
	if len(unset) > 0 {
		doc["$unset"] = unset
	}
	var p models.Project
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, doc,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}

// Delete removes a project document. Callers cascade to tasks and groups.
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

// Count returns the number of projects.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{})
}
