// internal/app/store/tasks/taskstore.go
package taskstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotFound is returned when no task matches.
	ErrNotFound = errors.New("task not found")
	// ErrStale is returned when a guarded update finds the task in a
	// different status than the caller expected.
	ErrStale = errors.New("task was changed by someone else")
	// ErrFeedbackExists is returned when feedback was already given in the
	// task's current review cycle.
	ErrFeedbackExists = errors.New("feedback was already given for this review cycle")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("tasks")}
}

func prepare(t *models.Task, now time.Time) {
	t.ID = primitive.NewObjectID()
	if t.Status == "" {
		t.Status = models.StatusBacklog
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if t.Points <= 0 {
		t.Points = models.DefaultTaskPoints
	}
	if t.EvidenceLinks == nil {
		t.EvidenceLinks = []models.Evidence{}
	}
	t.XPAwarded = false
	t.CreatedAt = now
	t.UpdatedAt = now
}

// Create inserts a task with defaults applied.
func (s *Store) Create(ctx context.Context, t models.Task) (models.Task, error) {
	prepare(&t, time.Now().UTC())
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// CreateMany inserts tasks in one round trip.
func (s *Store) CreateMany(ctx context.Context, ts []models.Task) ([]models.Task, error) {
	if len(ts) == 0 {
		return []models.Task{}, nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, len(ts))
	for i := range ts {
		prepare(&ts[i], now)
		docs[i] = ts[i]
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		return nil, err
	}
	return ts, nil
}

// GetByID loads a task by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Task, error) {
	var t models.Task
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, err
	}
	return t, nil
}

// ListByProject returns a project's tasks in creation order.
func (s *Store) ListByProject(ctx context.Context, projectID primitive.ObjectID) ([]models.Task, error) {
	return s.find(ctx, bson.M{"project_id": projectID})
}

// ListByAssignee returns a student's tasks in creation order.
func (s *Store) ListByAssignee(ctx context.Context, assigneeID primitive.ObjectID) ([]models.Task, error) {
	return s.find(ctx, bson.M{"assignee_id": assigneeID})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Task{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title          *string
	Description    *string
	Status         *models.TaskStatus
	Priority       *string
	Points         *int
	DueDate        *time.Time
	ClearDueDate   bool
	AssigneeID     *primitive.ObjectID
	CodeSubmission *models.CodeSubmission
	SubmissionType *string
	Feedback       *models.Feedback
	IncReviewCycle bool
	CompletedAt    *time.Time

	// IfStatus makes the update conditional on the stored status.
	IfStatus *models.TaskStatus
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Points == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.AssigneeID == nil && p.CodeSubmission == nil && p.SubmissionType == nil &&
		p.Feedback == nil && !p.IncReviewCycle && p.CompletedAt == nil
}

// Apply writes p atomically and returns the task as stored afterwards.
// Feedback is only written when none exists for Feedback.Cycle.
func (s *Store) Apply(ctx context.Context, id primitive.ObjectID, p Patch) (models.Task, error) {
	filter := bson.M{"_id": id}
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}
	inc := bson.M{}

	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Status != nil {
		set["status"] = *p.Status
	}
	if p.Priority != nil {
		set["priority"] = *p.Priority
	}
	if p.Points != nil {
		set["points"] = *p.Points
	}
	switch {
	case p.ClearDueDate:
		unset["due_date"] = ""
	case p.DueDate != nil:
		set["due_date"] = p.DueDate.UTC()
	}
	if p.AssigneeID != nil {
		set["assignee_id"] = *p.AssigneeID
	}
	if p.CodeSubmission != nil {
		set["code_submission"] = *p.CodeSubmission
	}
	if p.SubmissionType != nil {
		set["submission_type"] = *p.SubmissionType
	}
	if p.Feedback != nil {
		set["feedback"] = *p.Feedback
		filter["feedback.cycle"] = bson.M{"$ne": p.Feedback.Cycle}
	}
	if p.IncReviewCycle {
		inc["review_cycle"] = 1
	}
	if p.CompletedAt != nil {
		set["completed_at"] = p.CompletedAt.UTC()
	}
	if p.IfStatus != nil {
		filter["status"] = *p.IfStatus
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}

	t, err := s.findOneAndUpdate(ctx, filter, update)
	if !errors.Is(err, ErrNotFound) || len(filter) == 1 {
		return t, err
	}

	// The guarded update matched nothing: find out which guard failed.
	cur, gerr := s.GetByID(ctx, id)
	if gerr != nil {
		return models.Task{}, gerr
	}
	if p.IfStatus != nil && cur.Status != *p.IfStatus {
		return models.Task{}, ErrStale
	}
	if p.Feedback != nil {
		return models.Task{}, ErrFeedbackExists
	}
	return models.Task{}, ErrStale
}

// AppendEvidence pushes entries onto the evidence ledger in one write, so
// either all of them land or none do.
func (s *Store) AppendEvidence(ctx context.Context, id primitive.ObjectID, evs []models.Evidence) (models.Task, error) {
	if len(evs) == 0 {
		return s.GetByID(ctx, id)
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"evidence_links": bson.M{"$each": evs}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

// SetGitHubRepo replaces the repository binding and clears the commit snapshot.
func (s *Store) SetGitHubRepo(ctx context.Context, id primitive.ObjectID, repo models.GitHubRepo) (models.Task, error) {
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"github_repo": repo, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"github_commits": ""},
	})
}

// ReplaceCommits overwrites the commit snapshot wholesale.
func (s *Store) ReplaceCommits(ctx context.Context, id primitive.ObjectID, commits []models.GitHubCommit) (models.Task, error) {
	if commits == nil {
		commits = []models.GitHubCommit{}
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"github_commits": commits, "updated_at": time.Now().UTC()},
	})
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.M) (models.Task, error) {
	var t models.Task
	err := s.c.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, err
	}
	return t, nil
}

// MarkXPAwarded flips xp_awarded from false to true. It reports true only
// for the single caller whose write made the change.
func (s *Store) MarkXPAwarded(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "xp_awarded": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"xp_awarded": true}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// ReleaseXPAward resets xp_awarded so a later completion can pay out.
func (s *Store) ReleaseXPAward(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"xp_awarded": false}})
	return err
}

// CountCompletedByAssignee counts a student's Done tasks.
func (s *Store) CountCompletedByAssignee(ctx context.Context, assigneeID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"assignee_id": assigneeID, "status": models.StatusDone})
}

// ProjectComplete reports whether the project has tasks and all are Done.
func (s *Store) ProjectComplete(ctx context.Context, projectID primitive.ObjectID) (bool, error) {
	total, err := s.c.CountDocuments(ctx, bson.M{"project_id": projectID})
	if err != nil || total == 0 {
		return false, err
	}
	open, err := s.c.CountDocuments(ctx, bson.M{
		"project_id": projectID,
		"status":     bson.M{"$ne": models.StatusDone},
	})
	if err != nil {
		return false, err
	}
	return open == 0, nil
}

// CountByStatus returns the number of tasks per status.
func (s *Store) CountByStatus(ctx context.Context) (map[models.TaskStatus]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[models.TaskStatus]int64, len(models.TaskStatuses))
	for _, st := range models.TaskStatuses {
		out[st] = 0
	}
	for cur.Next(ctx) {
		var row struct {
			Status models.TaskStatus `bson:"_id"`
			N      int64             `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Status] = row.N
	}
	return out, cur.Err()
}

// Progress is a project's task total and how many of those are Done.
type Progress struct {
	Total int64 `bson:"total" json:"total"`
	Done  int64 `bson:"done" json:"done"`
}

// ProgressByProjects returns task progress keyed by project id. Projects
// without tasks are absent from the map.
func (s *Store) ProgressByProjects(ctx context.Context, projectIDs []primitive.ObjectID) (map[primitive.ObjectID]Progress, error) {
	out := make(map[primitive.ObjectID]Progress, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}
	cur, err := s.c.Aggregate(ctx, []bson.M{
		{"$match": bson.M{"project_id": bson.M{"$in": projectIDs}}},
		{"$group": bson.M{
			"_id":   "$project_id",
			"total": bson.M{"$sum": 1},
			"done": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$status", models.StatusDone}}, 1, 0},
			}},
		}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID       primitive.ObjectID `bson:"_id"`
			Progress `bson:",inline"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.Progress
	}
	return out, cur.Err()
}

// Delete removes one task.
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

// DeleteByProject removes every task of a project.
func (s *Store) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
