// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/questhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrMemberInAnotherGroup is returned when a student already belongs to a
// different group. The unique index on user_id enforces it.
var ErrMemberInAnotherGroup = errors.New("student already belongs to another group")

// ConflictError names the student that could not be placed.
type ConflictError struct {
	UserID primitive.ObjectID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("student %s already belongs to another group", e.UserID.Hex())
}

func (e *ConflictError) Unwrap() error { return ErrMemberInAnotherGroup }

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("group_memberships")}
}

// ReplaceForGroup makes userIDs the exact member list of groupID.
// Run it inside txn.Run so a conflict leaves the previous list intact.
func (s *Store) ReplaceForGroup(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) error {
	if _, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID}); err != nil {
		return err
	}
	ids := dedupe(userIDs)
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(ids))
	for i, uid := range ids {
		docs[i] = models.GroupMembership{
			ID:        primitive.NewObjectID(),
			GroupID:   groupID,
			UserID:    uid,
			CreatedAt: now,
		}
	}

	_, err := s.c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}
	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		for _, we := range bulkErr.WriteErrors {
			if we.Code == 11000 && we.Index >= 0 && we.Index < len(ids) {
				return &ConflictError{UserID: ids[we.Index]}
			}
		}
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrMemberInAnotherGroup
	}
	return err
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// UserIDsByGroup returns member ids of a group in join order.
func (s *Store) UserIDsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return s.userIDs(ctx, bson.M{"group_id": groupID})
}

// AssignedUserIDs returns every student that belongs to some group.
func (s *Store) AssignedUserIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	return s.userIDs(ctx, bson.M{})
}

func (s *Store) userIDs(ctx context.Context, filter bson.M) ([]primitive.ObjectID, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"user_id": 1})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []primitive.ObjectID{}
	for cur.Next(ctx) {
		var row struct {
			UserID primitive.ObjectID `bson:"user_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, row.UserID)
	}
	return out, cur.Err()
}

// GroupOf returns the group a student belongs to. ok is false when the
// student is unassigned.
func (s *Store) GroupOf(ctx context.Context, userID primitive.ObjectID) (groupID primitive.ObjectID, ok bool, err error) {
	var m models.GroupMembership
	err = s.c.FindOne(ctx, bson.M{"user_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return primitive.NilObjectID, false, nil
	}
	if err != nil {
		return primitive.NilObjectID, false, err
	}
	return m.GroupID, true, nil
}

// IsMemberOfAny reports whether userID belongs to one of groupIDs.
func (s *Store) IsMemberOfAny(ctx context.Context, groupIDs []primitive.ObjectID, userID primitive.ObjectID) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "group_id": bson.M{"$in": groupIDs}}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountByGroups returns member counts keyed by group id.
func (s *Store) CountByGroups(ctx context.Context, groupIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	result := make(map[primitive.ObjectID]int, len(groupIDs))
	if len(groupIDs) == 0 {
		return result, nil
	}

	cur, err := s.c.Aggregate(ctx, []bson.M{
		{"$match": bson.M{"group_id": bson.M{"$in": groupIDs}}},
		{"$group": bson.M{"_id": "$group_id", "n": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
			N  int                `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		result[row.ID] = row.N
	}
	return result, cur.Err()
}

// DeleteByGroup removes all memberships for a group.
// Returns the number of documents deleted.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByUser removes a student's membership.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
