// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/questhub/internal/app/system/normalize"
	"github.com/dalemusser/questhub/internal/app/system/paging"
	"github.com/dalemusser/questhub/internal/app/system/search"
	"github.com/dalemusser/questhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for stored password hashes.
const BcryptCost = 12

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")

	errBadRole = errors.New(`role must be "student"|"teacher"|"admin"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// HashPassword returns the bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches the stored hash.
func CheckPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user after normalizing fields. When password is
// non-empty it is hashed into PasswordHash.
func (s *Store) Create(ctx context.Context, u models.User, password string) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.FullName = normalize.Name(u.FullName)
	u.FullNameCI = normalize.Folded(u.FullName)
	u.Email = normalize.Email(u.Email)
	u.Role = normalize.Role(u.Role)

	switch u.Role {
	case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
	default:
		return models.User{}, errBadRole
	}

	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = hash
	}
	if u.Badges == nil {
		u.Badges = []string{}
	}
	if u.XP < 0 {
		u.XP = 0
	}
	u.IsActive = true

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// UpdateName changes a user's display name.
func (s *Store) UpdateName(ctx context.Context, id primitive.ObjectID, name string) error {
	name = normalize.Name(name)
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"full_name":    name,
		"full_name_ci": text.Fold(name),
		"updated_at":   time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(ctx context.Context, id primitive.ObjectID, plain string) error {
	hash, err := HashPassword(plain)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRole changes a user's role and reactivates the account.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	role = normalize.Role(role)
	switch role {
	case models.RoleStudent, models.RoleTeacher, models.RoleAdmin:
	default:
		return errBadRole
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"role":       role,
		"is_active":  true,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive activates or deactivates a user.
func (s *Store) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetMastery replaces a student's subject scores.
func (s *Store) SetMastery(ctx context.Context, id primitive.ObjectID, mastery map[string]float64) error {
	if mastery == nil {
		mastery = map[string]float64{}
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "role": models.RoleStudent},
		bson.M{"$set": bson.M{"mastery": mastery, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MergeMastery sets the given subject scores on a student, leaving other
// subjects untouched.
func (s *Store) MergeMastery(ctx context.Context, id primitive.ObjectID, scores map[string]float64) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for subject, score := range scores {
		set["mastery."+subject] = score
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id, "role": models.RoleStudent}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// GetManyByEmail loads users by email. Emails are normalized first; unknown
// emails are simply absent from the result.
func (s *Store) GetManyByEmail(ctx context.Context, emails []string) ([]models.User, error) {
	if len(emails) == 0 {
		return []models.User{}, nil
	}
	norm := make([]string, 0, len(emails))
	for _, e := range emails {
		norm = append(norm, normalize.Email(e))
	}
	opts := options.Find().SetProjection(bson.M{"password_hash": 0})
	return s.find(ctx, bson.M{"email": bson.M{"$in": norm}}, opts)
}

// AwardXP adds xp and unions badges into the user's set in a single update,
// returning the user as it is after the write.
func (s *Store) AwardXP(ctx context.Context, id primitive.ObjectID, xp int, badges []string) (*models.User, error) {
	if badges == nil {
		badges = []string{}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc":      bson.M{"xp": xp},
			"$addToSet": bson.M{"badges": bson.M{"$each": badges}},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
		opts,
	).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListFilter narrows List.
type ListFilter struct {
	Role       string
	ActiveOnly bool
	Search     string // prefix match on folded name, or email when it contains '@'
}

// List returns one keyset page of users in folded-name order. It fetches
// ks.Size+1 rows for look-ahead; backward pages are returned already
// reversed into display order, so the caller only has to trim.
func (s *Store) List(ctx context.Context, f ListFilter, ks paging.KeysetConfig) ([]models.User, error) {
	clauses := []bson.M{}
	if f.Role != "" {
		clauses = append(clauses, bson.M{"role": f.Role})
	}
	if f.ActiveOnly {
		clauses = append(clauses, bson.M{"is_active": true})
	}
	if pat := search.PrefixPattern(f.Search); pat != "" {
		clauses = append(clauses, bson.M{search.Field(f.Search): bson.M{"$regex": pat}})
	}
	if win := ks.KeysetWindow("full_name_ci"); win != nil {
		clauses = append(clauses, win)
	}
	filter := bson.M{}
	if len(clauses) > 0 {
		filter["$and"] = clauses
	}

	opts := options.Find().SetProjection(bson.M{"password_hash": 0})
	ks.ApplyToFind(opts, "full_name_ci")
	out, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if ks.Direction == paging.Backward {
		paging.Reverse(out)
	}
	return out, nil
}

// GetMany loads the users with the given ids, in folded-name order.
func (s *Store) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"password_hash": 0})
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
}

// ActiveStudentsExcept lists active students whose id is not in exclude.
func (s *Store) ActiveStudentsExcept(ctx context.Context, exclude []primitive.ObjectID) ([]models.User, error) {
	filter := bson.M{"role": models.RoleStudent, "is_active": true}
	if len(exclude) > 0 {
		filter["_id"] = bson.M{"$nin": exclude}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"password_hash": 0})
	return s.find(ctx, filter, opts)
}

// Leaderboard returns the top active students by XP.
func (s *Store) Leaderboard(ctx context.Context, limit int64) ([]models.User, error) {
	if limit <= 0 {
		limit = 10
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "xp", Value: -1}, {Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetProjection(bson.M{"password_hash": 0, "mastery": 0})
	return s.find(ctx, bson.M{"role": models.RoleStudent, "is_active": true}, opts)
}

// CountByRole returns the number of users per role.
func (s *Store) CountByRole(ctx context.Context) (map[string]int64, error) {
	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$role", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make(map[string]int64, len(models.Roles))
	for _, r := range models.Roles {
		out[r] = 0
	}
	for cur.Next(ctx) {
		var row struct {
			Role string `bson:"_id"`
			N    int64  `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.Role] = row.N
	}
	return out, cur.Err()
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.User, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.User{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
