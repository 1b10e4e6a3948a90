// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can hold.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Roles is the canonical list, in display order.
var Roles = []string{RoleStudent, RoleTeacher, RoleAdmin}

// User represents students, teachers and admins.
//
// NOTE:
//   - Level is never stored. It is derived from XP on every read
//     (see gamify.Level) so the two can never drift apart.
//   - Group membership is not embedded on User.
//     Use the group_memberships collection to discover a user's group.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	Role         string             `bson:"role" json:"role"` // student | teacher | admin

	XP      int                `bson:"xp" json:"xp"`
	Badges  []string           `bson:"badges" json:"badges"`
	Mastery map[string]float64 `bson:"mastery,omitempty" json:"mastery,omitempty"` // subject -> score

	IsActive bool `bson:"is_active" json:"is_active"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasBadge reports whether the user already holds badge id.
func (u User) HasBadge(id string) bool {
	for _, b := range u.Badges {
		if b == id {
			return true
		}
	}
	return false
}
