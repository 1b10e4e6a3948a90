// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is a named team of students created by a teacher.
//
// NOTE:
//   - Members are not embedded on Group.
//     All membership is stored in the group_memberships collection.
//   - ProjectID is optional; a group is bound to at most one project.
type Group struct {
	ID        primitive.ObjectID  `bson:"_id" json:"id"`
	Name      string              `bson:"name" json:"name"`
	NameCI    string              `bson:"name_ci" json:"-"`
	TeacherID primitive.ObjectID  `bson:"teacher_id" json:"teacher_id"`
	ProjectID *primitive.ObjectID `bson:"project_id,omitempty" json:"project_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
