// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project is a unit of work owned by exactly one teacher.
// Columns is the ordered status vocabulary for the project's board;
// every task status in the project must be one of these.
type Project struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	TitleCI     string             `bson:"title_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	TeacherID   primitive.ObjectID `bson:"teacher_id" json:"teacher_id"`
	Columns     []TaskStatus       `bson:"columns" json:"columns"`
	Deadline    *time.Time         `bson:"deadline,omitempty" json:"deadline,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// HasColumn reports whether s is part of the project's status vocabulary.
func (p Project) HasColumn(s TaskStatus) bool {
	for _, c := range p.Columns {
		if c == s {
			return true
		}
	}
	return false
}
